package app

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/bipinss1983/banksystem/internal/store"
	"github.com/bipinss1983/banksystem/pkg/rabbitmq"
)

type publishedMessage struct {
	exchange   string
	routingKey string
	body       []byte
}

type publisherStub struct {
	failures  int
	published []publishedMessage
	closed    int
}

func (p *publisherStub) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	if p.failures > 0 {
		p.failures--
		return errors.New("channel closed")
	}
	blob, err := json.Marshal(body)
	if err != nil {
		return err
	}
	p.published = append(p.published, publishedMessage{exchange: exchange, routingKey: routingKey, body: blob})
	return nil
}

func (p *publisherStub) Close() { p.closed++ }

type outboxRepoStub struct {
	store.OutboxRepository
	messages  []store.OutboxMessage
	published []int64
	failed    map[int64]int
	reasons   map[int64]string
}

func (s *outboxRepoStub) ClaimOutboxMessages(ctx context.Context, limit int, staleAfterSeconds int) ([]store.OutboxMessage, error) {
	claimed := s.messages
	s.messages = nil
	return claimed, nil
}

func (s *outboxRepoStub) MarkOutboxPublished(ctx context.Context, id int64) error {
	s.published = append(s.published, id)
	return nil
}

func (s *outboxRepoStub) MarkOutboxFailed(ctx context.Context, id int64, retryAfterSeconds int, reason string) error {
	if s.failed == nil {
		s.failed = map[int64]int{}
		s.reasons = map[int64]string{}
	}
	s.failed[id] = retryAfterSeconds
	s.reasons[id] = reason
	return nil
}

func TestOutboxDispatcher_PublishesClaimedMessages(t *testing.T) {
	repo := &outboxRepoStub{messages: []store.OutboxMessage{
		{ID: 1, Exchange: "banksystem.events", RoutingKey: RoutingKeyDepositEmail, Payload: []byte(`{"subject":"Amount Deposited"}`), Attempts: 1},
		{ID: 2, Exchange: "banksystem.events", RoutingKey: RoutingKeyWithdrawalEmail, Payload: []byte(`{"subject":"Amount Withdrawn"}`), Attempts: 1},
	}}
	publisher := &publisherStub{}
	dials := 0
	dispatcher := NewOutboxDispatcher(repo, func() (rabbitmq.Publisher, error) {
		dials++
		return publisher, nil
	}, 10, 0)

	published, err := dispatcher.FlushOnce(context.Background())
	if err != nil {
		t.Fatalf("FlushOnce returned error: %v", err)
	}
	if published != 2 || len(repo.published) != 2 {
		t.Fatalf("expected 2 published messages, got %d (marked %v)", published, repo.published)
	}
	if dials != 1 {
		t.Fatalf("expected the producer to be dialled once, got %d", dials)
	}
	if string(publisher.published[0].body) != `{"subject":"Amount Deposited"}` {
		t.Fatalf("expected payload to be forwarded verbatim, got %s", publisher.published[0].body)
	}
	if publisher.published[1].routingKey != RoutingKeyWithdrawalEmail {
		t.Fatalf("unexpected routing key %q", publisher.published[1].routingKey)
	}
}

func TestOutboxDispatcher_FailedPublishIsRescheduled(t *testing.T) {
	repo := &outboxRepoStub{messages: []store.OutboxMessage{
		{ID: 7, Exchange: "banksystem.events", RoutingKey: RoutingKeyDepositEmail, Payload: []byte(`{}`), Attempts: 3},
	}}
	publisher := &publisherStub{failures: 1}
	dispatcher := NewOutboxDispatcher(repo, func() (rabbitmq.Publisher, error) { return publisher, nil }, 10, 0)

	published, err := dispatcher.FlushOnce(context.Background())
	if err != nil {
		t.Fatalf("FlushOnce returned error: %v", err)
	}
	if published != 0 || len(repo.published) != 0 {
		t.Fatalf("expected nothing to be marked published, got %v", repo.published)
	}
	if repo.failed[7] != 8 {
		t.Fatalf("expected retry after 8 seconds for attempt 3, got %d", repo.failed[7])
	}
	if repo.reasons[7] != "channel closed" {
		t.Fatalf("expected failure reason to be recorded, got %q", repo.reasons[7])
	}
	if publisher.closed != 1 {
		t.Fatalf("expected producer to be closed after a failed publish, got %d", publisher.closed)
	}
}

func TestOutboxDispatcher_DialFailureKeepsMessagesPending(t *testing.T) {
	repo := &outboxRepoStub{messages: []store.OutboxMessage{{ID: 3, Attempts: 1}, {ID: 4, Attempts: 2}}}
	dials := 0
	dispatcher := NewOutboxDispatcher(repo, func() (rabbitmq.Publisher, error) {
		dials++
		return nil, errors.New("dial tcp: connection refused")
	}, 10, 0)

	if _, err := dispatcher.FlushOnce(context.Background()); err != nil {
		t.Fatalf("FlushOnce returned error: %v", err)
	}
	if repo.failed[3] != 2 || repo.failed[4] != 4 {
		t.Fatalf("expected both messages to be rescheduled, got %v", repo.failed)
	}
	if dials != 1 {
		t.Fatalf("expected a single dial attempt per batch, got %d", dials)
	}
}

func TestRetryDelaySeconds(t *testing.T) {
	tests := map[int]int{0: 1, 1: 2, 2: 4, 5: 32, 8: 256, 9: 300, 50: 300}
	for attempt, want := range tests {
		if got := retryDelaySeconds(attempt); got != want {
			t.Fatalf("retryDelaySeconds(%d) = %d, want %d", attempt, got, want)
		}
	}
}

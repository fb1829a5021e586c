package commands

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/bipinss1983/banksystem/internal/api"
	"github.com/bipinss1983/banksystem/internal/app"
	"github.com/bipinss1983/banksystem/internal/config"
	"github.com/bipinss1983/banksystem/internal/domain"
	"github.com/bipinss1983/banksystem/internal/store"
	"github.com/bipinss1983/banksystem/pkg/rabbitmq"
)

func newServeCommand(load configLoader) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, outbox dispatcher and purge scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.ValidateForServe(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply the database schema before serving")

	return cmd
}

func serve(parent context.Context, cfg config.Config, migrate bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("level=info component=bootstrap msg=\"starting teller service\" port=%s", cfg.ServerPort)

	dbpool, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer dbpool.Close()

	if migrate {
		if err := store.Migrate(ctx, dbpool); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.Println("level=info component=bootstrap msg=\"schema applied\"")
	}

	repository := store.NewPostgresRepository(dbpool)

	var limiter app.DownloadLimiter
	if redisClient := connectRedis(ctx, cfg); redisClient != nil {
		defer redisClient.Close()
		limiter = app.NewRedisDownloadLimiter(redisClient, cfg.RedisDownloadPrefix)
	}

	service := app.NewService(
		repository,
		app.NewNotifier(cfg.NotificationExchange, cfg.NotificationSender),
		limiter,
		app.ServiceConfig{
			Limits: domain.Limits{
				MinDeposit:    cfg.MinDepositAmount,
				MinWithdrawal: cfg.MinWithdrawalAmount,
				MaxWithdrawal: cfg.MaxWithdrawalAmount,
			},
			RecordEnquiries:            cfg.RecordEnquiries,
			ReportLocation:             cfg.ReportLocation,
			DownloadRateLimitPerMinute: cfg.DownloadRateLimitPerMinute,
		},
	)

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()
	dispatcherDone := make(chan struct{})
	if strings.TrimSpace(cfg.RabbitMQURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"rabbitmq url missing; notifications stay queued in the outbox\" env=RABBITMQ_URL")
		close(dispatcherDone)
	} else {
		dispatcher := app.NewOutboxDispatcher(repository, rabbitDialer(workerCtx, cfg.RabbitMQURL), cfg.OutboxBatchSize, cfg.OutboxPollInterval())
		go func() {
			defer close(dispatcherDone)
			dispatcher.Run(workerCtx)
		}()
	}

	scheduler := app.NewScheduler(repository, cfg.OutboxPurgeSchedule, cfg.OutboxRetention())
	if err := scheduler.Start(); err != nil {
		log.Printf("level=warn component=bootstrap msg=\"outbox purge disabled\" schedule=%q err=%v", cfg.OutboxPurgeSchedule, err)
		scheduler = nil
	}

	var verifier *api.TokenVerifier
	if cfg.AuthJWKSURL != "" {
		verifier = api.NewJWKSVerifier(cfg.AuthJWKSURL, cfg.AuthAudience, cfg.AuthIssuer)
	} else {
		verifier = api.NewHMACVerifier(cfg.AuthHMACSecret, cfg.AuthAudience, cfg.AuthIssuer)
	}

	handlers := api.NewTransactionHandlers(service)
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           api.TransactionRoutes(handlers, api.AuthMiddleware(verifier), cfg.CORSAllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("level=info component=http msg=\"server listening\" addr=%s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			log.Printf("level=error component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}
	log.Println("level=info component=http msg=\"shutdown started\"")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}
	cancelWorkers()
	if scheduler != nil {
		select {
		case <-scheduler.Stop().Done():
		case <-shutdownCtx.Done():
		}
	}
	select {
	case <-dispatcherDone:
	case <-shutdownCtx.Done():
		log.Println("level=warn component=outbox msg=\"dispatcher did not stop before shutdown timeout\"")
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
	return nil
}

func connectRedis(ctx context.Context, cfg config.Config) *redis.Client {
	if cfg.DownloadRateLimitPerMinute <= 0 {
		return nil
	}
	if strings.TrimSpace(cfg.RedisURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"redis url missing; download rate limiting disabled\" env=REDIS_URL")
		return nil
	}
	options, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; download rate limiting disabled\" err=%v", err)
		return nil
	}
	client := redis.NewClient(options)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Printf("level=warn component=bootstrap msg=\"redis ping failed; download rate limiting disabled\" err=%v", err)
		client.Close()
		return nil
	}
	log.Println("level=info component=bootstrap msg=\"redis connected\"")
	return client
}

// rabbitDialer returns a factory that dials the broker with a few backed-off retries.
func rabbitDialer(ctx context.Context, url string) app.PublisherFactory {
	return func() (rabbitmq.Publisher, error) {
		if _, err := rabbitmq.SanitizeURL(url); err != nil {
			return nil, err
		}
		var producer *rabbitmq.EventProducer
		retry := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
		err := backoff.Retry(func() error {
			p, err := rabbitmq.NewEventProducer(url)
			if err != nil {
				return err
			}
			producer = p
			return nil
		}, backoff.WithContext(retry, ctx))
		if err != nil {
			return nil, err
		}
		log.Println("level=info component=outbox msg=\"rabbitmq producer connected\"")
		return producer, nil
	}
}

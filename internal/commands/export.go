package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bipinss1983/banksystem/internal/app"
	"github.com/bipinss1983/banksystem/internal/domain"
	"github.com/bipinss1983/banksystem/internal/store"
)

func newExportCommand(load configLoader) *cobra.Command {
	var (
		subject string
		outPath string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write an account holder's transaction history as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(subject) == "" {
				return errors.New("--subject is required")
			}

			cfg, err := load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL must be configured")
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			service := app.NewService(store.NewPostgresRepository(pool), nil, nil, app.ServiceConfig{ReportLocation: cfg.ReportLocation})
			return exportHistory(ctx, service, subject, outPath, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "identity provider subject of the account holder")
	cmd.Flags().StringVar(&outPath, "out", "", "output file (defaults to stdout)")

	return cmd
}

func exportHistory(ctx context.Context, service *app.Service, subject, outPath string, stdout io.Writer) error {
	holder, err := service.ResolveAccountHolder(ctx, subject)
	if err != nil {
		return err
	}

	if outPath == "" {
		return exportTo(ctx, service, holder, nopWriteCloser{stdout})
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", outPath, err)
	}
	return exportTo(ctx, service, holder, f)
}

// exportTo streams the history into out and always closes it. A failed close
// fails the export, since buffered rows may not have reached disk.
func exportTo(ctx context.Context, service *app.Service, holder *domain.AccountHolder, out io.WriteCloser) error {
	rows, err := service.Export(ctx, holder, out)
	if closeErr := out.Close(); closeErr != nil && err == nil {
		err = fmt.Errorf("close export output: %w", closeErr)
	}
	if err != nil {
		return err
	}
	log.Printf("level=info component=export msg=\"export completed\" account_no=%d rows=%d", holder.Account.AccountNo, rows)
	return nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

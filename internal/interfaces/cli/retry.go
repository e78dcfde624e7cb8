package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/garyjia/open-audit/internal/container"
	"github.com/garyjia/open-audit/internal/domain/entity"
)

func newRetryCmd(root *rootOptions) *cobra.Command {
	var (
		status string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "retry-failed",
		Short: "Re-run extraction for documents stuck in PENDING or FAILED",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			c, err := container.NewContainer(cfg, logger)
			if err != nil {
				return err
			}
			if err := c.Start(cmd.Context()); err != nil {
				return err
			}
			defer c.Close()

			summary, err := c.Services().Documents.RetryStuck(cmd.Context(), status, limit)
			if summary != nil {
				cmd.Printf("attempted=%d analyzed=%d failed=%d\n", summary.Attempted, summary.Analyzed, summary.Failed)
			}
			if err != nil {
				return fmt.Errorf("retry stopped: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", entity.DocumentStatusFailed, "status to retry (PENDING or FAILED)")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum documents to retry, 0 for all")
	return cmd
}

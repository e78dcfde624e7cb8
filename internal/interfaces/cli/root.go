// Package cli implements the auditctl operator commands.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/open-audit/internal/config"
	"github.com/garyjia/open-audit/pkg/utils"
)

type rootOptions struct {
	configPath string
}

// NewRootCmd builds the auditctl command tree
func NewRootCmd(version string) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "auditctl",
		Short:         "Operator tools for the OpenAudit service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "configs/config.yaml", "path to the config file")

	root.AddCommand(
		newTaxCmd(),
		newFlagsCmd(),
		newTokenCmd(opts),
		newMigrateCmd(opts),
		newRetryCmd(opts),
	)
	return root
}

// load reads the config and builds a logger from it
func (o *rootOptions) load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: "stderr",
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewReindexCmd rebuilds the Redis leaderboard index from the score log once.
func NewReindexCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the Redis leaderboard index from stored scores",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck
			if cfg.Redis.Addr == "" {
				return fmt.Errorf("redis addr not configured")
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}

			rt, err := buildRuntime(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer rt.Close()
			return rt.engine.Leaderboards.ReindexAll(cmd.Context())
		},
	}
}

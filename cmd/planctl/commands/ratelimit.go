package commands

import (
	"fmt"
	"strings"

	"github.com/benvon/smart-trips/internal/database"
	"github.com/benvon/smart-trips/internal/models"
	"github.com/spf13/cobra"
	"github.com/ulule/limiter/v3"
)

// NewRatelimitCmd creates the ratelimit configuration command with list and set subcommands.
func NewRatelimitCmd(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ratelimit",
		Short: "Manage rate limit configuration",
		Long:  "List or update the API rate limit (e.g. 20-S, 100-M). Running servers pick up changes on their next reload.",
	}
	cmd.AddCommand(newRatelimitListCmd(opts))
	cmd.AddCommand(newRatelimitSetCmd(opts))
	return cmd
}

func newRatelimitListCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List current rate limit configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			c, err := database.NewRatelimitConfigRepository(sess.store).Get(ctx)
			if err != nil {
				return fmt.Errorf("get ratelimit config: %w", err)
			}
			out := cmd.OutOrStdout()
			if c == nil {
				fmt.Fprintln(out, "No rate limit configuration stored. Use 'ratelimit set' to add one.")
				return nil
			}
			fmt.Fprintln(out, "Rate limit configuration:")
			fmt.Fprintf(out, "  Rate: %s\n", c.Rate)
			return nil
		},
	}
}

func newRatelimitSetCmd(opts *Options) *cobra.Command {
	var rate string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set rate limit configuration",
		Long:  "Update the rate limit (e.g. 5-S, 100-M, 1000-H).",
		RunE: func(cmd *cobra.Command, args []string) error {
			rate = strings.TrimSpace(rate)
			if rate == "" {
				return fmt.Errorf("--rate is required (e.g. 5-S, 100-M)")
			}
			if _, err := limiter.NewRateFromFormatted(rate); err != nil {
				return fmt.Errorf("invalid --rate %q: %w", rate, err)
			}

			ctx := cmd.Context()
			sess, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			if err := database.NewRatelimitConfigRepository(sess.store).Set(ctx, &models.RatelimitConfig{Rate: rate}); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Rate limit configuration updated.")
			return nil
		},
	}
	cmd.Flags().StringVar(&rate, "rate", "", "Rate (e.g. 5-S, 100-M, 1000-H) (required)")
	return cmd
}

package commands

import (
	"fmt"
	"strings"

	"github.com/benvon/smart-trips/internal/database"
	"github.com/benvon/smart-trips/internal/models"
	"github.com/spf13/cobra"
)

// NewCorsCmd creates the cors configuration command with list and set subcommands.
func NewCorsCmd(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cors",
		Short: "Manage CORS configuration",
		Long:  "List or update CORS allowed origins and options. Running servers pick up changes on their next reload.",
	}
	cmd.AddCommand(newCorsListCmd(opts))
	cmd.AddCommand(newCorsSetCmd(opts))
	return cmd
}

func newCorsListCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List current CORS configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			c, err := database.NewCorsConfigRepository(sess.store).Get(ctx)
			if err != nil {
				return fmt.Errorf("get cors config: %w", err)
			}
			out := cmd.OutOrStdout()
			if c == nil {
				fmt.Fprintln(out, "No CORS configuration stored. Use 'cors set' to add one.")
				return nil
			}
			fmt.Fprintln(out, "CORS configuration:")
			fmt.Fprintf(out, "  Allowed origins: %s\n", strings.Join(c.Origins(), ", "))
			fmt.Fprintf(out, "  Allow credentials: %v\n", c.AllowCredentials)
			fmt.Fprintf(out, "  Max-Age: %d\n", c.MaxAge)
			return nil
		},
	}
}

func newCorsSetCmd(opts *Options) *cobra.Command {
	var origins string
	var allowCreds bool
	var maxAge int
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set CORS configuration",
		Long:  "Update CORS allowed origins (comma-separated).",
		RunE: func(cmd *cobra.Command, args []string) error {
			origins = strings.TrimSpace(origins)
			if origins == "" {
				return fmt.Errorf("--origins is required (comma-separated list)")
			}

			ctx := cmd.Context()
			sess, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			c := &models.CorsConfig{
				AllowedOrigins:   origins,
				AllowCredentials: allowCreds,
				MaxAge:           maxAge,
			}
			if err := database.NewCorsConfigRepository(sess.store).Set(ctx, c); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "CORS configuration updated.")
			return nil
		},
	}
	cmd.Flags().StringVar(&origins, "origins", "", "Comma-separated allowed origins (required)")
	cmd.Flags().BoolVar(&allowCreds, "allow-credentials", false, "Allow credentials")
	cmd.Flags().IntVar(&maxAge, "max-age", 86400, "Access-Control-Max-Age (seconds)")
	return cmd
}

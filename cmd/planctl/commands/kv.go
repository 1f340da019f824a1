package commands

import (
	"fmt"
	"regexp"

	"github.com/spf13/cobra"
)

// NewKVCmd creates the kv command for raw key inspection
func NewKVCmd(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kv",
		Short: "Inspect the raw key-value store",
	}
	cmd.AddCommand(newKVKeysCmd(opts))
	cmd.AddCommand(newKVGetCmd(opts))
	cmd.AddCommand(newKVSizeCmd(opts))
	cmd.AddCommand(newKVClearCmd(opts))
	return cmd
}

func newKVKeysCmd(opts *Options) *cobra.Command {
	var pattern string
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "List stored keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			var re *regexp.Regexp
			if pattern != "" {
				var err error
				if re, err = regexp.Compile(pattern); err != nil {
					return fmt.Errorf("invalid --pattern: %w", err)
				}
			}

			ctx := cmd.Context()
			sess, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			keys := sess.store.GetAllKeys(ctx)
			if re != nil {
				keys = sess.store.GetKeysByPattern(ctx, re)
			}
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&pattern, "pattern", "", "Only keys matching this regular expression")
	return cmd
}

func newKVGetCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print the raw value stored under a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			if !sess.store.Contains(ctx, args[0]) {
				return fmt.Errorf("key %s not found", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), sess.store.GetString(ctx, args[0], ""))
			return nil
		},
	}
}

func newKVSizeCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "size",
		Short: "Print the approximate stored size in bytes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "%d keys, %d bytes\n", len(sess.store.GetAllKeys(ctx)), sess.store.GetSize(ctx))
			return nil
		},
	}
}

func newKVClearCmd(opts *Options) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every key from the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear the store without --yes")
			}

			ctx := cmd.Context()
			sess, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			if err := sess.store.Clear(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Store cleared.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm clearing every key")
	return cmd
}

package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/benvon/smart-trips/internal/models"
	"github.com/benvon/smart-trips/internal/services/plans"
	"github.com/spf13/cobra"
)

// NewPlansCmd creates the plans command with its query and mutation subcommands
func NewPlansCmd(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plans",
		Short: "Inspect and manage plans",
		Long:  "List, create, complete, cancel, delete, restore, import and export plans stored in the kv backend.",
	}
	cmd.AddCommand(newPlansListCmd(opts))
	cmd.AddCommand(newPlansShowCmd(opts))
	cmd.AddCommand(newPlansCreateCmd(opts))
	cmd.AddCommand(newPlansTransitionCmd(opts, "complete", "Mark a plan completed", (*plans.Service).CompletePlan))
	cmd.AddCommand(newPlansTransitionCmd(opts, "cancel", "Mark a plan cancelled", (*plans.Service).CancelPlan))
	cmd.AddCommand(newPlansTransitionCmd(opts, "restore", "Restore a soft-deleted plan", (*plans.Service).RestorePlan))
	cmd.AddCommand(newPlansDeleteCmd(opts))
	cmd.AddCommand(newPlansStatsCmd(opts))
	cmd.AddCommand(newPlansSyncStateCmd(opts))
	cmd.AddCommand(newPlansExportCmd(opts))
	cmd.AddCommand(newPlansImportCmd(opts))
	return cmd
}

func newPlansListCmd(opts *Options) *cobra.Command {
	var (
		statuses  []string
		tags      []string
		search    string
		from, to  string
		sortField string
		sortDir   string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List plans",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := &models.FilterOptions{Tags: tags, SearchQuery: search}
			for _, s := range statuses {
				status := models.PlanStatus(strings.TrimSpace(s))
				if !status.Valid() {
					return fmt.Errorf("invalid status %q", s)
				}
				filter.Status = append(filter.Status, status)
			}
			if from != "" || to != "" {
				if !plans.ValidDate(from) || !plans.ValidDate(to) {
					return fmt.Errorf("--from and --to must both be YYYY-MM-DD dates")
				}
				filter.DateRange = &models.DateRange{Start: from, End: to}
			}
			var sortOpts *models.SortOptions
			if sortField != "" {
				switch models.SortField(sortField) {
				case models.SortByTitle, models.SortByStartDate, models.SortByCreatedAt, models.SortByUpdatedAt:
				default:
					return fmt.Errorf("invalid sort field %q", sortField)
				}
				if sortDir != string(models.SortAsc) && sortDir != string(models.SortDesc) {
					return fmt.Errorf("invalid sort direction %q", sortDir)
				}
				sortOpts = &models.SortOptions{Field: models.SortField(sortField), Direction: models.SortDirection(sortDir)}
			}

			ctx := cmd.Context()
			sess, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			result := sess.service(opts).GetPlans(ctx, filter, sortOpts)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			if len(result) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No plans found")
				return nil
			}
			return writePlanTable(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Only plans with one of these statuses")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Only plans carrying one of these tags")
	cmd.Flags().StringVar(&search, "search", "", "Case-insensitive text search")
	cmd.Flags().StringVar(&from, "from", "", "First local date of the range (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Last local date of the range (YYYY-MM-DD)")
	cmd.Flags().StringVar(&sortField, "sort", "", "Sort field: title, startDate, createdAt or updatedAt")
	cmd.Flags().StringVar(&sortDir, "direction", "asc", "Sort direction: asc or desc")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func newPlansShowCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one plan as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			plan := sess.service(opts).GetPlanByID(ctx, args[0])
			if plan == nil {
				return fmt.Errorf("plan %s not found", args[0])
			}
			return writeJSON(cmd.OutOrStdout(), plan)
		},
	}
}

func newPlansCreateCmd(opts *Options) *cobra.Command {
	var form models.PlanFormData
	var start, end string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			form.Title = strings.TrimSpace(form.Title)
			if form.Title == "" {
				return fmt.Errorf("--title is required")
			}

			ctx := cmd.Context()
			sess, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			svc := sess.service(opts)
			form.StartDate, err = parsePlanTime(start, svc.Location())
			if err != nil {
				return fmt.Errorf("invalid --start: %w", err)
			}
			form.EndDate = form.StartDate
			if end != "" {
				form.EndDate, err = parsePlanTime(end, svc.Location())
				if err != nil {
					return fmt.Errorf("invalid --end: %w", err)
				}
				if form.EndDate.Before(form.StartDate) {
					return fmt.Errorf("--end must not be before --start")
				}
			}

			plan, err := svc.CreatePlan(ctx, form)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created plan %s\n", plan.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&form.Title, "title", "", "Plan title (required)")
	cmd.Flags().StringVar(&form.Description, "description", "", "Description")
	cmd.Flags().StringVar(&form.Location, "location", "", "Where the plan takes place")
	cmd.Flags().StringVar(&form.Notes, "notes", "", "Free-form notes")
	cmd.Flags().StringVar(&start, "start", "", "Start as YYYY-MM-DD (local midnight) or RFC 3339 (required)")
	cmd.Flags().StringVar(&end, "end", "", "End as YYYY-MM-DD or RFC 3339 (defaults to --start)")
	cmd.Flags().StringVar(&form.StartTime, "start-time", "", "Display start time (HH:mm)")
	cmd.Flags().StringVar(&form.EndTime, "end-time", "", "Display end time (HH:mm)")
	cmd.Flags().BoolVar(&form.AllDay, "all-day", false, "All-day plan")
	cmd.Flags().StringSliceVar(&form.Tags, "tag", nil, "Tags (repeatable or comma-separated)")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

func newPlansTransitionCmd(opts *Options, use, short string, apply func(*plans.Service, context.Context, string) (*models.Plan, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			plan, err := apply(sess.service(opts), ctx, args[0])
			if err != nil {
				return err
			}
			if plan == nil {
				return fmt.Errorf("plan %s not found", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Plan %s is now %s (version %d)\n", plan.ID, planState(plan), plan.Metadata.Version)
			return nil
		},
	}
}

func newPlansDeleteCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Soft-delete a plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			deleted, err := sess.service(opts).DeletePlan(ctx, args[0])
			if err != nil {
				return err
			}
			if !deleted {
				return fmt.Errorf("plan %s not found", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted plan %s\n", args[0])
			return nil
		},
	}
}

func newPlansStatsCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show plan statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			stats := sess.service(opts).GetPlanStats(ctx)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Total:     %d\n", stats.Total)
			for _, status := range models.AllPlanStatuses {
				fmt.Fprintf(out, "  %-10s %d\n", status+":", stats.ByStatus[status])
			}
			fmt.Fprintf(out, "Upcoming:  %d\n", stats.Upcoming)
			fmt.Fprintf(out, "Overdue:   %d\n", stats.Overdue)
			fmt.Fprintf(out, "Completed: %d\n", stats.Completed)
			return nil
		},
	}
}

func newPlansSyncStateCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "sync-state",
		Short: "Show the local sync state",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()
			return writeJSON(cmd.OutOrStdout(), sess.service(opts).GetSyncState(ctx))
		},
	}
}

func newPlansExportCmd(opts *Options) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export non-deleted plans as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			raw, err := sess.service(opts).ExportPlans(ctx)
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(raw))
				return err
			}
			if err := os.WriteFile(output, raw, 0o600); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported plans to %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this file instead of stdout")
	return cmd
}

func newPlansImportCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|->",
		Short: "Import plans from an export document",
		Long:  "Append the plans of an export document. Imported plans get fresh ids, timestamps and version 1.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw []byte
			var err error
			if args[0] == "-" {
				raw, err = io.ReadAll(cmd.InOrStdin())
			} else {
				raw, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to read import document: %w", err)
			}

			ctx := cmd.Context()
			sess, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			imported, err := sess.service(opts).ImportPlans(ctx, raw)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d plans\n", len(imported))
			return nil
		},
	}
}

// parsePlanTime accepts a local calendar date, taken as midnight in loc, or a
// full RFC 3339 timestamp
func parsePlanTime(value string, loc *time.Location) (time.Time, error) {
	if plans.ValidDate(value) {
		return time.ParseInLocation(plans.DateLayout, value, loc)
	}
	return time.Parse(time.RFC3339, value)
}

func planState(p *models.Plan) string {
	if p.Metadata.IsDeleted {
		return "deleted"
	}
	return string(p.Status)
}

func writePlanTable(w io.Writer, list []*models.Plan) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tSTART\tEND\tSTATUS\tVERSION\tTAGS")
	for _, p := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			p.ID, p.Title,
			p.StartDate.Format(time.RFC3339), p.EndDate.Format(time.RFC3339),
			planState(p), p.Metadata.Version, strings.Join(p.Tags, ","),
		)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

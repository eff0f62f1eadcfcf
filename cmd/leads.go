package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-studio/internal/leadfile"
	"github.com/sells-group/lead-studio/internal/leads"
	"github.com/sells-group/lead-studio/internal/model"
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Move, import and inspect leads",
}

// -- leads send --

var leadsSendCmd = &cobra.Command{
	Use:   "send <transition> <lead-number>...",
	Short: "Apply a guarded step transition to leads",
	Long:  "Transitions: " + strings.Join(leads.Transitions(), ", ") + ". Leads not in the required state are skipped.",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		ns, err := parseLeadNumbers(args[1:])
		if err != nil {
			return err
		}

		env, err := initStudio(ctx, "leads")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Leads.Send(ctx, args[0], ns)
		if err != nil {
			return eris.Wrap(err, "leads send")
		}
		formatTransition(os.Stdout, args[0], res)
		return nil
	},
}

// -- leads import --

var leadsImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import leads into a campaign from a CSV or JSON file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		campaign, _ := cmd.Flags().GetString("campaign")
		file, _ := cmd.Flags().GetString("file")
		pairs, _ := cmd.Flags().GetStringArray("map")
		dup, _ := cmd.Flags().GetString("dup-strategy")
		raw, _ := cmd.Flags().GetBool("raw")

		mapping, err := parseMapping(pairs)
		if err != nil {
			return err
		}
		opts, err := importOptions(dup, raw)
		if err != nil {
			return err
		}

		rows, err := leadfile.LoadStrings(ctx, file)
		if err != nil {
			return eris.Wrap(err, "leads import")
		}
		rows = leadfile.Remap(rows, mapping)

		env, err := initStudio(ctx, "leads")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Leads.ImportLeads(ctx, campaign, rows, opts)
		if err != nil {
			return eris.Wrap(err, "leads import")
		}

		zap.L().Info("lead import complete",
			zap.String("campaign", res.CampaignID),
			zap.Int("total", res.Total),
			zap.Int("imported", res.Imported),
			zap.Int("updated", res.Updated),
			zap.Int("skipped", res.Skipped),
			zap.Int("errors", res.Errors),
		)
		return printJSON(os.Stdout, res)
	},
}

func importOptions(dup string, raw bool) (leads.ImportOptions, error) {
	opts := leads.DefaultImportOptions()
	switch d := leads.DuplicateStrategy(dup); d {
	case leads.DuplicateSkip, leads.DuplicateUpdate, leads.DuplicateAppend:
		opts.Duplicates = d
	default:
		return opts, eris.Errorf("invalid --dup-strategy %q (skip, update or append)", dup)
	}
	if raw {
		opts.TrimWhitespace = false
		opts.CapitalizeNames = false
		opts.LowercaseEmails = false
	}
	return opts, nil
}

// -- leads import-output --

var leadsImportOutputCmd = &cobra.Command{
	Use:   "import-output <step>",
	Short: "Apply a step processor's output file to leads",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		step, err := model.ParseStep(args[0])
		if err != nil {
			return err
		}
		file, _ := cmd.Flags().GetString("file")

		rows, err := leadfile.Load(ctx, file)
		if err != nil {
			return eris.Wrap(err, "leads import-output")
		}
		records := make([]leads.Record, len(rows))
		for i, r := range rows {
			records[i] = leads.Record(r)
		}

		env, err := initStudio(ctx, "leads")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Leads.ImportStepOutput(ctx, step, records)
		if err != nil {
			return eris.Wrap(err, "leads import-output")
		}

		zap.L().Info("step output import complete",
			zap.String("step", string(step)),
			zap.Int("processed", res.Processed),
			zap.Int("not_found", res.NotFound),
			zap.Int("errors", res.Errors),
		)
		return printJSON(os.Stdout, res)
	},
}

// -- leads input --

var leadsInputCmd = &cobra.Command{
	Use:   "input <step>",
	Short: "Print the leads ready for a step, shaped for its processor",
	Long:  "Steps: verification, compScrap, box1, instantly, instantlyStock.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		limit, _ := cmd.Flags().GetInt("limit")

		env, err := initStudio(ctx, "leads")
		if err != nil {
			return err
		}
		defer env.Close()

		rows, err := env.Leads.GetInput(ctx, args[0], limit)
		if err != nil {
			return eris.Wrap(err, "leads input")
		}
		if rows == nil {
			rows = []model.InputRow{}
		}
		fmt.Fprintf(os.Stderr, "%d leads ready for %s\n", len(rows), args[0])
		return printJSON(os.Stdout, rows)
	},
}

// -- leads metrics --

var leadsMetricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show funnel counts, ratios and estimates",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		campaign, _ := cmd.Flags().GetString("campaign")
		asJSON, _ := cmd.Flags().GetBool("json")

		env, err := initStudio(ctx, "leads")
		if err != nil {
			return err
		}
		defer env.Close()

		m, err := env.Leads.GetMetrics(ctx, campaign)
		if err != nil {
			return eris.Wrap(err, "leads metrics")
		}
		if asJSON {
			return printJSON(os.Stdout, m)
		}
		formatMetrics(os.Stdout, m)
		return nil
	},
}

// -- leads run-verification / run-box1 --

var leadsRunVerificationCmd = &cobra.Command{
	Use:   "run-verification <lead-number>...",
	Short: "Verify lead emails with the precrafter's ANYMAILFINDER node",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		ns, err := parseLeadNumbers(args)
		if err != nil {
			return err
		}

		env, err := initStudio(ctx, "leads")
		if err != nil {
			return err
		}
		defer env.Close()

		sum, err := env.Flows.RunVerification(ctx, ns)
		if err != nil {
			return eris.Wrap(err, "leads run-verification")
		}
		return printJSON(os.Stdout, sum)
	},
}

var leadsRunBox1Cmd = &cobra.Command{
	Use:   "run-box1 <lead-number>...",
	Short: "Run the precrafter over leads and send them to Box1",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		ns, err := parseLeadNumbers(args)
		if err != nil {
			return err
		}

		env, err := initStudio(ctx, "leads")
		if err != nil {
			return err
		}
		defer env.Close()

		sum, err := env.Flows.RunBox1(ctx, ns)
		if err != nil {
			return eris.Wrap(err, "leads run-box1")
		}
		return printJSON(os.Stdout, sum)
	},
}

func init() {
	leadsImportCmd.Flags().String("campaign", "", "campaign ID (created when missing)")
	leadsImportCmd.Flags().String("file", "", "CSV or JSON file of leads (required)")
	leadsImportCmd.Flags().StringArray("map", nil, "column mapping source=target, repeatable")
	leadsImportCmd.Flags().String("dup-strategy", string(leads.DuplicateSkip), "duplicate email handling (skip, update, append)")
	leadsImportCmd.Flags().Bool("raw", false, "disable whitespace, name and email normalization")
	_ = leadsImportCmd.MarkFlagRequired("campaign")
	_ = leadsImportCmd.MarkFlagRequired("file")

	leadsImportOutputCmd.Flags().String("file", "", "CSV or JSON processor output (required)")
	_ = leadsImportOutputCmd.MarkFlagRequired("file")

	leadsInputCmd.Flags().Int("limit", 1000, "max number of leads")

	leadsMetricsCmd.Flags().String("campaign", "", "restrict to one campaign")
	leadsMetricsCmd.Flags().Bool("json", false, "print the raw metrics document")

	leadsCmd.AddCommand(leadsSendCmd)
	leadsCmd.AddCommand(leadsImportCmd)
	leadsCmd.AddCommand(leadsImportOutputCmd)
	leadsCmd.AddCommand(leadsInputCmd)
	leadsCmd.AddCommand(leadsMetricsCmd)
	leadsCmd.AddCommand(leadsRunVerificationCmd)
	leadsCmd.AddCommand(leadsRunBox1Cmd)
	rootCmd.AddCommand(leadsCmd)
}

// formatTransition writes a transition summary to w.
func formatTransition(out io.Writer, name string, r *model.TransitionResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Transition:\t%s\n", name)
	_, _ = fmt.Fprintf(w, "Requested:\t%d\n", r.Requested)
	_, _ = fmt.Fprintf(w, "Updated:\t%d\n", len(r.Updated))
	_, _ = fmt.Fprintf(w, "Skipped:\t%d\n", len(r.Skipped))
	if len(r.Failed) > 0 {
		_, _ = fmt.Fprintf(w, "Failed:\t%d\n", len(r.Failed))
	}
	_ = w.Flush()

	if len(r.Skipped) > 0 {
		_, _ = fmt.Fprintf(out, "\nSkipped (not in the required state): %v\n", r.Skipped)
	}
	for n, msg := range r.Failed {
		_, _ = fmt.Fprintf(out, "  lead %d: %s\n", n, msg)
	}
}

// formatMetrics writes the funnel report to w.
func formatMetrics(out io.Writer, m *model.Metrics) {
	c, r, e := m.Counts, m.Ratios, m.Estimates
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "STEP\tPENDING\tSENT\tDONE\tRATIO")
	_, _ = fmt.Fprintln(w, "----\t-------\t----\t----\t-----")
	_, _ = fmt.Fprintf(w, "verification\t%d\t%d\t%d\t%s\n", c.PendingVerification, c.SentVerification, c.Verified, pct(r.Verification))
	_, _ = fmt.Fprintf(w, "compScrap\t%d\t%d\t%d\t%s\n", c.PendingCompScrap, c.SentCompScrap, c.Scraped, pct(r.CompScrap))
	_, _ = fmt.Fprintf(w, "box1\t%d\t%d\t%d\t%s\n", c.PendingBox1, c.SentBox1, c.Fit+c.Hit, pct(r.FitHit))
	_, _ = fmt.Fprintf(w, "instantly\t%d\t%d\t%d\t%s\n", c.PendingInstantly, c.SentInstantly, c.Replied, pct(r.Reply))
	_ = w.Flush()

	_, _ = fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total export:\t%d\n", c.TotalExport)
	_, _ = fmt.Fprintf(w, "Box1 drop/fit/hit:\t%d / %d / %d\n", c.Drop, c.Fit, c.Hit)
	_, _ = fmt.Fprintf(w, "Positive replies:\t%d\n", c.PositiveReply)
	_, _ = fmt.Fprintf(w, "Converted:\t%d\n", c.Converted)
	_, _ = fmt.Fprintf(w, "Est. verified:\t%.0f\n", e.Verified)
	_, _ = fmt.Fprintf(w, "Est. fit+hit:\t%.0f\n", e.FitHit)
	_, _ = fmt.Fprintf(w, "Est. conversions:\t%.1f\n", e.Conversion)
	_ = w.Flush()
}

func pct(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

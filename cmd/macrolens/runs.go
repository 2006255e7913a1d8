package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/ternarybob/macrolens/internal/models"
	"github.com/ternarybob/macrolens/internal/services/report"
)

var (
	runsLimit  int
	runsDate   string
	showFormat string
	showOut    string
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List, show and delete stored audit runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored runs, newest first",
	RunE:  runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:     "show <run-id>",
	Short:   "Render a stored run",
	Example: `  macrolens runs show run_20250620_ab12cd34 --format pdf --out report.pdf`,
	Args:    cobra.ExactArgs(1),
	RunE:    runRunsShow,
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete a stored run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsDelete,
}

func init() {
	runsListCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Maximum runs to list (0 for all)")
	runsListCmd.Flags().StringVar(&runsDate, "date", "", "Only the latest run for this effective date (YYYY-MM-DD)")

	runsShowCmd.Flags().StringVarP(&showFormat, "format", "f", "md", "Output format: md, json, html or pdf")
	runsShowCmd.Flags().StringVarP(&showOut, "out", "o", "", "Write to a file instead of stdout")

	runsCmd.AddCommand(runsListCmd, runsShowCmd, runsDeleteCmd)
}

func runRunsList(cmd *cobra.Command, args []string) error {
	manager, err := openStorage()
	if err != nil {
		return err
	}
	defer manager.Close()

	var runs []*models.AuditRun
	if runsDate != "" {
		run, err := manager.AuditRunStorage().LatestForDate(cmd.Context(), runsDate)
		if err != nil {
			return err
		}
		runs = []*models.AuditRun{run}
	} else if runs, err = manager.AuditRunStorage().List(cmd.Context(), runsLimit); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tDATE\tPROVIDER\tREDACTIONS\tCOMPLETE\tCREATED")
	for _, r := range runs {
		provider := r.Provider
		if provider == "" {
			provider = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%t\t%s\n",
			r.ID, r.EffectiveDate, provider, r.Compliance.Redactions, r.Completeness.Complete,
			r.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	manager, err := openStorage()
	if err != nil {
		return err
	}
	defer manager.Close()

	run, err := manager.AuditRunStorage().Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := os.Stdout
	if showOut != "" {
		f, err := os.Create(showOut)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", showOut, err)
		}
		defer f.Close()
		out = f
	}

	renderer := report.NewRenderer(config.Report, logger)
	switch showFormat {
	case "md":
		_, err = fmt.Fprint(out, renderer.Markdown(run))
	case "json":
		err = printJSON(out, run)
	case "html":
		var body []byte
		if body, err = renderer.RenderHTML(run); err == nil {
			_, err = out.Write(body)
		}
	case "pdf":
		var body []byte
		if body, err = renderer.RenderPDF(run); err == nil {
			_, err = out.Write(body)
		}
	default:
		return fmt.Errorf("unknown format %q (want md, json, html or pdf)", showFormat)
	}
	return err
}

func runRunsDelete(cmd *cobra.Command, args []string) error {
	manager, err := openStorage()
	if err != nil {
		return err
	}
	defer manager.Close()

	if err := manager.AuditRunStorage().Delete(cmd.Context(), args[0]); err != nil {
		return err
	}
	logger.Info().Str("run_id", args[0]).Msg("Audit run deleted")
	return nil
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/ternarybob/macrolens/internal/app"
	"github.com/ternarybob/macrolens/internal/handlers"
	"github.com/ternarybob/macrolens/internal/models"
	"github.com/ternarybob/macrolens/internal/services/report"
)

var (
	auditInput  string
	auditFormat string
	auditSave   bool
	auditWrite  bool
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Run the audit layer over a JSON request",
	Long: `Reads an audit request (effective_date, metrics, narrative and optional
section09, section11, events and price_bars) and prints the audited run.

With --save the run is stored and announced like a pipeline run. With
--write the markdown, HTML and PDF reports are written to report.output_dir.`,
	Example: `  macrolens audit --input request.json
  macrolens audit --input request.json --format json --save`,
	RunE: runAudit,
}

func init() {
	auditCmd.Flags().StringVarP(&auditInput, "input", "i", "-", "Audit request JSON file (- for stdin)")
	auditCmd.Flags().StringVarP(&auditFormat, "format", "f", "md", "Output format: md or json")
	auditCmd.Flags().BoolVar(&auditSave, "save", false, "Store the run in the database")
	auditCmd.Flags().BoolVar(&auditWrite, "write", false, "Write report files to the output directory")
}

func runAudit(cmd *cobra.Command, args []string) error {
	if auditFormat != "md" && auditFormat != "json" {
		return fmt.Errorf("unknown format %q (want md or json)", auditFormat)
	}

	var req handlers.AuditRequest
	if err := readJSON(auditInput, &req); err != nil {
		return err
	}
	if err := handlers.Validate(req); err != nil {
		return err
	}
	areq, err := req.ToRequest()
	if err != nil {
		return err
	}

	var run *models.AuditRun
	if auditSave {
		application, err := app.New(config, logger)
		if err != nil {
			return err
		}
		defer application.Close()

		if run, err = application.AuditService.Run(cmd.Context(), areq); err != nil {
			return err
		}
	} else {
		auditService, err := newAuditService()
		if err != nil {
			return err
		}
		if run, err = auditService.Run(cmd.Context(), areq); err != nil {
			return err
		}
	}

	renderer := report.NewRenderer(config.Report, logger)
	if auditWrite {
		files, err := renderer.WriteFiles(run, "")
		if err != nil {
			return err
		}
		logger.Info().Strs("files", files).Str("run_id", run.ID).Msg("Report files written")
	}

	if auditFormat == "json" {
		return printJSON(os.Stdout, run)
	}
	fmt.Fprint(os.Stdout, renderer.Markdown(run))
	return nil
}

package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/ternarybob/macrolens/internal/app"
)

var pipelineDate string

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run the daily pipeline once",
	Long: `Reads the configured WisdomTree and CME PDFs, extracts metrics and the
narrative through the LLM provider, audits the result and writes the
report files. Prints the pipeline result as JSON.`,
	Example: `  macrolens pipeline --date 2025-06-20`,
	RunE:    runPipeline,
}

func init() {
	pipelineCmd.Flags().StringVarP(&pipelineDate, "date", "d", "", "Effective date (YYYY-MM-DD, default today)")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	date := time.Now()
	if pipelineDate != "" {
		var err error
		if date, err = time.Parse("2006-01-02", pipelineDate); err != nil {
			return err
		}
	}

	application, err := app.New(config, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	result, err := application.PipelineService.Run(cmd.Context(), date)
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, result)
}

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/scrumbot/internal/service"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate and list written reports",
	Long: `Generate plain text reports with the configured LLM and list stored ones.

Report types:
  sprint    A sprint with its goal and progress
  standup   One stored standup
  employee  All tasks assigned to an employee

Examples:
  scrumbot report generate sprint 4b1e...
  scrumbot report generate employee 3f2c...
  scrumbot report list`,
}

var reportGenerateCmd = &cobra.Command{
	Use:       "generate <type> <id>",
	Short:     "Generate and store a report",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{service.ReportSprint, service.ReportStandup, service.ReportEmployee},
	RunE:      runReportGenerate,
}

var reportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List reports, newest first",
	Args:  cobra.NoArgs,
	RunE:  runReportList,
}

func init() {
	reportCmd.AddCommand(reportGenerateCmd)
	reportCmd.AddCommand(reportListCmd)
}

func runReportGenerate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	store, err := openDB(ctx)
	if err != nil {
		return err
	}
	writer, err := openLLM(ctx)
	if err != nil {
		return err
	}

	text, err := service.NewReportService(store, writer, cfg.DefaultProject).Generate(ctx, args[0], args[1])
	if err != nil {
		return fmt.Errorf("generate report: %w", err)
	}

	if jsonOut {
		printJSON(map[string]string{"type": args[0], "id": args[1], "report": text})
		return nil
	}
	fmt.Println(text)
	return nil
}

func runReportList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	store, err := openDB(ctx)
	if err != nil {
		return err
	}
	reports, err := store.ListReports(ctx)
	if err != nil {
		return fmt.Errorf("list reports: %w", err)
	}

	if jsonOut {
		printJSON(reports)
		return nil
	}
	if len(reports) == 0 {
		fmt.Println("No reports found.")
		return nil
	}

	fmt.Printf("Reports (%d):\n\n", len(reports))
	for _, r := range reports {
		fmt.Printf("- %s [%s] %s\n", formatDate(r.Date), r.Kind, orDash(r.ProjectName))
		if verbose {
			fmt.Printf("  %s\n", r.Content)
		} else {
			fmt.Printf("  %s\n", truncate(r.Content, 100))
		}
	}
	return nil
}

package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/scrumbot/internal/service"
)

var (
	standupEmployee    string
	standupConfirm     bool
	standupNERModel    string
	standupIntentModel string
	standupLimit       int
)

var standupCmd = &cobra.Command{
	Use:   "standup <message>",
	Short: "Understand a standup message and optionally save it",
	Long: `Classify a standup message, extract its fields and, with --confirm,
store it for the given employee.

Without --confirm nothing is written; the command only shows what was
understood.

Subcommands:
  list  Show stored standups

Examples:
  scrumbot standup "Yesterday I fixed the CI, today I review PRs, no blockers"
  scrumbot standup --employee 3f2c... --confirm "Today I'm pairing on the parser"
  scrumbot standup list --employee 3f2c... -n 5`,
	Args: cobra.ExactArgs(1),
	RunE: runStandup,
}

var standupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored standups, newest first",
	Args:  cobra.NoArgs,
	RunE:  runStandupList,
}

func init() {
	standupCmd.Flags().StringVarP(&standupEmployee, "employee", "e", "", "employee id the standup belongs to")
	standupCmd.Flags().BoolVar(&standupConfirm, "confirm", false, "save a recognized standup update")
	standupCmd.Flags().StringVar(&standupNERModel, "ner-model", "", "field extractor artifact (default from config)")
	standupCmd.Flags().StringVar(&standupIntentModel, "intent-model", "", "intent classifier artifact (default from config)")

	standupListCmd.Flags().StringVarP(&standupEmployee, "employee", "e", "", "only this employee")
	standupListCmd.Flags().IntVarP(&standupLimit, "limit", "n", 20, "max results")

	standupCmd.AddCommand(standupListCmd)
}

func runStandup(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if standupNERModel != "" {
		extractModel = standupNERModel
	}
	if standupIntentModel != "" {
		classifyModel = standupIntentModel
	}
	p, err := loadPipeline()
	if err != nil {
		return err
	}
	c, err := loadClassifier()
	if err != nil {
		return err
	}

	svc := service.NewStandupService(c, p, nil)
	if standupConfirm {
		store, err := openDB(ctx)
		if err != nil {
			return err
		}
		svc = service.NewStandupService(c, p, store)
	}

	res, err := svc.Process(ctx, service.StandupInput{
		Text:       args[0],
		EmployeeID: standupEmployee,
		Confirm:    standupConfirm,
	})
	if err != nil {
		return fmt.Errorf("process standup: %w", err)
	}

	if jsonOut {
		printJSON(res)
		return nil
	}

	fmt.Printf("Intent: %s (%.2f)\n", res.Intent, res.Score)
	if len(res.Entities) > 0 {
		names := make([]string, 0, len(res.Entities))
		for name := range res.Entities {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Println("Fields:")
		for _, name := range names {
			fmt.Printf("  %-10s %s\n", name, res.Entities[name])
		}
	}
	fmt.Println(res.Reply)
	if res.Standup != nil && verbose {
		fmt.Printf("  ID: %s  Date: %s\n", res.Standup.ID.ID, formatDate(res.Standup.Date))
	}
	return nil
}

func runStandupList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	store, err := openDB(ctx)
	if err != nil {
		return err
	}
	standups, err := store.ListStandups(ctx, standupEmployee, standupLimit)
	if err != nil {
		return fmt.Errorf("list standups: %w", err)
	}

	if jsonOut {
		printJSON(standups)
		return nil
	}
	if len(standups) == 0 {
		fmt.Println("No standups found.")
		return nil
	}

	fmt.Printf("Standups (%d):\n\n", len(standups))
	for _, s := range standups {
		fmt.Printf("- %s  %s\n", formatDate(s.Date), truncate(s.Text, 70))
		if verbose {
			fmt.Printf("  Yesterday: %s\n", orDash(s.Yesterday))
			fmt.Printf("  Today:     %s\n", orDash(s.Today))
			fmt.Printf("  Blockers:  %s\n", orDash(s.Blockers))
		}
	}
	return nil
}

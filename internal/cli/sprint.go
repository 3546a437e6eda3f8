package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/scrumbot/internal/service"
)

var (
	sprintProject     string
	sprintName        string
	sprintDescription string
)

var sprintCmd = &cobra.Command{
	Use:   "sprint",
	Short: "Plan and list sprints",
	Long: `Plan sprints with the configured LLM and list stored sprints.

Subcommands:
  generate  Ask the planner for a sprint with tasks and subtasks and store it
  list      List sprints with their project and progress

Examples:
  scrumbot sprint generate --name "Checkout revamp" --description "Rebuild the checkout flow"
  scrumbot sprint generate --project web-shop --name "Search" --description "Faceted search"
  scrumbot sprint list`,
}

var sprintGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate and store a sprint plan",
	Args:  cobra.NoArgs,
	RunE:  runSprintGenerate,
}

var sprintListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sprints, newest first",
	Args:  cobra.NoArgs,
	RunE:  runSprintList,
}

func init() {
	sprintGenerateCmd.Flags().StringVarP(&sprintProject, "project", "p", "", "project id (default from config)")
	sprintGenerateCmd.Flags().StringVarP(&sprintName, "name", "n", "", "sprint name (required)")
	sprintGenerateCmd.Flags().StringVarP(&sprintDescription, "description", "d", "", "what the sprint should achieve (required)")
	_ = sprintGenerateCmd.MarkFlagRequired("name")
	_ = sprintGenerateCmd.MarkFlagRequired("description")

	sprintCmd.AddCommand(sprintGenerateCmd)
	sprintCmd.AddCommand(sprintListCmd)
}

func runSprintGenerate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	store, err := openDB(ctx)
	if err != nil {
		return err
	}
	planner, err := openLLM(ctx)
	if err != nil {
		return err
	}

	res, err := service.NewSprintService(store, planner, cfg.DefaultProject).
		Generate(ctx, sprintProject, sprintName, sprintDescription)
	if err != nil {
		return fmt.Errorf("generate sprint: %w", err)
	}

	if jsonOut {
		printJSON(res)
		return nil
	}

	fmt.Printf("Created sprint: %s (%s)\n", res.Sprint.Name, res.Sprint.ID.ID)
	fmt.Printf("  Goal: %s\n", res.Plan.Goal)
	for _, t := range res.Plan.Tasks {
		fmt.Printf("  - %s\n", t.Title)
		for _, st := range t.Subtasks {
			fmt.Printf("      - %s\n", st.Title)
		}
	}
	fmt.Printf("\n%d tasks stored\n", len(res.Tasks))
	return nil
}

func runSprintList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	store, err := openDB(ctx)
	if err != nil {
		return err
	}
	sprints, err := store.ListSprints(ctx)
	if err != nil {
		return fmt.Errorf("list sprints: %w", err)
	}

	if jsonOut {
		printJSON(sprints)
		return nil
	}
	if len(sprints) == 0 {
		fmt.Println("No sprints found.")
		return nil
	}

	fmt.Printf("%-12s %-28s %-20s %-10s %s\n", "ID", "NAME", "PROJECT", "PROGRESS", "START")
	fmt.Println("--------------------------------------------------------------------------------")
	for _, s := range sprints {
		fmt.Printf("%-12s %-28s %-20s %-10s %s\n",
			truncate(fmt.Sprint(s.ID.ID), 12), truncate(s.Name, 28), truncate(orDash(s.ProjectName), 20),
			fmt.Sprintf("%.0f%%", s.Progress*100), formatDate(s.StartDate))
	}
	return nil
}

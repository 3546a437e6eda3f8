package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects or employees",
	Long: `List the team dashboard.

Subcommands:
  projects   Projects with scrum master, sprint count, average progress and team (default)
  employees  Employees with their project and completed tasks

Examples:
  scrumbot list
  scrumbot list employees
  scrumbot list projects --json`,
	RunE: runList,
}

var listProjectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List projects",
	RunE:  runListProjects,
}

var listEmployeesCmd = &cobra.Command{
	Use:   "employees",
	Short: "List employees with task counts",
	RunE:  runListEmployees,
}

func init() {
	listCmd.AddCommand(listProjectsCmd)
	listCmd.AddCommand(listEmployeesCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	// If no subcommand, run projects
	return runListProjects(cmd, args)
}

func runListProjects(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	store, err := openDB(ctx)
	if err != nil {
		return err
	}
	projects, err := store.ListProjects(ctx)
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}

	if jsonOut {
		printJSON(projects)
		return nil
	}
	if len(projects) == 0 {
		fmt.Println("No projects found.")
		return nil
	}

	fmt.Printf("Projects (%d):\n\n", len(projects))
	for _, p := range projects {
		progress := "-"
		if p.AvgProgress != nil {
			progress = fmt.Sprintf("%.0f%%", *p.AvgProgress*100)
		}
		fmt.Printf("- %s (%s)\n", p.Name, p.ID.ID)
		fmt.Printf("  Scrum master: %s  Sprints: %d  Avg progress: %s\n", orDash(p.ScrumMaster), p.SprintCount, progress)
		if len(p.Team) > 0 {
			fmt.Printf("  Team: %s\n", strings.Join(p.Team, ", "))
		}
	}
	return nil
}

func runListEmployees(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	store, err := openDB(ctx)
	if err != nil {
		return err
	}
	employees, err := store.ListEmployees(ctx)
	if err != nil {
		return fmt.Errorf("list employees: %w", err)
	}

	if jsonOut {
		printJSON(employees)
		return nil
	}
	if len(employees) == 0 {
		fmt.Println("No employees found.")
		return nil
	}

	fmt.Printf("Employees (%d):\n\n", len(employees))
	for _, e := range employees {
		fmt.Printf("- %s [%s] %s  %d/%d tasks done\n", e.Name, e.Role, orDash(e.ProjectName), e.CompletedTasks, e.TotalTasks)
		if verbose {
			fmt.Printf("  ID: %s\n", e.ID.ID)
		}
	}
	return nil
}

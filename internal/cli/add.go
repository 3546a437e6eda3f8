package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	addEmail       string
	addDescription string
	addScrumMaster string
	addRole        string
	addProject     string
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add scrum masters, projects and employees",
	Long: `Add team records.

Project ids are derived from the project name ("Web Shop" becomes web-shop).

Examples:
  scrumbot add scrum-master "Dana Lee" --email dana@example.com
  scrumbot add project "Web Shop" --description "Customer storefront" --scrum-master 7a1c...
  scrumbot add employee "Sam Ortiz" --role backend --project web-shop`,
}

var addScrumMasterCmd = &cobra.Command{
	Use:   "scrum-master <name>",
	Short: "Add a scrum master",
	Args:  cobra.ExactArgs(1),
	RunE:  runAddScrumMaster,
}

var addProjectCmd = &cobra.Command{
	Use:   "project <name>",
	Short: "Add a project",
	Args:  cobra.ExactArgs(1),
	RunE:  runAddProject,
}

var addEmployeeCmd = &cobra.Command{
	Use:   "employee <name>",
	Short: "Add an employee to a project",
	Args:  cobra.ExactArgs(1),
	RunE:  runAddEmployee,
}

func init() {
	addScrumMasterCmd.Flags().StringVar(&addEmail, "email", "", "email address")

	addProjectCmd.Flags().StringVarP(&addDescription, "description", "d", "", "project description")
	addProjectCmd.Flags().StringVar(&addScrumMaster, "scrum-master", "", "scrum master id")

	addEmployeeCmd.Flags().StringVarP(&addRole, "role", "r", "developer", "role in the team")
	addEmployeeCmd.Flags().StringVarP(&addProject, "project", "p", "", "project id (default from config)")

	addCmd.AddCommand(addScrumMasterCmd)
	addCmd.AddCommand(addProjectCmd)
	addCmd.AddCommand(addEmployeeCmd)
}

func optionalFlag(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func runAddScrumMaster(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	store, err := openDB(ctx)
	if err != nil {
		return err
	}
	sm, err := store.CreateScrumMaster(ctx, args[0], optionalFlag(addEmail))
	if err != nil {
		return fmt.Errorf("create scrum master: %w", err)
	}

	if jsonOut {
		printJSON(sm)
		return nil
	}
	fmt.Printf("Created scrum master: %s (%s)\n", sm.Name, sm.ID.ID)
	return nil
}

func runAddProject(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	store, err := openDB(ctx)
	if err != nil {
		return err
	}
	p, err := store.CreateProject(ctx, args[0], optionalFlag(addDescription), addScrumMaster)
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}

	if jsonOut {
		printJSON(p)
		return nil
	}
	fmt.Printf("Created project: %s (%s)\n", p.Name, p.ID.ID)
	return nil
}

func runAddEmployee(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	project := addProject
	if project == "" {
		project = cfg.DefaultProject
	}
	if project == "" {
		return fmt.Errorf("create employee: --project is required")
	}

	store, err := openDB(ctx)
	if err != nil {
		return err
	}
	e, err := store.CreateEmployee(ctx, args[0], addRole, project)
	if err != nil {
		return fmt.Errorf("create employee: %w", err)
	}

	if jsonOut {
		printJSON(e)
		return nil
	}
	fmt.Printf("Created employee: %s (%s)\n", e.Name, e.ID.ID)
	if verbose {
		fmt.Printf("  Role: %s\n", e.Role)
		fmt.Printf("  Project: %s\n", project)
	}
	return nil
}

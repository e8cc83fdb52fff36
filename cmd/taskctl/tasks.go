package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/noah-isme/taskroster/internal/models"
	"github.com/noah-isme/taskroster/internal/session"
	appErrors "github.com/noah-isme/taskroster/pkg/errors"
)

func listCmd(a *app) *cobra.Command {
	var status, priority string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session(cmd.Context(), nil)
			if err != nil {
				return err
			}
			if err := s.SetStatusFilter(status); err != nil {
				return err
			}
			if err := s.SetPriorityFilter(priority); err != nil {
				return err
			}
			renderTasks(cmd.OutOrStdout(), s.Visible(), s.Counts())
			return nil
		},
	}
	cmd.Flags().StringVarP(&status, "status", "s", "all", "all, active or completed")
	cmd.Flags().StringVarP(&priority, "priority", "p", "all", "all, low, medium or high")
	return cmd
}

func addCmd(a *app) *cobra.Command {
	var priority string
	cmd := &cobra.Command{
		Use:   "add <description>",
		Short: "Add a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session(cmd.Context(), nil)
			if err != nil {
				return err
			}
			task, err := s.Create(cmd.Context(), strings.Join(args, " "), priority)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render(fmt.Sprintf("added task %d", task.ID)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "low, medium or high (default medium)")
	return cmd
}

func editCmd(a *app) *cobra.Command {
	var description, priority, category string
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change task fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var fields models.TaskFields
			if cmd.Flags().Changed("description") {
				fields.Description = &description
			}
			if cmd.Flags().Changed("priority") {
				p := strings.ToLower(strings.TrimSpace(priority))
				fields.Priority = &p
			}
			if cmd.Flags().Changed("category") {
				fields.Category = &category
			}
			s, err := a.session(cmd.Context(), nil)
			if err != nil {
				return err
			}
			task, err := s.Update(cmd.Context(), id, fields)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render(fmt.Sprintf("updated task %d", task.ID)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "New description")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "New priority")
	cmd.Flags().StringVarP(&category, "category", "c", "", "New category")
	return cmd
}

func toggleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Flip a task between active and completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			s, err := a.session(cmd.Context(), nil)
			if err != nil {
				return err
			}
			task, err := s.Toggle(cmd.Context(), id)
			if err != nil {
				return err
			}
			state := "active"
			if task.Completed {
				state = "completed"
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render(fmt.Sprintf("task %d is %s", task.ID, state)))
			return nil
		},
	}
}

func rmCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			s, err := a.session(cmd.Context(), prompter(cmd.InOrStdin(), cmd.OutOrStdout(), yes))
			if err != nil {
				return err
			}
			if err := s.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render(fmt.Sprintf("deleted task %d", id)))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func clearCompletedCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear-completed",
		Short: "Delete every completed task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session(cmd.Context(), prompter(cmd.InOrStdin(), cmd.OutOrStdout(), yes))
			if err != nil {
				return err
			}
			n, err := s.ClearCompleted(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render(fmt.Sprintf("removed %d completed tasks", n)))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func exportCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every task to a CSV file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session(cmd.Context(), nil)
			if err != nil {
				return err
			}
			payload, filename, err := s.ExportCSV()
			if err != nil {
				return err
			}
			if out == "-" {
				_, err := cmd.OutOrStdout().Write(payload)
				return err
			}
			if out == "" {
				out = filename
			}
			if err := os.WriteFile(out, payload, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render(fmt.Sprintf("wrote %d tasks to %s", len(s.Tasks()), out)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file, - for stdout (default tasks_export.csv)")
	return cmd
}

// prompter asks on out and reads the answer from in. yes approves without asking.
func prompter(in io.Reader, out io.Writer, yes bool) session.Confirmer {
	reader := bufio.NewReader(in)
	return func(action string, id int64) bool {
		if yes {
			return true
		}
		var question string
		switch action {
		case session.ActionDelete:
			question = "Delete task " + strconv.FormatInt(id, 10) + "?"
		case session.ActionClearCompleted:
			question = "Delete every completed task?"
		default:
			question = "Continue with " + action + "?"
		}
		fmt.Fprint(out, warnStyle.Render(question)+" [y/N] ")
		answer, _ := reader.ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
			return true
		default:
			return false
		}
	}
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "task id must be a positive integer")
	}
	return id, nil
}

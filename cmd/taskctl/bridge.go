package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/taskroster/internal/models"
	"github.com/noah-isme/taskroster/pkg/bridge"
	appErrors "github.com/noah-isme/taskroster/pkg/errors"
	"github.com/noah-isme/taskroster/pkg/record"
)

const actionMerge = "merge"

func bridgeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "Reconcile, merge and validate student CSV files",
	}
	cmd.AddCommand(bridgeReconcileCmd(a))
	cmd.AddCommand(bridgeMergeCmd(a))
	cmd.AddCommand(bridgeValidateCmd(a))
	return cmd
}

func (a *app) studentSchema() record.Schema {
	return models.StudentSchema(a.cfg.Students.MinAge, time.Now)
}

func (a *app) readStudents(path string) (*bridge.ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrParse.Code, appErrors.ErrParse.Status, "cannot read "+path)
	}
	return bridge.Parse(a.studentSchema(), data, bridge.WithDefault(models.StudentFieldTimestamp, func() string {
		return time.Now().UTC().Format(time.RFC3339)
	})), nil
}

func bridgeReconcileCmd(a *app) *cobra.Command {
	var pdfPath string
	cmd := &cobra.Command{
		Use:   "reconcile <local.csv> <imported.csv>",
		Short: "Compare two student files by id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			local, err := a.readStudents(args[0])
			if err != nil {
				return err
			}
			imported, err := a.readStudents(args[1])
			if err != nil {
				return err
			}
			report := bridge.Reconcile(a.studentSchema(), local.Records, imported.Records)
			out := cmd.OutOrStdout()
			renderDropped(out, args[0], local.Dropped)
			renderDropped(out, args[1], imported.Dropped)
			renderReport(out, report)
			if pdfPath == "" {
				return nil
			}
			pdf, err := bridge.RenderReport(report, "Student reconciliation")
			if err != nil {
				return err
			}
			if err := os.WriteFile(pdfPath, pdf, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", pdfPath, err)
			}
			fmt.Fprintln(out, okStyle.Render("wrote "+pdfPath))
			return nil
		},
	}
	cmd.Flags().StringVar(&pdfPath, "pdf", "", "Also write the report as PDF to this path")
	return cmd
}

func bridgeMergeCmd(a *app) *cobra.Command {
	var outPath string
	var yes bool
	cmd := &cobra.Command{
		Use:   "merge <local.csv> <imported.csv>",
		Short: "Merge imported students into the local file",
		Long: `Conflicting ids take the imported row and unknown ids are appended.
The merged collection is written to --out, or back over local.csv when --out is empty.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			local, err := a.readStudents(args[0])
			if err != nil {
				return err
			}
			imported, err := a.readStudents(args[1])
			if err != nil {
				return err
			}
			schema := a.studentSchema()
			if sum := schema.Summarize(imported.Records); sum.Invalid > 0 {
				details := make([]string, 0, len(sum.Issues))
				for _, issue := range sum.Issues {
					details = append(details, fmt.Sprintf("row %d (%s): %s", issue.Index+1, issue.ID, strings.Join(issue.Errors, "; ")))
				}
				return appErrors.Validation("imported file has invalid rows", details)
			}

			result := bridge.Merge(schema, local.Records, imported.Records)
			target := outPath
			if target == "" {
				target = args[0]
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d students will be updated and %d added in %s\n", len(result.Updated), len(result.Added), target)
			if !prompter(cmd.InOrStdin(), cmd.OutOrStdout(), yes)(actionMerge, 0) {
				return appErrors.ErrCancelled
			}

			payload, err := bridge.Serialize(schema, result.Records)
			if err != nil {
				return err
			}
			if err := os.WriteFile(target, payload, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", target, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render(fmt.Sprintf("merged: %d updated, %d added", len(result.Updated), len(result.Added))))
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write the merged file here instead of over local.csv")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func bridgeValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file.csv>",
		Short: "Validate a student file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := a.readStudents(args[0])
			if err != nil {
				return err
			}
			schema := a.studentSchema()
			out := cmd.OutOrStdout()
			renderDropped(out, args[0], parsed.Dropped)
			renderSummary(out, schema.Summarize(parsed.Records), schema.Consistency(parsed.Records, models.StudentFieldName, models.StudentFieldCourse))
			return nil
		},
	}
}

package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/noah-isme/taskroster/internal/filter"
	"github.com/noah-isme/taskroster/internal/models"
	"github.com/noah-isme/taskroster/pkg/bridge"
	"github.com/noah-isme/taskroster/pkg/record"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8b949e"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5A50A"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5534B")).Bold(true)

	priorityStyles = map[string]lipgloss.Style{
		models.PriorityHigh:   lipgloss.NewStyle().Foreground(lipgloss.Color("#E5534B")),
		models.PriorityMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("#E5A50A")),
		models.PriorityLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("#57AB5A")),
	}
)

// table renders rows under bold headers with columns sized to their widest cell.
type table struct {
	headers []string
	rows    [][]string
}

func (t *table) add(row ...string) {
	t.rows = append(t.rows, row)
}

func (t *table) render(w io.Writer) {
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = lipgloss.Width(h) + 2
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell)+2 > widths[i] {
				widths[i] = lipgloss.Width(cell) + 2
			}
		}
	}

	var sb strings.Builder
	total := len(widths) - 1
	for i, h := range t.headers {
		total += widths[i]
		sb.WriteString(headerStyle.Width(widths[i]).Render(h))
		if i < len(t.headers)-1 {
			sb.WriteString(mutedStyle.Render("|"))
		}
	}
	sb.WriteString("\n")
	sb.WriteString(mutedStyle.Render(strings.Repeat("-", total)))
	sb.WriteString("\n")
	for _, row := range t.rows {
		for i, cell := range row {
			if i >= len(widths) {
				break
			}
			sb.WriteString(cellStyle.Width(widths[i]).Render(cell))
			if i < len(row)-1 {
				sb.WriteString(mutedStyle.Render("|"))
			}
		}
		sb.WriteString("\n")
	}
	fmt.Fprint(w, sb.String())
}

func renderTasks(w io.Writer, tasks []models.Task, counts filter.Counts) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("no tasks"))
	} else {
		t := &table{headers: []string{"ID", "Done", "Priority", "Category", "Description"}}
		for _, task := range tasks {
			done := "[ ]"
			if task.Completed {
				done = "[x]"
			}
			priority := task.Priority
			if style, ok := priorityStyles[priority]; ok {
				priority = style.Render(priority)
			}
			t.add(strconv.FormatInt(task.ID, 10), done, priority, task.Category, task.Description)
		}
		t.render(w)
	}
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("%d total, %d active, %d completed", counts.Total, counts.Active, counts.Completed)))
}

func renderDropped(w io.Writer, source string, dropped []bridge.RowError) {
	for _, d := range dropped {
		fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("%s line %d skipped: %s", source, d.Line, d.Reason)))
	}
}

func renderReport(w io.Writer, report bridge.Report) {
	for _, line := range bridge.ReportSummary(report) {
		fmt.Fprintln(w, line)
	}
	if len(report.Conflicts) == 0 {
		return
	}
	t := &table{headers: []string{"ID", "Fields"}}
	for _, c := range report.Conflicts {
		t.add(c.ID, strings.Join(c.Fields, ", "))
	}
	fmt.Fprintln(w)
	t.render(w)
}

func renderSummary(w io.Writer, sum record.Summary, issues []record.ConsistencyIssue) {
	fmt.Fprintf(w, "%d records, %s, %s\n", sum.Total,
		okStyle.Render(strconv.Itoa(sum.Valid)+" valid"),
		errorStyle.Render(strconv.Itoa(sum.Invalid)+" invalid"))
	if len(sum.Issues) > 0 {
		t := &table{headers: []string{"Row", "ID", "Errors"}}
		for _, issue := range sum.Issues {
			t.add(strconv.Itoa(issue.Index+1), issue.ID, strings.Join(issue.Errors, "; "))
		}
		t.render(w)
	}
	for _, issue := range issues {
		fmt.Fprintln(w, warnStyle.Render(issue.Message))
	}
}

// Package observability provides formatted output utilities for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jonathan/search-runner/internal/reconcile"
	"github.com/jonathan/search-runner/internal/store"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxJobsToShow is the default number of jobs to display in lists
	maxJobsToShow = 10
)

// Printer handles formatted output
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintSearch outputs a human-readable summary of a search.
func (p *Printer) PrintSearch(search *store.Search) {
	if search == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Name:     %s\n", search.Name))
	sb.WriteString(fmt.Sprintf("Slug:     %s\n", search.Slug))
	if search.Schedule != "" {
		sb.WriteString(fmt.Sprintf("Schedule: every %s\n", search.Schedule))
	} else {
		sb.WriteString("Schedule: manual only\n")
	}
	sb.WriteString(fmt.Sprintf("Created:  %s", FormatAge(search.CreatedAt)))

	p.printBox("Search", sb.String())
}

// PrintJob outputs a one-line summary of a job.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintJob(job *store.Job) {
	if job == nil {
		return
	}
	line := fmt.Sprintf("%s  %-9s  %s", job.ID, job.Status, FormatAge(job.CreatedAt))
	if job.Title != "" {
		line += "  " + job.Title
	}
	if job.Error != "" {
		line += "  (" + job.Error + ")"
	}
	fmt.Fprintln(p.out, line)
}

// PrintJobList outputs a search's recent jobs.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintJobList(slug string, jobs []store.Job) {
	fmt.Fprintf(p.out, "Jobs for %s:\n", slug)
	if len(jobs) == 0 {
		fmt.Fprintln(p.out, "  (none)")
		return
	}
	count := min(len(jobs), maxJobsToShow)
	for i := 0; i < count; i++ {
		job := jobs[i]
		fmt.Fprint(p.out, "  ")
		p.PrintJob(&job)
	}
	if len(jobs) > maxJobsToShow {
		fmt.Fprintf(p.out, "  ... and %d more\n", len(jobs)-maxJobsToShow)
	}
}

// PrintReconcileReport outputs the result of a reconciliation pass.
func (p *Printer) PrintReconcileReport(report reconcile.Report) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Running jobs checked: %d\n", report.Checked))
	sb.WriteString(fmt.Sprintf("Marked completed:     %d\n", len(report.Completed)))
	sb.WriteString(fmt.Sprintf("Marked failed:        %d\n", len(report.Failed)))
	if report.ClearedPointer {
		sb.WriteString("Cleared stale current job pointer\n")
	}
	if !report.Changed() {
		sb.WriteString("Nothing to repair")
	}
	p.printBox("Reconcile", strings.TrimRight(sb.String(), "\n"))
}

// FormatAge renders a timestamp as a compact "how long ago" string
func FormatAge(t time.Time) string {
	age := time.Since(t)
	switch {
	case age < time.Minute:
		return "just now"
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(age.Hours()))
	default:
		return t.Format("2006-01-02 15:04")
	}
}

// FormatDuration renders the elapsed time between a job's start and end
func FormatDuration(job *store.Job) string {
	if job == nil || job.StartedAt == nil {
		return "-"
	}
	end := time.Now()
	if job.CompletedAt != nil {
		end = *job.CompletedAt
	}
	d := end.Sub(*job.StartedAt).Round(time.Second)
	if d < 0 {
		d = 0
	}
	return d.String()
}

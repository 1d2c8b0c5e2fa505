// Package observability renders run progress and results for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jonathan/job-intel/internal/parsing"
	"github.com/jonathan/job-intel/internal/pipeline"
	"github.com/jonathan/job-intel/internal/research"
)

const (
	// boxWidth is the width of formatted output boxes
	boxWidth = 72
	// maxItemsToShow is the number of list items displayed
	maxItemsToShow = 5
)

// Printer writes formatted output. Styles degrade to plain text when out
// is not a terminal.
type Printer struct {
	out   io.Writer
	start time.Time
	now   func() time.Time

	box     lipgloss.Style
	title   lipgloss.Style
	stage   lipgloss.Style
	dim     lipgloss.Style
	failure lipgloss.Style
}

// NewPrinter creates a Printer that writes to out.
func NewPrinter(out io.Writer) *Printer {
	r := lipgloss.NewRenderer(out)
	return &Printer{
		out:   out,
		start: time.Now(),
		now:   time.Now,
		box: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1).
			Width(boxWidth),
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		stage:   r.NewStyle().Foreground(lipgloss.Color("39")),
		dim:     r.NewStyle().Foreground(lipgloss.Color("245")),
		failure: r.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
	}
}

//nolint:errcheck // writing to the terminal; errors are not recoverable
func (p *Printer) printBox(title, content string) {
	body := p.title.Render(title)
	if content != "" {
		body += "\n\n" + content
	}
	fmt.Fprintln(p.out, p.box.Render(body))
}

// PrintProgress writes one line for a progress event.
//
//nolint:errcheck
func (p *Printer) PrintProgress(ev pipeline.ProgressEvent) {
	elapsed := p.now().Sub(p.start).Round(100 * time.Millisecond)
	line := fmt.Sprintf("%s %s %s",
		p.dim.Render(fmt.Sprintf("[%6s]", elapsed)),
		p.stage.Render(fmt.Sprintf("%-18s", ev.Stage)),
		ev.Message)
	if ev.Stage == pipeline.StageResearchFailed {
		line = fmt.Sprintf("%s %s %s",
			p.dim.Render(fmt.Sprintf("[%6s]", elapsed)),
			p.failure.Render(fmt.Sprintf("%-18s", ev.Stage)),
			ev.Message)
	}
	fmt.Fprintln(p.out, line)
}

// PrintError writes a failed run's message.
//
//nolint:errcheck
func (p *Printer) PrintError(message string) {
	fmt.Fprintln(p.out, p.failure.Render("error: ")+message)
}

// PrintJobDetails outputs the extracted fields of a posting.
func (p *Printer) PrintJobDetails(d *parsing.JobDetails) {
	if d == nil {
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Role:      %s\n", orDash(d.Metadata.RoleTitle))
	fmt.Fprintf(&sb, "Company:   %s\n", orDash(d.Metadata.CompanyName))
	fmt.Fprintf(&sb, "Location:  %s\n", orDash(d.Metadata.Location))
	if d.Metadata.SourceURL != "" {
		fmt.Fprintf(&sb, "Source:    %s\n", d.Metadata.SourceURL)
	}
	if d.Summary != "" {
		fmt.Fprintf(&sb, "\n%s\n", d.Summary)
	}
	writeList(&sb, "Key points", d.BulletPoints)

	p.printBox("JOB DETAILS", strings.TrimRight(sb.String(), "\n"))
}

// PrintResearch outputs the facts gathered about a company.
func (p *Printer) PrintResearch(payload *research.Payload) {
	if payload == nil {
		return
	}
	if payload.Skipped() {
		p.printBox("COMPANY RESEARCH", fmt.Sprintf("No official site found for %s.", payload.CompanyName))
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Company:  %s\n", payload.CompanyName)
	fmt.Fprintf(&sb, "Domain:   %s\n", payload.Domain)
	writeList(&sb, "Highlights", payload.Facts.Highlights)
	writeList(&sb, "Values", payload.Facts.Values)
	writeList(&sb, "Products", payload.Facts.Products)
	writeList(&sb, "Recent news", payload.Facts.RecentNews)

	var sources []string
	for _, s := range payload.Sources(maxItemsToShow) {
		sources = append(sources, fmt.Sprintf("%s (%s)", s.Title, s.URL))
	}
	writeList(&sb, "Sources", sources)

	p.printBox("COMPANY RESEARCH", strings.TrimRight(sb.String(), "\n"))
}

// PrintResult outputs the cover letter bundle of a completed run.
func (p *Printer) PrintResult(res *pipeline.ResultPayload) {
	if res == nil {
		return
	}

	var meta strings.Builder
	fmt.Fprintf(&meta, "Run:      %s\n", res.Meta.RunID)
	fmt.Fprintf(&meta, "Role:     %s at %s\n", orDash(res.Meta.Job.Title), orDash(res.Meta.Job.Company))
	fmt.Fprintf(&meta, "Résumé:   %s\n", res.Meta.Resume.Name)
	if r := res.Meta.Research; r != nil {
		fmt.Fprintf(&meta, "Research: %s %s\n", r.Status, r.Domain)
	} else {
		meta.WriteString("Research: none\n")
	}
	writeList(&meta, "Talking points", res.Data.TalkingPoints)

	var sources []string
	for _, s := range res.Data.ResearchSources {
		sources = append(sources, fmt.Sprintf("%s (%s)", s.Title, s.URL))
	}
	writeList(&meta, "Research sources", sources)

	p.printBox("COVER LETTER", strings.TrimRight(meta.String(), "\n"))
	fmt.Fprintf(p.out, "\n%s\n", strings.TrimSpace(res.Data.CoverLetterMarkdown)) //nolint:errcheck
}

func writeList(sb *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n%s:\n", heading)
	count := min(len(items), maxItemsToShow)
	for _, item := range items[:count] {
		fmt.Fprintf(sb, "  • %s\n", item)
	}
	if len(items) > maxItemsToShow {
		fmt.Fprintf(sb, "  ... and %d more\n", len(items)-maxItemsToShow)
	}
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}

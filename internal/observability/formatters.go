// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jonathan/shorts-autopilot/internal/analytics"
	"github.com/jonathan/shorts-autopilot/internal/scheduler"
	"github.com/jonathan/shorts-autopilot/internal/types"
	"github.com/jonathan/shorts-autopilot/internal/workflow"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
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

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// PrintProgress outputs one workflow progress event as a single line.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintProgress(event workflow.ProgressEvent) {
	fmt.Fprintf(p.out, "  → [%s] %s\n", event.Step, event.Message)
}

// PrintTopics outputs the top trending topics fed into the brief.
func (p *Printer) PrintTopics(topics []types.TrendingTopic) {
	if len(topics) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Topics gathered: %d\n\n", len(topics)))

	count := min(len(topics), maxItemsToShow)
	for i := 0; i < count; i++ {
		topic := topics[i]
		sb.WriteString(fmt.Sprintf("#%d  %s\n", i+1, truncate(topic.Topic, 45)))
		sb.WriteString(fmt.Sprintf("    Score: %.1f  Source: %s\n", topic.Score, topic.Source))
	}
	if len(topics) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more topics", len(topics)-maxItemsToShow))
	}

	p.printBox("TRENDING TOPICS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintBrief outputs the creative brief.
func (p *Printer) PrintBrief(brief *types.CreativeBrief) {
	if brief == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString("Prompt:\n")
	for _, line := range wrap(brief.Prompt, boxWidth-6) {
		sb.WriteString(fmt.Sprintf("  %s\n", line))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Description: %s\n", brief.Description))
	if len(brief.SuggestedHashtags) > 0 {
		sb.WriteString(fmt.Sprintf("Hashtags:    %s\n", strings.Join(brief.SuggestedHashtags, " ")))
	}
	if brief.EstimatedEngagement != "" {
		sb.WriteString(fmt.Sprintf("Engagement:  %s\n", brief.EstimatedEngagement))
	}

	p.printBox("CREATIVE BRIEF", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintRunReport outputs the outcome of a content run, including per-platform results.
func (p *Printer) PrintRunReport(report *workflow.RunReport, runErr error) {
	if report == nil && runErr == nil {
		return
	}

	var sb strings.Builder
	if report != nil {
		sb.WriteString(fmt.Sprintf("Job:      %s\n", report.JobID))
		if report.VideoID != "" {
			sb.WriteString(fmt.Sprintf("Video:    %s\n", report.VideoID))
		}
		if report.Video != nil && report.Video.VideoURL != "" {
			sb.WriteString(fmt.Sprintf("URL:      %s\n", report.Video.VideoURL))
		}
		sb.WriteString(fmt.Sprintf("Duration: %s\n", report.Duration.Round(time.Millisecond)))

		if len(report.Results) > 0 {
			sb.WriteString("\nPlatforms:\n")
			for _, r := range report.Results {
				if r.Post.Status == types.PostStatusPosted {
					sb.WriteString(fmt.Sprintf("  ✓ %-10s %s\n", r.Platform, r.Post.PostID))
				} else {
					sb.WriteString(fmt.Sprintf("  ✗ %-10s %s\n", r.Platform, r.Post.Error))
				}
			}
		}
	}
	if runErr != nil {
		sb.WriteString(fmt.Sprintf("\n⚠ %v\n", runErr))
	}

	title := "RUN COMPLETE"
	if runErr != nil {
		title = "RUN FAILED"
	}
	p.printBox(title, strings.TrimSuffix(sb.String(), "\n"))
}

// PrintOutcomes outputs a one-line-per-niche summary of a batch run.
func (p *Printer) PrintOutcomes(outcomes []scheduler.Outcome) {
	if len(outcomes) == 0 {
		return
	}

	var sb strings.Builder
	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			sb.WriteString(fmt.Sprintf("✗ %s: %v\n", o.NicheID, o.Err))
			continue
		}
		sb.WriteString(fmt.Sprintf("✓ %s → %s\n", o.NicheID, o.VideoID))
	}
	sb.WriteString(fmt.Sprintf("\n%d succeeded, %d failed", len(outcomes)-failed, failed))

	p.printBox("BATCH SUMMARY", sb.String())
}

// PrintCollectSummary outputs the totals of an analytics pass.
func (p *Printer) PrintCollectSummary(summary *analytics.Summary) {
	if summary == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Niches:   %d", summary.Niches))
	if summary.NicheFailures > 0 {
		sb.WriteString(fmt.Sprintf(" (%d failed)", summary.NicheFailures))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Videos:   %d\n", summary.Videos))
	sb.WriteString(fmt.Sprintf("Posts:    %d\n", summary.Posts))
	sb.WriteString(fmt.Sprintf("Updated:  %d\n", summary.Updated))
	sb.WriteString(fmt.Sprintf("Failed:   %d\n", summary.Failed))
	sb.WriteString(fmt.Sprintf("Skipped:  %d\n", summary.Skipped))
	sb.WriteString(fmt.Sprintf("Duration: %s", summary.Duration.Round(time.Millisecond)))

	p.printBox("ANALYTICS COLLECTED", sb.String())
}

// wrap splits text into lines of at most width runes on word boundaries.
func wrap(text string, width int) []string {
	var lines []string
	var line strings.Builder
	for _, word := range strings.Fields(text) {
		if line.Len() > 0 && len([]rune(line.String()))+1+len([]rune(word)) > width {
			lines = append(lines, line.String())
			line.Reset()
		}
		if line.Len() > 0 {
			line.WriteString(" ")
		}
		line.WriteString(word)
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}
	return lines
}

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/leonardotrapani/factstream/internal/model"
)

var (
	colorPrimary = lipgloss.Color("#7C3AED")
	colorSuccess = lipgloss.Color("#22C55E")
	colorError   = lipgloss.Color("#EF4444")
	colorWarning = lipgloss.Color("#F59E0B")
	colorMuted   = lipgloss.Color("#94A3B8")
	colorSubtle  = lipgloss.Color("#64748B")
)

var (
	styleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	styleMuted = lipgloss.NewStyle().
			Foreground(colorMuted)

	styleSubtle = lipgloss.NewStyle().
			Foreground(colorSubtle).
			Italic(true)

	styleClaim = lipgloss.NewStyle().
			Bold(true)

	// verdict badges
	styleTrue = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	styleFalse = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	styleMixed = lipgloss.NewStyle().
			Foreground(colorWarning).
			Bold(true)

	styleUnknown = lipgloss.NewStyle().
			Foreground(colorMuted).
			Bold(true)
)

func verdictStyle(v model.Verdict) lipgloss.Style {
	switch v {
	case model.VerdictTrue:
		return styleTrue
	case model.VerdictFalse:
		return styleFalse
	case model.VerdictPartlyTrue, model.VerdictMisleading, model.VerdictOutdated:
		return styleMixed
	default:
		return styleUnknown
	}
}

func printResult(w io.Writer, r model.FactCheckResult) {
	badge := verdictStyle(r.Verdict).Render(string(r.Verdict))
	fmt.Fprintf(w, "%s %s %s\n", badge, styleClaim.Render(r.Claim.Text),
		styleMuted.Render(fmt.Sprintf("(%.0f%%)", r.Confidence*100)))
	if r.Explanation != "" {
		fmt.Fprintf(w, "  %s\n", r.Explanation)
	}
	if len(r.Sources) > 0 {
		fmt.Fprintf(w, "  %s\n", styleSubtle.Render("sources: "+strings.Join(r.Sources, ", ")))
	}
	if r.Metadata.Error != "" {
		fmt.Fprintf(w, "  %s\n", styleFalse.Render("error: "+r.Metadata.Error))
	}
}

func printClaim(w io.Writer, c model.Claim) {
	fmt.Fprintf(w, "%s %s %s\n", styleHeader.Render("claim"), c.Text,
		styleMuted.Render(fmt.Sprintf("(%.2f)", c.Confidence)))
}

func printTranscript(w io.Writer, text string, final bool) {
	if final {
		fmt.Fprintf(w, "%s %s\n", styleHeader.Render(">"), text)
		return
	}
	fmt.Fprintf(w, "%s %s\n", styleMuted.Render("~"), styleSubtle.Render(text))
}

package plans

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	ghhtml "github.com/yuin/goldmark/renderer/html"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		extension.Linkify,
		extension.Typographer,
	),
	goldmark.WithRendererOptions(
		ghhtml.WithHardWraps(),
	),
)

// RenderNotes converts Markdown notes to the HTML subset Google Calendar displays.
func RenderNotes(md string) (string, error) {
	if strings.TrimSpace(md) == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("failed to render notes: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Google Calendar event colour ids.
var sportColors = map[string]string{
	"course à pied": "10", // Basil
	"trail":         "2",  // Sage
	"vélo":          "5",  // Banana
	"crossfit":      "11", // Tomato
	"hyrox":         "6",  // Tangerine
	"repos":         "8",  // Graphite
}

// ColorFor returns the event colour of a sport, defaulting to Blueberry.
func ColorFor(sport string) string {
	if c, ok := sportColors[strings.ToLower(strings.TrimSpace(sport))]; ok {
		return c
	}
	return "9"
}

// Description renders the calendar description of a session.
func Description(s Session) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Sport : %s\n", s.Sport)
	if len(s.Types) > 0 {
		fmt.Fprintf(&b, "Type : %s\n", strings.Join(s.Types, ", "))
	}
	fmt.Fprintf(&b, "Durée : %d min\n", int(s.Duration().Minutes()))
	if s.DistanceKm != nil {
		fmt.Fprintf(&b, "Distance : %.1f km\n", *s.DistanceKm)
	}
	if s.DPlusM != nil {
		fmt.Fprintf(&b, "D+ : %.0f m\n", *s.DPlusM)
	}
	notes, err := RenderNotes(s.Notes)
	if err != nil {
		return "", err
	}
	if notes != "" {
		b.WriteString("\n")
		b.WriteString(notes)
	}
	if s.URL != "" {
		fmt.Fprintf(&b, "\n\n%s", s.URL)
	}
	return b.String(), nil
}

// Package extract turns generated text into story candidates.
package extract

import (
	"regexp"
	"strings"

	"basegraph.app/scribe/internal/model"
)

const (
	UntitledStory = "Untitled Story"
	NoDescription = "No description"
)

// decorationPattern matches list bullets, numbering and heading hashes in
// front of a marker, e.g. "- ", "2. ", "3) ", "### ".
var decorationPattern = regexp.MustCompile(`^(?:[-*+•]\s+|\d+[.)]\s+|#{1,6}\s+)+`)

// markerPattern matches "Story Title: x" and "Description: x" once emphasis
// has been stripped. Matching is case-insensitive.
var markerPattern = regexp.MustCompile(`(?i)^(story\s+title|description)\s*:\s*(.*)$`)

type markerKind int

const (
	markerNone markerKind = iota
	markerTitle
	markerDescription
)

// Extractor finds "Story Title:" / "Description:" pairs. NewID is called once
// per candidate in document order.
type Extractor struct {
	NewID func() int64
}

func New(newID func() int64) *Extractor {
	return &Extractor{NewID: newID}
}

// Extract never fails: a title marker without a description still yields a
// candidate with the NoDescription placeholder, an empty title yields
// UntitledStory. Description lines with no preceding title are ignored.
func (e *Extractor) Extract(text string) []model.StoryCandidate {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	candidates := []model.StoryCandidate{}

	for i := 0; i < len(lines); i++ {
		kind, title := parseMarker(lines[i])
		if kind != markerTitle {
			continue
		}

		description := ""
		j := nextNonBlank(lines, i+1)
		if j < len(lines) {
			if next, value := parseMarker(lines[j]); next == markerDescription {
				parts := []string{}
				if value != "" {
					parts = append(parts, value)
				}
				j++
				for ; j < len(lines); j++ {
					line := strings.TrimSpace(lines[j])
					if line == "" {
						break
					}
					if k, _ := parseMarker(line); k != markerNone {
						break
					}
					parts = append(parts, line)
				}
				description = strings.Join(parts, "\n")
				i = j - 1
			}
		}

		if title == "" {
			title = UntitledStory
		}
		if description == "" {
			description = NoDescription
		}

		candidates = append(candidates, model.StoryCandidate{
			ID:          e.NewID(),
			Title:       title,
			Description: description,
		})
	}

	return candidates
}

func parseMarker(line string) (markerKind, string) {
	line = strings.TrimSpace(line)
	line = decorationPattern.ReplaceAllString(line, "")
	line = stripEmphasis(line)

	m := markerPattern.FindStringSubmatch(line)
	if m == nil {
		return markerNone, ""
	}
	value := strings.TrimSpace(stripEmphasis(m[2]))
	if strings.HasPrefix(strings.ToLower(m[1]), "story") {
		return markerTitle, value
	}
	return markerDescription, value
}

func stripEmphasis(s string) string {
	s = strings.ReplaceAll(s, "**", "")
	s = strings.ReplaceAll(s, "__", "")
	return strings.TrimSpace(s)
}

func nextNonBlank(lines []string, from int) int {
	for from < len(lines) && strings.TrimSpace(lines[from]) == "" {
		from++
	}
	return from
}

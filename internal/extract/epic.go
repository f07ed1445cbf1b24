package extract

import (
	"regexp"
	"strings"

	"basegraph.app/scribe/internal/model"
)

const (
	EpicStart = "---EPIC---"
	EpicEnd   = "---END EPIC---"

	UntitledEpic = "Untitled Epic"
)

var (
	epicFieldPattern   = regexp.MustCompile(`(?i)^(?:epic\s+)?(title|description)\s*:\s*(.*)$`)
	userStoriesPattern = regexp.MustCompile(`(?i)^user\s+stories\s*:?\s*$`)
	numberedPattern    = regexp.MustCompile(`^\d+[.)]\s+(.*)$`)
)

// ExtractEpics reads blocks of the form
//
//	---EPIC---
//	Title: ...
//	Description: ...
//	User Stories:
//	1. As a ..., I want ..., so that ...
//	Description: ...
//	---END EPIC---
//
// Text outside the markers is ignored, and a missing end marker closes the
// block at the next start marker or the end of text. NewID is called for the
// epic first and then for each of its stories.
func (e *Extractor) ExtractEpics(text string) []model.EpicCandidate {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	epics := []model.EpicCandidate{}

	for i := 0; i < len(lines); i++ {
		if !isMarker(lines[i], EpicStart) {
			continue
		}
		end := i + 1
		for end < len(lines) && !isMarker(lines[end], EpicEnd) && !isMarker(lines[end], EpicStart) {
			end++
		}
		epics = append(epics, e.parseEpic(lines[i+1:end]))
		if end < len(lines) && isMarker(lines[end], EpicStart) {
			end--
		}
		i = end
	}

	return epics
}

func (e *Extractor) parseEpic(lines []string) model.EpicCandidate {
	epic := model.EpicCandidate{ID: e.NewID(), Stories: []model.StoryCandidate{}}

	header := true
	// description collects continuation lines of the last Description: field.
	var (
		description *[]string
		epicDesc    []string
		storyDescs  [][]string
	)

	for _, raw := range lines {
		line := stripEmphasis(strings.TrimSpace(raw))
		if line == "" {
			description = nil
			continue
		}
		bare := decorationPattern.ReplaceAllString(line, "")

		if header && userStoriesPattern.MatchString(bare) {
			header = false
			description = nil
			continue
		}

		if !header {
			if m := numberedPattern.FindStringSubmatch(line); m != nil {
				epic.Stories = append(epic.Stories, model.StoryCandidate{Title: stripEmphasis(m[1])})
				storyDescs = append(storyDescs, nil)
				description = nil
				continue
			}
		}

		field, value := epicField(bare)
		switch {
		case header && field == "title":
			epic.Title = value
			description = nil
		case header && field == "description":
			epicDesc = appendNonEmpty(nil, value)
			description = &epicDesc
		case !header && field == "description" && len(storyDescs) > 0:
			storyDescs[len(storyDescs)-1] = appendNonEmpty(nil, value)
			description = &storyDescs[len(storyDescs)-1]
		case description != nil && field == "":
			*description = append(*description, line)
		}
	}

	epic.Title = orDefault(epic.Title, UntitledEpic)
	epic.Description = orDefault(strings.Join(epicDesc, "\n"), NoDescription)

	epicID := epic.ID
	for i := range epic.Stories {
		story := &epic.Stories[i]
		story.ID = e.NewID()
		story.Title = orDefault(story.Title, UntitledStory)
		story.Description = orDefault(strings.Join(storyDescs[i], "\n"), NoDescription)
		story.EpicID = &epicID
	}
	return epic
}

func epicField(line string) (string, string) {
	m := epicFieldPattern.FindStringSubmatch(line)
	if m == nil {
		return "", ""
	}
	return strings.ToLower(m[1]), strings.TrimSpace(stripEmphasis(m[2]))
}

func isMarker(line, marker string) bool {
	return strings.EqualFold(strings.TrimSpace(line), marker)
}

func appendNonEmpty(parts []string, value string) []string {
	if value == "" {
		return parts
	}
	return append(parts, value)
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"basegraph.app/scribe/internal/domain"
	"basegraph.app/scribe/internal/model"
	"basegraph.app/scribe/internal/store"
)

const (
	MainSectionTitle = "Main Section"

	defaultBRDName   = "brd.txt"
	maxHeadingLength = 80
	maxHeadingWords  = 10
)

var (
	markdownHeading = regexp.MustCompile(`^#{1,6}\s+(.+?)\s*#*$`)
	numberedHeading = regexp.MustCompile(`^\d+(?:\.\d+)*\.?\s+\S`)
	underline       = regexp.MustCompile(`^(?:=+|-+)$`)
)

// Section is a titled span of a BRD.
type Section struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type BRDConfig struct {
	ChunkSize    int
	ChunkOverlap int
	MaxBytes     int64
}

type brdAdapter struct {
	cfg BRDConfig
	now func() time.Time
}

func NewBRDAdapter(cfg BRDConfig) Adapter {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxUploadBytes
	}
	return &brdAdapter{cfg: cfg, now: time.Now}
}

func (a *brdAdapter) SourceType() model.SourceType {
	return model.SourceTypeBRDSection
}

// FetchAndNormalize decodes the upload, splits it at headings and cuts long
// sections into overlapping chunks. Chunks share one ingestion time and get
// zero-padded source ids "<file>#0001" so they list in document order.
func (a *brdAdapter) FetchAndNormalize(ctx context.Context, projectKey string, cfg SourceConfig) (*Batch, error) {
	if projectKey == "" {
		return nil, domain.Validation("project_key is required")
	}
	if cfg.Content == nil {
		return nil, domain.Validation("no file provided")
	}

	data, err := readLimited(cfg.Content, a.cfg.MaxBytes)
	if err != nil {
		return nil, err
	}

	text, encodingName := decodeText(data)
	if strings.TrimSpace(text) == "" {
		return nil, domain.Validation("BRD file is empty")
	}

	size, overlap := a.chunkParams(cfg.SectionSize)
	sections := SplitSections(text)

	filename := store.SanitizeBlobName(cfg.Filename)
	if cfg.Filename == "" {
		filename = defaultBRDName
	}
	ingestedAt := a.now().UTC()

	batch := &Batch{}
	index := 0
	for _, section := range sections {
		chunks := ChunkText(section.Content, size, overlap)
		for part, chunk := range chunks {
			index++
			title := section.Title
			if len(chunks) > 1 {
				title = fmt.Sprintf("%s (part %d/%d)", section.Title, part+1, len(chunks))
			}
			batch.Documents = append(batch.Documents, &model.Document{
				ProjectKey: projectKey,
				SourceType: model.SourceTypeBRDSection,
				SourceID:   fmt.Sprintf("%s#%04d", filename, index),
				Text:       section.Title + "\n\n" + chunk,
				IngestedAt: ingestedAt,
				Metadata: map[string]string{
					"title":    title,
					"section":  section.Title,
					"filename": filename,
					"chunk":    strconv.Itoa(index),
				},
			})
		}
	}

	slog.InfoContext(ctx, "brd split",
		"project_key", projectKey,
		"filename", filename,
		"encoding", encodingName,
		"sections", len(sections),
		"chunks", len(batch.Documents))

	return batch, nil
}

func (a *brdAdapter) chunkParams(sectionSize int) (int, int) {
	size, overlap := a.cfg.ChunkSize, a.cfg.ChunkOverlap
	if sectionSize > 0 {
		size = sectionSize
	}
	if size <= 0 {
		size = 1000
	}
	if overlap >= size/2 {
		overlap = size / 4
	}
	if overlap < 0 {
		overlap = 0
	}
	return size, overlap
}

// SplitSections splits text at heading lines. Text before the first heading
// belongs to MainSectionTitle, headings with no body are dropped and a text
// without any body yields nothing.
func SplitSections(text string) []Section {
	lines := strings.Split(text, "\n")
	var (
		sections []Section
		title    = MainSectionTitle
		body     []string
	)

	flush := func() {
		content := strings.TrimSpace(strings.Join(body, "\n"))
		if content != "" {
			sections = append(sections, Section{Title: title, Content: content})
		}
		body = body[:0]
	}

	for i := 0; i < len(lines); i++ {
		line := strings.TrimRight(lines[i], " \t")
		if heading, skip := headingAt(lines, i); heading != "" {
			flush()
			title = heading
			i += skip
			continue
		}
		if len(body) == 0 && strings.TrimSpace(line) == "" {
			continue
		}
		body = append(body, line)
	}
	flush()

	return sections
}

// headingAt reports the heading text at line i and how many extra lines it
// consumed (1 for setext underlines).
func headingAt(lines []string, i int) (string, int) {
	line := strings.TrimSpace(lines[i])
	if line == "" {
		return "", 0
	}

	if m := markdownHeading.FindStringSubmatch(line); m != nil {
		return m[1], 0
	}

	if i+1 < len(lines) && underline.MatchString(strings.TrimSpace(lines[i+1])) && looksLikeTitle(line) {
		return line, 1
	}

	prevBlank := i == 0 || strings.TrimSpace(lines[i-1]) == ""
	if !prevBlank || strings.HasPrefix(lines[i], " ") || strings.HasPrefix(lines[i], "\t") {
		return "", 0
	}
	if numberedHeading.MatchString(line) && looksLikeTitle(line) {
		return line, 0
	}
	if looksLikeTitle(line) && startsUpper(line) {
		return strings.TrimSuffix(line, ":"), 0
	}
	return "", 0
}

func looksLikeTitle(line string) bool {
	if len(line) > maxHeadingLength || len(strings.Fields(line)) > maxHeadingWords {
		return false
	}
	switch line[0] {
	case '-', '*', '+', '>', '|':
		return false
	}
	if strings.HasPrefix(line, "•") {
		return false
	}
	last := line[len(line)-1]
	return !strings.ContainsRune(".,;!?", rune(last))
}

func startsUpper(line string) bool {
	for _, r := range line {
		return unicode.IsUpper(r)
	}
	return false
}

// ChunkText cuts text into pieces of at most size runes, each starting
// overlap runes before the previous one ended. Cuts prefer paragraph, line
// and word boundaries in the second half of a window.
func ChunkText(text string, size, overlap int) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= size {
		return []string{string(runes)}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = breakPoint(runes, start+size/2, end)
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		start = wordStart(runes, next, end)
	}
	return chunks
}

// breakPoint returns the best cut in (min, max], or max if there is none.
func breakPoint(runes []rune, min, max int) int {
	for _, sep := range []string{"\n\n", "\n", " "} {
		sr := []rune(sep)
		for i := max - len(sr); i >= min; i-- {
			if string(runes[i:i+len(sr)]) == sep {
				return i + len(sr)
			}
		}
	}
	return max
}

// wordStart moves i forward to the start of the next word, without passing limit.
func wordStart(runes []rune, i, limit int) int {
	if i == 0 || unicode.IsSpace(runes[i-1]) {
		return i
	}
	for j := i; j < limit; j++ {
		if unicode.IsSpace(runes[j]) {
			return j + 1
		}
	}
	return i
}

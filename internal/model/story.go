package model

import "time"

type StoryStatus string

const (
	StoryStatusDraft     StoryStatus = "draft"
	StoryStatusPublished StoryStatus = "published"
)

// StorySource records how a story came to exist.
type StorySource string

const (
	StorySourceChat   StorySource = "chat"
	StorySourceBRD    StorySource = "brd"
	StorySourceManual StorySource = "manual"
	StorySourceEpic   StorySource = "epic"
)

// Story is a generated work item. ExternalKey is set iff Status is published,
// and a published story never changes again. EpicID links a story to the epic
// draft it was generated under.
type Story struct {
	ID          int64       `json:"id"`
	ProjectKey  string      `json:"project_key"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Status      StoryStatus `json:"status"`
	Source      StorySource `json:"source"`
	ExternalKey *string     `json:"external_key,omitempty"`
	EpicID      *int64      `json:"epic_id,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func (s Story) IsPublished() bool {
	return s.Status == StoryStatusPublished
}

// StoryCandidate is an extracted story that has not been persisted yet.
type StoryCandidate struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	EpicID      *int64 `json:"epic_id,omitempty"`
}

// EpicCandidate is an extracted epic with the stories listed under it.
type EpicCandidate struct {
	ID          int64
	Title       string
	Description string
	Stories     []StoryCandidate
}

// StoryPatch holds the editable fields of a draft. Nil fields are left alone.
type StoryPatch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

func (p StoryPatch) Empty() bool {
	return p.Title == nil && p.Description == nil
}

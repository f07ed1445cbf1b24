package model

import "time"

// TrackerProject is a project in the external issue tracker.
type TrackerProject struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// TrackerIssue is an issue as returned by the tracker, before normalization.
type TrackerIssue struct {
	Key         string
	Summary     string
	Description string
	Status      string
	Updated     *time.Time
	Comments    []string
}

type ConnectionState string

const (
	ConnectionNotConfigured ConnectionState = "not_configured"
	ConnectionConnected     ConnectionState = "connected"
	ConnectionError         ConnectionState = "error"
)

// ConnectionStatus is the result of probing an external service.
type ConnectionStatus struct {
	Status  ConnectionState `json:"status"`
	Message string          `json:"message"`
	URL     string          `json:"url,omitempty"`
}

// WikiPage is a page as returned by the wiki, with its body in storage HTML.
type WikiPage struct {
	ID           string
	Title        string
	SpaceKey     string
	Version      int
	LastModified *time.Time
	BodyHTML     string
	URL          string
}

// NewWikiPage is the input for creating a wiki page.
type NewWikiPage struct {
	SpaceKey string
	Title    string
	Body     string // storage HTML
	ParentID string
}

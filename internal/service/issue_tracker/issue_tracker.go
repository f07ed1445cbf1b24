package issue_tracker

import (
	"context"

	"basegraph.app/scribe/internal/model"
)

// IssueTracker is the external tracker stories are published to and issues
// are synced from.
type IssueTracker interface {
	// Name is the service label used in errors and health output ("jira", "gitlab").
	Name() string
	ListProjects(ctx context.Context) ([]model.TrackerProject, error)
	// FetchIssues returns up to maxResults issues, most recently updated first.
	FetchIssues(ctx context.Context, projectKey string, maxResults int) ([]model.TrackerIssue, error)
	// CreateIssue creates a story-type issue and returns its key.
	CreateIssue(ctx context.Context, projectKey, title, description string) (string, error)
	// TestConnection never returns an error; failures are reported in the status.
	TestConnection(ctx context.Context) model.ConnectionStatus
}

const storyIssueType = "Story"

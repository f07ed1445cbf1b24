package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"basegraph.app/scribe/internal/domain"
	"basegraph.app/scribe/internal/model"
	"basegraph.app/scribe/internal/service/issue_tracker"
)

const defaultMaxResults = 50

type issueAdapter struct {
	tracker issue_tracker.IssueTracker
}

func NewIssueAdapter(tracker issue_tracker.IssueTracker) Adapter {
	return &issueAdapter{tracker: tracker}
}

func (a *issueAdapter) SourceType() model.SourceType {
	return model.SourceTypeJiraIssue
}

func (a *issueAdapter) FetchAndNormalize(ctx context.Context, projectKey string, cfg SourceConfig) (*Batch, error) {
	if projectKey == "" {
		return nil, domain.Validation("project_key is required")
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	issues, err := a.tracker.FetchIssues(ctx, projectKey, maxResults)
	if err != nil {
		return nil, fmt.Errorf("fetching issues: %w", err)
	}

	batch := &Batch{}
	for i, issue := range issues {
		switch {
		case issue.Key == "":
			batch.Failures = append(batch.Failures, model.SyncFailure{
				SourceID: fmt.Sprintf("issue[%d]", i),
				Reason:   "issue has no key",
			})
			continue
		case strings.TrimSpace(issue.Summary) == "":
			batch.Failures = append(batch.Failures, model.SyncFailure{
				SourceID: issue.Key,
				Reason:   "issue has no summary",
			})
			continue
		}
		batch.Documents = append(batch.Documents, issueDocument(projectKey, issue))
	}
	return batch, nil
}

func issueDocument(projectKey string, issue model.TrackerIssue) *model.Document {
	updated := ""
	if issue.Updated != nil {
		updated = issue.Updated.UTC().Format(time.RFC3339)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Issue Key: %s\n", issue.Key)
	fmt.Fprintf(&b, "Summary: %s\n", issue.Summary)
	fmt.Fprintf(&b, "Status: %s\n", issue.Status)
	fmt.Fprintf(&b, "Last Updated: %s\n", updated)
	fmt.Fprintf(&b, "\nDescription:\n%s\n", strings.TrimSpace(issue.Description))
	if len(issue.Comments) > 0 {
		b.WriteString("\nComments:\n")
		for _, c := range issue.Comments {
			fmt.Fprintf(&b, "- %s\n", strings.TrimSpace(c))
		}
	}

	return &model.Document{
		ProjectKey: projectKey,
		SourceType: model.SourceTypeJiraIssue,
		SourceID:   issue.Key,
		Text:       strings.TrimSpace(b.String()),
		Metadata: map[string]string{
			"title":     fmt.Sprintf("%s - %s", issue.Key, issue.Summary),
			"issue_key": issue.Key,
			"status":    issue.Status,
			"updated":   updated,
		},
	}
}

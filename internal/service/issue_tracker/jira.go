package issue_tracker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	jira "github.com/andygrunwald/go-jira"

	"basegraph.app/scribe/common/metrics"
	"basegraph.app/scribe/common/ratelimit"
	"basegraph.app/scribe/core/config"
	"basegraph.app/scribe/internal/domain"
	"basegraph.app/scribe/internal/model"
	"basegraph.app/scribe/internal/service/external"
)

type jiraTracker struct {
	client  *jira.Client
	baseURL string
	limiter *ratelimit.Limiter
	metrics *metrics.Metrics
}

// NewJiraTracker returns a Jira Cloud/Server tracker authenticated with basic
// auth (username + API token). Every HTTP call is bounded by timeout.
func NewJiraTracker(cfg config.JiraConfig, timeout time.Duration, limiter *ratelimit.Limiter, m *metrics.Metrics) (IssueTracker, error) {
	if !cfg.Enabled() {
		return NewUnconfigured("jira", "Jira integration is not configured. Set JIRA_URL, JIRA_USERNAME, and JIRA_API_TOKEN."), nil
	}

	transport := jira.BasicAuthTransport{
		Username: cfg.Username,
		Password: cfg.APIToken,
	}
	httpClient := transport.Client()
	httpClient.Timeout = timeout

	client, err := jira.NewClient(httpClient, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("creating jira client: %w", err)
	}

	return &jiraTracker{
		client:  client,
		baseURL: cfg.URL,
		limiter: limiter,
		metrics: m,
	}, nil
}

func (t *jiraTracker) Name() string {
	return "jira"
}

func (t *jiraTracker) ListProjects(ctx context.Context) ([]model.TrackerProject, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	list, resp, err := t.client.Project.GetListWithContext(ctx)
	if err = t.done(ctx, "list_projects", start, resp, err); err != nil {
		return nil, err
	}

	projects := make([]model.TrackerProject, 0, len(*list))
	for _, p := range *list {
		projects = append(projects, model.TrackerProject{Key: p.Key, Name: p.Name})
	}
	return projects, nil
}

func (t *jiraTracker) FetchIssues(ctx context.Context, projectKey string, maxResults int) ([]model.TrackerIssue, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	jql := fmt.Sprintf("project = %q ORDER BY updated DESC", projectKey)
	start := time.Now()
	issues, resp, err := t.client.Issue.SearchWithContext(ctx, jql, &jira.SearchOptions{
		MaxResults: maxResults,
		Fields:     []string{"summary", "description", "status", "updated", "comment"},
	})
	if err = t.done(ctx, "fetch_issues", start, resp, err); err != nil {
		return nil, err
	}

	out := make([]model.TrackerIssue, 0, len(issues))
	for _, issue := range issues {
		out = append(out, mapJiraIssue(issue))
	}

	slog.DebugContext(ctx, "jira issues fetched",
		"project_key", projectKey,
		"count", len(out))

	return out, nil
}

func (t *jiraTracker) CreateIssue(ctx context.Context, projectKey, title, description string) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", err
	}

	start := time.Now()
	created, resp, err := t.client.Issue.CreateWithContext(ctx, &jira.Issue{
		Fields: &jira.IssueFields{
			Project:     jira.Project{Key: projectKey},
			Summary:     title,
			Description: description,
			Type:        jira.IssueType{Name: storyIssueType},
		},
	})
	if err = t.done(ctx, "create_issue", start, resp, err); err != nil {
		return "", err
	}
	if created == nil || created.Key == "" {
		return "", domain.Transient("jira.create_issue", "jira did not return an issue key", nil)
	}
	return created.Key, nil
}

func (t *jiraTracker) TestConnection(ctx context.Context) model.ConnectionStatus {
	if _, err := t.ListProjects(ctx); err != nil {
		return model.ConnectionStatus{
			Status:  model.ConnectionError,
			Message: "Failed to connect to Jira: " + err.Error(),
			URL:     t.baseURL,
		}
	}
	return model.ConnectionStatus{
		Status:  model.ConnectionConnected,
		Message: "Successfully connected to Jira",
		URL:     t.baseURL,
	}
}

func (t *jiraTracker) done(ctx context.Context, op string, start time.Time, resp *jira.Response, err error) error {
	t.metrics.ObserveExternal("jira", op, err, time.Since(start))
	if err == nil {
		return nil
	}

	call := external.Call{Service: "jira", Op: op, Err: err}
	if resp != nil && resp.Response != nil {
		call.Status = resp.StatusCode
		call.Header = resp.Header
	}
	classified := external.Classify(ctx, t.limiter, call)
	slog.WarnContext(ctx, "jira request failed",
		"operation", op,
		"status", call.Status,
		"error", err)
	return classified
}

func mapJiraIssue(issue jira.Issue) model.TrackerIssue {
	out := model.TrackerIssue{Key: issue.Key}
	f := issue.Fields
	if f == nil {
		return out
	}

	out.Summary = f.Summary
	out.Description = f.Description
	if f.Status != nil {
		out.Status = f.Status.Name
	}
	if updated := time.Time(f.Updated); !updated.IsZero() {
		out.Updated = &updated
	}
	if f.Comments != nil {
		for _, c := range f.Comments.Comments {
			if c != nil && c.Body != "" {
				out.Comments = append(out.Comments, c.Body)
			}
		}
	}
	return out
}

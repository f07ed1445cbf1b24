package issue_tracker

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"basegraph.app/scribe/common/metrics"
	"basegraph.app/scribe/common/ratelimit"
	"basegraph.app/scribe/core/config"
	"basegraph.app/scribe/internal/model"
	"basegraph.app/scribe/internal/service/external"
)

// GitLab caps per_page at 100.
const maxIssuePage = 100

// gitLabTracker maps project keys to GitLab project paths ("group/project").
// Issue keys have the form "group/project#iid".
type gitLabTracker struct {
	client  *gitlab.Client
	baseURL string
	limiter *ratelimit.Limiter
	metrics *metrics.Metrics
}

func NewGitLabTracker(cfg config.GitLabConfig, timeout time.Duration, limiter *ratelimit.Limiter, m *metrics.Metrics) (IssueTracker, error) {
	if !cfg.Enabled() {
		return NewUnconfigured("gitlab", "GitLab integration is not configured. Set GITLAB_TOKEN (and GITLAB_URL for self-hosted)."), nil
	}

	client, err := newGitLabClient(cfg.URL, cfg.Token, timeout)
	if err != nil {
		return nil, fmt.Errorf("creating gitlab client: %w", err)
	}

	baseURL := cfg.URL
	if baseURL == "" {
		baseURL = "https://gitlab.com"
	}

	return &gitLabTracker{
		client:  client,
		baseURL: baseURL,
		limiter: limiter,
		metrics: m,
	}, nil
}

func newGitLabClient(baseURL, token string, timeout time.Duration) (*gitlab.Client, error) {
	opts := []gitlab.ClientOptionFunc{}
	if timeout > 0 {
		opts = append(opts, gitlab.WithHTTPClient(&http.Client{Timeout: timeout}))
	}
	if baseURL != "" {
		apiURL := strings.TrimSuffix(baseURL, "/") + "/api/v4"
		opts = append(opts, gitlab.WithBaseURL(apiURL))
	}
	return gitlab.NewClient(token, opts...)
}

func (t *gitLabTracker) Name() string {
	return "gitlab"
}

func (t *gitLabTracker) ListProjects(ctx context.Context) ([]model.TrackerProject, error) {
	opts := &gitlab.ListProjectsOptions{
		Membership: gitlab.Ptr(true),
		ListOptions: gitlab.ListOptions{
			Page:    1,
			PerPage: 100,
		},
	}

	var projects []model.TrackerProject

	for {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		start := time.Now()
		page, resp, err := t.client.Projects.ListProjects(opts, gitlab.WithContext(ctx))
		if err = t.done(ctx, "list_projects", start, resp, err); err != nil {
			return nil, err
		}

		for _, p := range page {
			projects = append(projects, model.TrackerProject{
				Key:  p.PathWithNamespace,
				Name: p.NameWithNamespace,
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return projects, nil
}

func (t *gitLabTracker) FetchIssues(ctx context.Context, projectKey string, maxResults int) ([]model.TrackerIssue, error) {
	if maxResults <= 0 || maxResults > maxIssuePage {
		maxResults = maxIssuePage
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	issues, resp, err := t.client.Issues.ListProjectIssues(projectKey, &gitlab.ListProjectIssuesOptions{
		ListOptions: gitlab.ListOptions{
			Page:    1,
			PerPage: maxIssuePage,
		},
		OrderBy: gitlab.Ptr("updated_at"),
		Sort:    gitlab.Ptr("desc"),
	}, gitlab.WithContext(ctx))
	if err = t.done(ctx, "fetch_issues", start, resp, err); err != nil {
		return nil, err
	}

	if len(issues) > maxResults {
		issues = issues[:maxResults]
	}

	out := make([]model.TrackerIssue, 0, len(issues))
	for _, issue := range issues {
		if issue == nil {
			continue
		}
		out = append(out, model.TrackerIssue{
			Key:         issueKey(projectKey, issue.IID),
			Summary:     issue.Title,
			Description: issue.Description,
			Status:      issue.State,
			Updated:     issue.UpdatedAt,
		})
	}

	slog.DebugContext(ctx, "gitlab issues fetched",
		"project_key", projectKey,
		"count", len(out))

	return out, nil
}

func (t *gitLabTracker) CreateIssue(ctx context.Context, projectKey, title, description string) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", err
	}

	start := time.Now()
	issue, resp, err := t.client.Issues.CreateIssue(projectKey, &gitlab.CreateIssueOptions{
		Title:       gitlab.Ptr(title),
		Description: gitlab.Ptr(description),
	}, gitlab.WithContext(ctx))
	if err = t.done(ctx, "create_issue", start, resp, err); err != nil {
		return "", err
	}

	return issueKey(projectKey, issue.IID), nil
}

func (t *gitLabTracker) TestConnection(ctx context.Context) model.ConnectionStatus {
	if err := t.limiter.Wait(ctx); err != nil {
		return model.ConnectionStatus{Status: model.ConnectionError, Message: err.Error(), URL: t.baseURL}
	}

	start := time.Now()
	user, resp, err := t.client.Users.CurrentUser(gitlab.WithContext(ctx))
	if err = t.done(ctx, "current_user", start, resp, err); err != nil {
		return model.ConnectionStatus{
			Status:  model.ConnectionError,
			Message: "Failed to connect to GitLab: " + err.Error(),
			URL:     t.baseURL,
		}
	}

	return model.ConnectionStatus{
		Status:  model.ConnectionConnected,
		Message: fmt.Sprintf("Successfully connected to GitLab as %s", user.Username),
		URL:     t.baseURL,
	}
}

func (t *gitLabTracker) done(ctx context.Context, op string, start time.Time, resp *gitlab.Response, err error) error {
	t.metrics.ObserveExternal("gitlab", op, err, time.Since(start))
	if err == nil {
		return nil
	}

	call := external.Call{Service: "gitlab", Op: op, Err: err}
	if resp != nil && resp.Response != nil {
		call.Status = resp.StatusCode
		call.Header = resp.Header
	}
	slog.WarnContext(ctx, "gitlab request failed",
		"operation", op,
		"status", call.Status,
		"error", err)
	return external.Classify(ctx, t.limiter, call)
}

func issueKey[T ~int | ~int64](projectKey string, iid T) string {
	return fmt.Sprintf("%s#%d", projectKey, iid)
}

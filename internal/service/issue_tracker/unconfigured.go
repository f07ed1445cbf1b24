package issue_tracker

import (
	"context"

	"basegraph.app/scribe/internal/domain"
	"basegraph.app/scribe/internal/model"
)

// unconfigured answers every call with a configuration error so the server
// can start without tracker credentials.
type unconfigured struct {
	name    string
	message string
}

func NewUnconfigured(name, message string) IssueTracker {
	return &unconfigured{name: name, message: message}
}

func (u *unconfigured) Name() string {
	return u.name
}

func (u *unconfigured) ListProjects(context.Context) ([]model.TrackerProject, error) {
	return nil, u.err()
}

func (u *unconfigured) FetchIssues(context.Context, string, int) ([]model.TrackerIssue, error) {
	return nil, u.err()
}

func (u *unconfigured) CreateIssue(context.Context, string, string, string) (string, error) {
	return "", u.err()
}

func (u *unconfigured) TestConnection(context.Context) model.ConnectionStatus {
	return model.ConnectionStatus{Status: model.ConnectionNotConfigured, Message: u.message}
}

func (u *unconfigured) err() error {
	err := domain.NotConfigured(u.name)
	err.Message = u.message
	return err
}

// IsConfigured reports whether t talks to a real tracker.
func IsConfigured(t IssueTracker) bool {
	_, ok := t.(*unconfigured)
	return !ok
}

package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// Handlers and the worker enrich the context once; everything downstream logs with
// project_key, story_id and friends without passing them around.
type LogFields struct {
	ProjectKey *string // Project namespace the operation runs in
	StoryID    *int64  // Story being edited or published
	SourceType *string // Ingestion source (jira_issue, confluence_page, image, brd_section)
	SourceID   *string // External identifier of the item being ingested
	MessageID  *string // Redis stream message ID
	JobID      *string // Async sync job ID
	Component  string  // Component name, e.g. "scribe.service.story"
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, next LogFields) LogFields {
	result := existing

	if next.ProjectKey != nil {
		result.ProjectKey = next.ProjectKey
	}
	if next.StoryID != nil {
		result.StoryID = next.StoryID
	}
	if next.SourceType != nil {
		result.SourceType = next.SourceType
	}
	if next.SourceID != nil {
		result.SourceID = next.SourceID
	}
	if next.MessageID != nil {
		result.MessageID = next.MessageID
	}
	if next.JobID != nil {
		result.JobID = next.JobID
	}
	if next.Component != "" {
		result.Component = next.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{StoryID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen bytes, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"basegraph.app/scribe/internal/domain"
)

// StatusFor maps a service error to its HTTP status.
func StatusFor(err error) int {
	var unrecorded *domain.UnrecordedIssueError
	if errors.As(err, &unrecorded) {
		return http.StatusInternalServerError
	}

	switch domain.KindOf(err) {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInvalidState, domain.KindDuplicate:
		return http.StatusConflict
	case domain.KindConfiguration:
		return http.StatusServiceUnavailable
	case domain.KindTransient:
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {"error", "kind"}. Unclassified errors are logged and
// hidden behind a generic message.
func respondError(c *gin.Context, err error) {
	var unrecorded *domain.UnrecordedIssueError
	if errors.As(err, &unrecorded) {
		slog.ErrorContext(c.Request.Context(), "request failed", "error", err)
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":        fmt.Sprintf("Issue %s was created but the story could not be marked published; do not publish it again", unrecorded.ExternalKey),
			"kind":         "publish_unrecorded",
			"external_key": unrecorded.ExternalKey,
		})
		return
	}

	status := StatusFor(err)
	kind := string(domain.KindOf(err))
	message := domain.MessageOf(err)

	if status == http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "request failed", "error", err)
		kind = "internal"
		message = "internal server error"
	}
	_ = c.Error(err)

	c.JSON(status, gin.H{"error": message, "kind": kind})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": string(domain.KindValidation)})
}

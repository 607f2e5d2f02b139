package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/radpilot/radpilot/internal/platform/auth"
)

// AuditEntry records one access to clinical data.
type AuditEntry struct {
	RadiologistID   string
	RadiologistName string
	Resource        string
	ResourceID      string
	Action          string
	Path            string
	Method          string
	IPAddress       string
	UserAgent       string
	RequestID       string
	StatusCode      int
	Timestamp       time.Time
}

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// Audit logs every /api/v1 and /fhir request together with the asserted
// radiologist. Entries are also handed to recorder when one is given.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path
			if !isAuditablePath(path) {
				return next(c)
			}

			err := next(c)

			rad := auth.RadiologistFromContext(c.Request().Context())
			resource, resourceID := extractResource(path)
			entry := AuditEntry{
				RadiologistID:   rad.ID,
				RadiologistName: rad.Name,
				Resource:        resource,
				ResourceID:      resourceID,
				Action:          httpMethodToAction(req.Method),
				Path:            path,
				Method:          req.Method,
				IPAddress:       c.RealIP(),
				UserAgent:       req.UserAgent(),
				StatusCode:      c.Response().Status,
				Timestamp:       time.Now().UTC(),
			}
			entry.RequestID, _ = c.Get("request_id").(string)

			for _, r := range recorders {
				if r == nil {
					continue
				}
				if recErr := r.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "audit").
				Str("request_id", entry.RequestID).
				Str("radiologist_id", entry.RadiologistID).
				Str("resource", entry.Resource).
				Str("resource_id", entry.ResourceID).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("clinical_access")

			return err
		}
	}
}

func isAuditablePath(path string) bool {
	return strings.HasPrefix(path, "/fhir/") || strings.HasPrefix(path, "/api/v1/")
}

func httpMethodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// extractResource returns the first path segment after the API prefix and,
// when the next segment is a UUID, that id.
//
//	/api/v1/studies/<id>/images -> studies, <id>
//	/fhir/DiagnosticReport/<id> -> DiagnosticReport, <id>
//	/api/v1/session/next        -> session, ""
func extractResource(path string) (string, string) {
	rest := strings.TrimPrefix(strings.TrimPrefix(path, "/fhir/"), "/api/v1/")
	segments := strings.Split(rest, "/")
	if len(segments) == 0 || segments[0] == "" {
		return "unknown", ""
	}
	if len(segments) > 1 {
		if _, err := uuid.Parse(segments[1]); err == nil {
			return segments[0], segments[1]
		}
	}
	return segments[0], ""
}

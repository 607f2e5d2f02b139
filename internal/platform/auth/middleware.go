package auth

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	RadiologistIDKey   contextKey = "radiologist_id"
	RadiologistNameKey contextKey = "radiologist_name"
)

const (
	HeaderRadiologistID   = "X-Radiologist-ID"
	HeaderRadiologistName = "X-Radiologist-Name"
)

// Radiologist is the asserted identity of the clinician making a request.
// It is taken at face value and never verified.
type Radiologist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RadiologistMiddleware resolves the radiologist for each request from the
// X-Radiologist-ID and X-Radiologist-Name headers, falling back to fallback
// for whichever is absent. The ID is also set on the echo context for the
// request logger.
func RadiologistMiddleware(fallback Radiologist) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			r := fallback
			if id := strings.TrimSpace(c.Request().Header.Get(HeaderRadiologistID)); id != "" {
				r.ID = id
			}
			if name := strings.TrimSpace(c.Request().Header.Get(HeaderRadiologistName)); name != "" {
				r.Name = name
			}

			c.Set(string(RadiologistIDKey), r.ID)
			c.SetRequest(c.Request().WithContext(WithRadiologist(c.Request().Context(), r)))
			return next(c)
		}
	}
}

func WithRadiologist(ctx context.Context, r Radiologist) context.Context {
	ctx = context.WithValue(ctx, RadiologistIDKey, r.ID)
	return context.WithValue(ctx, RadiologistNameKey, r.Name)
}

func RadiologistFromContext(ctx context.Context) Radiologist {
	id, _ := ctx.Value(RadiologistIDKey).(string)
	name, _ := ctx.Value(RadiologistNameKey).(string)
	return Radiologist{ID: id, Name: name}
}

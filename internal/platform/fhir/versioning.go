package fhir

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// FormatETag renders a weak ETag for a resource version.
func FormatETag(versionID int) string {
	return `W/"` + strconv.Itoa(versionID) + `"`
}

// SetVersionHeaders sets ETag and, for a non-zero time, Last-Modified.
func SetVersionHeaders(c echo.Context, versionID int, lastModified time.Time) {
	h := c.Response().Header()
	h.Set("ETag", FormatETag(versionID))
	if !lastModified.IsZero() {
		h.Set("Last-Modified", lastModified.UTC().Format(http.TimeFormat))
	}
}

// NotModified reports whether the request's If-None-Match already names
// versionID.
func NotModified(c echo.Context, versionID int) bool {
	header := c.Request().Header.Get("If-None-Match")
	if header == "" {
		return false
	}
	want := FormatETag(versionID)
	for _, tag := range strings.Split(header, ",") {
		tag = strings.TrimSpace(tag)
		if tag == "*" || tag == want || "W/"+tag == want {
			return true
		}
	}
	return false
}

// Read answers a versioned read: version headers, then 304 when the client
// already holds this version, otherwise the resource.
func Read(c echo.Context, versionID int, lastModified time.Time, resource interface{}) error {
	SetVersionHeaders(c, versionID, lastModified)
	if NotModified(c, versionID) {
		return c.NoContent(http.StatusNotModified)
	}
	return JSON(c, http.StatusOK, resource)
}

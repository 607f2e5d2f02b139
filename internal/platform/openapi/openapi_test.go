package openapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func noop(c echo.Context) error { return nil }

func newTestEcho() (*echo.Echo, *Generator) {
	e := echo.New()
	api := e.Group("/api/v1")
	api.GET("/studies", noop)
	api.POST("/studies", noop)
	api.GET("/studies/:id", noop)
	api.PUT("/session/answers/:question_id", noop)
	api.DELETE("/session", noop)
	e.Group("/fhir").GET("/DiagnosticReport/:id", noop)
	e.GET("/health", noop)
	g := NewGenerator(e, "1.2.3", "http://localhost:8000")
	g.RegisterRoutes(api)
	return e, g
}

func TestGenerateSpec_Structure(t *testing.T) {
	_, g := newTestEcho()
	spec := g.GenerateSpec()

	if spec["openapi"] != "3.0.3" {
		t.Errorf("expected openapi 3.0.3, got %v", spec["openapi"])
	}
	info := spec["info"].(map[string]interface{})
	if info["version"] != "1.2.3" {
		t.Errorf("expected version 1.2.3, got %v", info["version"])
	}
	paths := spec["paths"].(map[string]map[string]interface{})
	for _, p := range []string{"/api/v1/studies", "/api/v1/studies/{id}", "/api/v1/session/answers/{question_id}", "/fhir/DiagnosticReport/{id}", "/health", "/api/v1/openapi.json"} {
		if _, ok := paths[p]; !ok {
			t.Errorf("missing path %s", p)
		}
	}
	if len(paths["/api/v1/studies"]) != 2 {
		t.Errorf("expected get and post on /api/v1/studies, got %v", paths["/api/v1/studies"])
	}
}

func TestGenerateSpec_Operations(t *testing.T) {
	_, g := newTestEcho()
	paths := g.GenerateSpec()["paths"].(map[string]map[string]interface{})

	get := paths["/api/v1/studies/{id}"]["get"].(map[string]interface{})
	if get["operationId"] != "getStudiesById" {
		t.Errorf("unexpected operationId %v", get["operationId"])
	}
	if tags := get["tags"].([]string); tags[0] != "studies" {
		t.Errorf("unexpected tags %v", tags)
	}
	params := get["parameters"].([]map[string]interface{})
	if len(params) != 1 || params[0]["name"] != "id" || params[0]["in"] != "path" {
		t.Errorf("unexpected parameters %v", params)
	}
	if _, ok := get["responses"].(map[string]interface{})["404"]; !ok {
		t.Error("expected 404 response on item path")
	}

	post := paths["/api/v1/studies"]["post"].(map[string]interface{})
	if _, ok := post["requestBody"]; !ok {
		t.Error("expected request body on post")
	}
	if _, ok := post["responses"].(map[string]interface{})["201"]; !ok {
		t.Error("expected 201 on create")
	}

	del := paths["/api/v1/session"]["delete"].(map[string]interface{})
	if _, ok := del["responses"].(map[string]interface{})["204"]; !ok {
		t.Error("expected 204 on delete")
	}

	fhirGet := paths["/fhir/DiagnosticReport/{id}"]["get"].(map[string]interface{})
	notFound := fhirGet["responses"].(map[string]interface{})["404"].(map[string]interface{})
	body, _ := json.Marshal(notFound)
	if !strings.Contains(string(body), "OperationOutcome") {
		t.Errorf("expected FHIR errors to use OperationOutcome, got %s", body)
	}
}

func TestConvertPath(t *testing.T) {
	got, params := convertPath("/api/v1/reports/:id/verify")
	if got != "/api/v1/reports/{id}/verify" || len(params) != 1 || params[0] != "id" {
		t.Errorf("unexpected conversion %s %v", got, params)
	}
	if got, params := convertPath("/health"); got != "/health" || len(params) != 0 {
		t.Errorf("unexpected conversion %s %v", got, params)
	}
}

func TestTag(t *testing.T) {
	tests := map[string]string{
		"/api/v1/session/report":        "session",
		"/fhir/DiagnosticReport/:id":    "DiagnosticReport",
		"/health":                       "health",
		"/api/v1/measures/:id/evaluate": "measures",
		"/":                             "system",
	}
	for path, want := range tests {
		if got := tag(path); got != want {
			t.Errorf("tag(%s): expected %s, got %s", path, want, got)
		}
	}
}

func TestGenerator_OpenAPIEndpoint(t *testing.T) {
	e, _ := newTestEcho()
	e.GET("/late", noop)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/openapi.json", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var spec struct {
		OpenAPI string                 `json:"openapi"`
		Paths   map[string]interface{} `json:"paths"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &spec); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if spec.OpenAPI != "3.0.3" {
		t.Errorf("expected openapi 3.0.3, got %s", spec.OpenAPI)
	}
	if _, ok := spec.Paths["/late"]; !ok {
		t.Error("expected routes added after the generator to be documented")
	}
}

func TestGenerator_Docs(t *testing.T) {
	e, _ := newTestEcho()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/docs", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "/api/v1/openapi.json") {
		t.Error("expected swagger ui to point at the document")
	}
}

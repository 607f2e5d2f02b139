// Package openapi describes the HTTP API as an OpenAPI 3.0 document derived
// from the routes registered on the echo instance.
package openapi

import (
	"net/http"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"
)

// Generator builds the document from the live route table, so it is read at
// request time and includes routes registered after the generator.
type Generator struct {
	e       *echo.Echo
	version string
	baseURL string
}

func NewGenerator(e *echo.Echo, version, baseURL string) *Generator {
	return &Generator{e: e, version: version, baseURL: baseURL}
}

// GenerateSpec produces the OpenAPI document as a map.
func (g *Generator) GenerateSpec() map[string]interface{} {
	routes := g.e.Routes()
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})

	paths := make(map[string]map[string]interface{})
	for _, r := range routes {
		method := strings.ToLower(r.Method)
		if !documented(method) || strings.HasSuffix(r.Path, "/*") {
			continue
		}
		path, params := convertPath(r.Path)
		if paths[path] == nil {
			paths[path] = make(map[string]interface{})
		}
		paths[path][method] = g.operation(r.Method, r.Path, params)
	}

	return map[string]interface{}{
		"openapi": "3.0.3",
		"info": map[string]interface{}{
			"title":       "RadPilot Reporting API",
			"version":     g.version,
			"description": "Structured radiology reporting: studies, guided questionnaires, report drafting and sign-off.",
		},
		"servers": []map[string]string{
			{"url": g.baseURL},
		},
		"paths": paths,
		"components": map[string]interface{}{
			"schemas": map[string]interface{}{
				"Error":            errorSchema(),
				"OperationOutcome": operationOutcomeSchema(),
			},
		},
	}
}

func documented(method string) bool {
	switch method {
	case "get", "post", "put", "patch", "delete":
		return true
	}
	return false
}

// convertPath turns echo's ":id" segments into "{id}" and returns the
// parameter names in order.
func convertPath(p string) (string, []string) {
	segments := strings.Split(p, "/")
	var params []string
	for i, s := range segments {
		if strings.HasPrefix(s, ":") {
			name := s[1:]
			params = append(params, name)
			segments[i] = "{" + name + "}"
		}
	}
	return strings.Join(segments, "/"), params
}

// tag groups operations by their first resource segment.
func tag(p string) string {
	trimmed := strings.TrimPrefix(p, "/api/v1")
	for _, s := range strings.Split(trimmed, "/") {
		if s != "" && s != "fhir" && !strings.HasPrefix(s, ":") {
			return s
		}
	}
	return "system"
}

func operationID(method, p string) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(method))
	for _, s := range strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '_' || r == '-' || r == '.' }) {
		if strings.HasPrefix(s, ":") {
			s = "by" + strings.ToUpper(s[1:2]) + s[2:]
		}
		if s == "api" || s == "v1" {
			continue
		}
		b.WriteString(strings.ToUpper(s[:1]) + s[1:])
	}
	return b.String()
}

func (g *Generator) operation(method, p string, params []string) map[string]interface{} {
	op := map[string]interface{}{
		"operationId": operationID(method, p),
		"tags":        []string{tag(p)},
		"responses":   responses(method, p),
	}
	if len(params) > 0 {
		var parameters []map[string]interface{}
		for _, name := range params {
			parameters = append(parameters, map[string]interface{}{
				"name":     name,
				"in":       "path",
				"required": true,
				"schema":   map[string]string{"type": "string"},
			})
		}
		op["parameters"] = parameters
	}
	if method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch {
		op["requestBody"] = map[string]interface{}{
			"required": false,
			"content": map[string]interface{}{
				"application/json": map[string]interface{}{
					"schema": map[string]string{"type": "object"},
				},
			},
		}
	}
	return op
}

func responses(method, p string) map[string]interface{} {
	success := "200"
	switch {
	case method == http.MethodDelete:
		success = "204"
	case method == http.MethodPost && (strings.HasSuffix(p, "/patients") || strings.HasSuffix(p, "/studies") ||
		strings.HasSuffix(p, "/session") || strings.HasSuffix(p, "/images")):
		success = "201"
	}
	errorRef := "#/components/schemas/Error"
	if strings.HasPrefix(p, "/fhir/") {
		errorRef = "#/components/schemas/OperationOutcome"
	}
	errorResponse := func(description string) map[string]interface{} {
		return map[string]interface{}{
			"description": description,
			"content": map[string]interface{}{
				"application/json": map[string]interface{}{
					"schema": map[string]string{"$ref": errorRef},
				},
			},
		}
	}
	out := map[string]interface{}{
		success: map[string]interface{}{"description": "Success"},
		"400":   errorResponse("Bad Request"),
	}
	if strings.Contains(p, "/:") || strings.HasPrefix(p, "/api/v1/session") {
		out["404"] = errorResponse("Not Found")
	}
	return out
}

func errorSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"message": map[string]string{"type": "string"},
		},
	}
}

func operationOutcomeSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"resourceType": map[string]string{"type": "string"},
			"issue": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"severity":    map[string]string{"type": "string"},
						"code":        map[string]string{"type": "string"},
						"diagnostics": map[string]string{"type": "string"},
					},
				},
			},
		},
	}
}

const swaggerUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>RadPilot Reporting API - Swagger UI</title>
  <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" >
  <style>
    html { box-sizing: border-box; overflow-y: scroll; }
    *, *:before, *:after { box-sizing: inherit; }
    body { margin: 0; background: #fafafa; }
  </style>
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: "/api/v1/openapi.json",
      dom_id: '#swagger-ui',
      deepLinking: true,
      presets: [
        SwaggerUIBundle.presets.apis,
        SwaggerUIBundle.SwaggerUIStandalonePreset
      ],
      layout: "BaseLayout"
    })
  </script>
</body>
</html>`

func (g *Generator) RegisterRoutes(api *echo.Group) {
	api.GET("/openapi.json", func(c echo.Context) error {
		return c.JSON(http.StatusOK, g.GenerateSpec())
	})
	api.GET("/docs", func(c echo.Context) error {
		return c.HTML(http.StatusOK, swaggerUIHTML)
	})
}

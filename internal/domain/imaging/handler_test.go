package imaging

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func newTestServer(t *testing.T) (*echo.Echo, *testEnv) {
	t.Helper()
	env := newTestEnv(t)
	e := echo.New()
	NewHandler(env.svc).RegisterRoutes(e.Group("/api/v1"))
	return e, env
}

func multipartBody(t *testing.T, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for name, data := range files {
		part, err := w.CreateFormFile("file", name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, w.FormDataContentType()
}

func TestHandler_UploadAndList(t *testing.T) {
	e, env := newTestServer(t)
	body, ct := multipartBody(t, map[string][]byte{
		"IM0001.dcm": buildDICOM(t, "US"),
		"notes.txt":  []byte("hello"),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/studies/"+env.study.ID.String()+"/images", body)
	req.Header.Set(echo.HeaderContentType, ct)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var uploaded []Image
	if err := json.Unmarshal(rec.Body.Bytes(), &uploaded); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(uploaded) != 2 {
		t.Fatalf("expected 2 images, got %d", len(uploaded))
	}
	kinds := map[string]string{}
	for _, img := range uploaded {
		kinds[img.FileName] = img.Kind
	}
	if kinds["IM0001.dcm"] != KindDICOM || kinds["notes.txt"] != KindOther {
		t.Errorf("unexpected kinds: %v", kinds)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/studies/"+env.study.ID.String()+"/images", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var list struct {
		Total int `json:"total"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &list)
	if list.Total != 2 {
		t.Errorf("expected total 2, got %d", list.Total)
	}
}

func TestHandler_UploadErrors(t *testing.T) {
	e, env := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/studies/"+env.study.ID.String()+"/images", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without form, got %d", rec.Code)
	}

	body, ct := multipartBody(t, map[string][]byte{"a.png": []byte("x")})
	req = httptest.NewRequest(http.MethodPost, "/api/v1/studies/"+uuid.New().String()+"/images", body)
	req.Header.Set(echo.HeaderContentType, ct)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown study, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/studies/not-a-uuid/images", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid id, got %d", rec.Code)
	}
}

func TestHandler_GetAndDownload(t *testing.T) {
	e, env := newTestServer(t)
	img, err := env.svc.Upload(context.Background(), env.study.ID, "1", "a.png", "image/png", bytes.NewReader([]byte("png-bytes")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/images/"+img.ID, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/images/"+img.ID+"/content", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "png-bytes" {
		t.Errorf("expected content, got %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(echo.HeaderContentType) != "image/png" {
		t.Errorf("expected image/png, got %s", rec.Header().Get(echo.HeaderContentType))
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/images/missing", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

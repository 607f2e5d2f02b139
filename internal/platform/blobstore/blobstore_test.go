package blobstore

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"
)

func seedBlob(t *testing.T, store BlobStore, studyID, fileName, contentType, content string) *BlobMetadata {
	t.Helper()
	meta := BlobMetadata{
		StudyID:     studyID,
		FileName:    fileName,
		ContentType: contentType,
		CreatedBy:   "1",
		Tags:        map[string]string{"kind": "image"},
	}
	result, err := store.Upload(context.Background(), meta, strings.NewReader(content))
	if err != nil {
		t.Fatalf("seedBlob: %v", err)
	}
	return result
}

func TestInMemoryBlobStore_Upload(t *testing.T) {
	store := NewInMemoryBlobStore()
	content := "hello world"

	result := seedBlob(t, store, "study-1", "scan.png", "image/png", content)

	if result.ID == "" {
		t.Fatal("expected non-empty ID")
	}
	if result.StudyID != "study-1" {
		t.Errorf("expected StudyID=study-1, got %s", result.StudyID)
	}
	if result.Size != int64(len(content)) {
		t.Errorf("expected Size=%d, got %d", len(content), result.Size)
	}
	if want := fmt.Sprintf("%x", sha256.Sum256([]byte(content))); result.Hash != want {
		t.Errorf("expected Hash=%s, got %s", want, result.Hash)
	}
	if result.CreatedAt.IsZero() {
		t.Error("expected non-zero CreatedAt")
	}
	if result.Tags["kind"] != "image" {
		t.Errorf("expected tags to be kept, got %v", result.Tags)
	}
}

func TestInMemoryBlobStore_UploadDefaultsContentType(t *testing.T) {
	store := NewInMemoryBlobStore()
	result := seedBlob(t, store, "study-1", "IM0001", "", "data")
	if result.ContentType != "application/octet-stream" {
		t.Errorf("expected octet-stream, got %s", result.ContentType)
	}
}

func TestInMemoryBlobStore_UploadValidation(t *testing.T) {
	store := NewInMemoryBlobStore()
	ctx := context.Background()

	_, err := store.Upload(ctx, BlobMetadata{StudyID: "s"}, strings.NewReader("x"))
	if !errors.Is(err, ErrMissingFileName) {
		t.Errorf("expected ErrMissingFileName, got %v", err)
	}
	_, err = store.Upload(ctx, BlobMetadata{FileName: "a.dcm"}, strings.NewReader("x"))
	if !errors.Is(err, ErrMissingStudy) {
		t.Errorf("expected ErrMissingStudy, got %v", err)
	}
}

func TestInMemoryBlobStore_UploadTooLarge(t *testing.T) {
	store := NewInMemoryBlobStore()
	big := io.LimitReader(zeroReader{}, MaxFileSize+10)
	_, err := store.Upload(context.Background(), BlobMetadata{StudyID: "s", FileName: "big.dcm"}, big)
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("expected ErrFileTooLarge, got %v", err)
	}
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

func TestInMemoryBlobStore_Download(t *testing.T) {
	store := NewInMemoryBlobStore()
	uploaded := seedBlob(t, store, "study-1", "scan.dcm", "application/dicom", "binary-content")

	rc, meta, err := store.Download(context.Background(), uploaded.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("error reading content: %v", err)
	}
	if string(data) != "binary-content" {
		t.Errorf("unexpected content %q", string(data))
	}
	if meta.FileName != "scan.dcm" {
		t.Errorf("expected FileName=scan.dcm, got %s", meta.FileName)
	}
}

func TestInMemoryBlobStore_NotFound(t *testing.T) {
	store := NewInMemoryBlobStore()
	ctx := context.Background()

	if _, _, err := store.Download(ctx, "missing"); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("expected ErrBlobNotFound, got %v", err)
	}
	if _, err := store.GetMetadata(ctx, "missing"); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("expected ErrBlobNotFound, got %v", err)
	}
	if err := store.Delete(ctx, "missing"); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("expected ErrBlobNotFound, got %v", err)
	}
}

func TestInMemoryBlobStore_Delete(t *testing.T) {
	store := NewInMemoryBlobStore()
	uploaded := seedBlob(t, store, "study-1", "file.png", "image/png", "data")

	if err := store.Delete(context.Background(), uploaded.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.GetMetadata(context.Background(), uploaded.ID); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("expected ErrBlobNotFound after delete, got %v", err)
	}
}

func TestInMemoryBlobStore_MetadataIsCopied(t *testing.T) {
	store := NewInMemoryBlobStore()
	uploaded := seedBlob(t, store, "study-1", "file.png", "image/png", "data")
	uploaded.Tags["kind"] = "changed"

	meta, _ := store.GetMetadata(context.Background(), uploaded.ID)
	if meta.Tags["kind"] != "image" {
		t.Errorf("expected stored tags unchanged, got %v", meta.Tags)
	}
}

func TestInMemoryBlobStore_ListByStudy(t *testing.T) {
	store := NewInMemoryBlobStore()
	tick := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	seedBlob(t, store, "study-A", "a1.dcm", "application/dicom", "a1")
	seedBlob(t, store, "study-A", "a2.dcm", "application/dicom", "a2")
	seedBlob(t, store, "study-A", "a3.dcm", "application/dicom", "a3")
	seedBlob(t, store, "study-B", "b1.dcm", "application/dicom", "b1")

	results, total, err := store.ListByStudy(context.Background(), "study-A", 2, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 {
		t.Errorf("expected total=3, got %d", total)
	}
	if len(results) != 2 || results[0].FileName != "a1.dcm" || results[1].FileName != "a2.dcm" {
		t.Errorf("expected first page in upload order, got %v", results)
	}

	results, _, _ = store.ListByStudy(context.Background(), "study-A", 2, 2)
	if len(results) != 1 || results[0].FileName != "a3.dcm" {
		t.Errorf("expected a3 on second page, got %v", results)
	}

	results, total, _ = store.ListByStudy(context.Background(), "study-C", 10, 0)
	if total != 0 || len(results) != 0 {
		t.Errorf("expected no results, got %d", total)
	}
}

func TestInMemoryBlobStore_ConcurrentUploads(t *testing.T) {
	store := NewInMemoryBlobStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = store.Upload(context.Background(), BlobMetadata{
				StudyID:  "study-1",
				FileName: fmt.Sprintf("IM%04d.dcm", i),
			}, strings.NewReader("x"))
		}(i)
	}
	wg.Wait()

	_, total, _ := store.ListByStudy(context.Background(), "study-1", 0, 0)
	if total != 50 {
		t.Errorf("expected 50 blobs, got %d", total)
	}
}

package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/healthhub/healthhub/internal/platform/auth"
)

func seedBlob(t *testing.T, store BlobStore, ownerID, category, appointmentID, fileName, content string) *BlobMetadata {
	t.Helper()
	meta := BlobMetadata{
		OwnerID:       ownerID,
		FileName:      fileName,
		ContentType:   "text/plain",
		Category:      category,
		AppointmentID: appointmentID,
	}
	result, err := store.Upload(context.Background(), meta, strings.NewReader(content))
	if err != nil {
		t.Fatalf("seedBlob: %v", err)
	}
	return result
}

func TestInMemoryBlobStore_Upload(t *testing.T) {
	store := NewInMemoryBlobStore()
	content := "blood pressure log"

	result, err := store.Upload(context.Background(), BlobMetadata{
		OwnerID:     "u1",
		FileName:    "bp.txt",
		ContentType: "text/plain",
		Category:    CategoryAttachment,
	}, strings.NewReader(content))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ID == "" {
		t.Fatal("expected non-empty ID")
	}
	if result.Size != int64(len(content)) {
		t.Errorf("expected Size=%d, got %d", len(content), result.Size)
	}
	if want := fmt.Sprintf("%x", sha256.Sum256([]byte(content))); result.Hash != want {
		t.Errorf("expected hash %s, got %s", want, result.Hash)
	}
	if result.CreatedAt.IsZero() {
		t.Error("expected non-zero CreatedAt")
	}
}

func TestInMemoryBlobStore_UnknownCategoryBecomesOther(t *testing.T) {
	store := NewInMemoryBlobStore()
	m := seedBlob(t, store, "u1", "holiday-photos", "", "a.txt", "x")
	if m.Category != CategoryOther {
		t.Errorf("expected category %q, got %q", CategoryOther, m.Category)
	}
}

func TestInMemoryBlobStore_UploadValidation(t *testing.T) {
	store := NewInMemoryBlobStore()
	tests := []struct {
		name string
		meta BlobMetadata
		body io.Reader
		want error
	}{
		{"missing owner", BlobMetadata{FileName: "a.txt", ContentType: "text/plain"}, strings.NewReader("x"), ErrMissingOwner},
		{"missing name", BlobMetadata{OwnerID: "u1", ContentType: "text/plain"}, strings.NewReader("x"), ErrMissingFileName},
		{"bad type", BlobMetadata{OwnerID: "u1", FileName: "a.exe", ContentType: "application/x-msdownload"}, strings.NewReader("x"), ErrInvalidContentType},
		{"too large", BlobMetadata{OwnerID: "u1", FileName: "big.txt", ContentType: "text/plain"}, bytes.NewReader(make([]byte, MaxFileSize+1)), ErrFileTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := store.Upload(context.Background(), tt.meta, tt.body); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestInMemoryBlobStore_DownloadIsOwnerScoped(t *testing.T) {
	store := NewInMemoryBlobStore()
	m := seedBlob(t, store, "u1", CategoryOther, "", "a.txt", "secret")

	rc, meta, err := store.Download(context.Background(), "u1", m.ID)
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "secret" || meta.FileName != "a.txt" {
		t.Errorf("unexpected download %q %+v", data, meta)
	}

	if _, _, err := store.Download(context.Background(), "u2", m.ID); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("another user must not see the blob, got %v", err)
	}
	if err := store.Delete(context.Background(), "u2", m.ID); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("another user must not delete the blob, got %v", err)
	}
}

func TestInMemoryBlobStore_Delete(t *testing.T) {
	store := NewInMemoryBlobStore()
	m := seedBlob(t, store, "u1", CategoryOther, "", "a.txt", "x")
	if err := store.Delete(context.Background(), "u1", m.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetMetadata(context.Background(), "u1", m.ID); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("expected not found after delete, got %v", err)
	}
}

func TestInMemoryBlobStore_ListByOwner(t *testing.T) {
	store := NewInMemoryBlobStore()
	seedBlob(t, store, "u1", CategoryAttachment, "appt-1", "a.txt", "a")
	seedBlob(t, store, "u1", CategoryAttachment, "appt-2", "b.txt", "b")
	seedBlob(t, store, "u1", CategoryExport, "", "c.txt", "c")
	seedBlob(t, store, "u2", CategoryAttachment, "appt-1", "d.txt", "d")

	all, _ := store.ListByOwner(context.Background(), "u1", "", "")
	if len(all) != 3 {
		t.Errorf("expected 3 blobs for u1, got %d", len(all))
	}
	att, _ := store.ListByOwner(context.Background(), "u1", CategoryAttachment, "")
	if len(att) != 2 {
		t.Errorf("expected 2 attachments, got %d", len(att))
	}
	one, _ := store.ListByOwner(context.Background(), "u1", "", "appt-1")
	if len(one) != 1 || one[0].FileName != "a.txt" {
		t.Errorf("expected only a.txt for appt-1, got %+v", one)
	}
	none, _ := store.ListByOwner(context.Background(), "nobody", "", "")
	if none == nil || len(none) != 0 {
		t.Errorf("expected empty non-nil list, got %#v", none)
	}
}

func TestInMemoryBlobStore_ConcurrentAccess(t *testing.T) {
	store := NewInMemoryBlobStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m := seedBlob(t, store, "u1", CategoryOther, "", fmt.Sprintf("f%d.txt", i), "x")
			_, _ = store.GetMetadata(context.Background(), "u1", m.ID)
		}(i)
	}
	wg.Wait()
	items, _ := store.ListByOwner(context.Background(), "u1", "", "")
	if len(items) != 20 {
		t.Errorf("expected 20 blobs, got %d", len(items))
	}
}

func TestFromObjectInfo_ReadsUserMetadata(t *testing.T) {
	m := BlobMetadata{FileName: "scan.pdf", Category: CategoryLabReport, AppointmentID: "a1", Hash: "abc"}
	info := minioInfo(toUserMetadata(m))
	got := fromObjectInfo("u1", "id1", info)
	if got.FileName != "scan.pdf" || got.Category != CategoryLabReport || got.AppointmentID != "a1" || got.Hash != "abc" {
		t.Errorf("unexpected metadata %+v", got)
	}
	if got.OwnerID != "u1" || got.ID != "id1" {
		t.Errorf("expected owner/id from key, got %+v", got)
	}
}

func withUser(req *http.Request, userID string) *http.Request {
	return req.WithContext(auth.WithUser(req.Context(), userID, []string{auth.RoleUser}))
}

func multipartUpload(t *testing.T, fileName, contentType, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		_ = w.WriteField(k, v)
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, fileName))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write([]byte(content))
	_ = w.Close()
	return body, w.FormDataContentType()
}

func TestBlobHandler_Upload(t *testing.T) {
	store := NewInMemoryBlobStore()
	h := NewBlobHandler(store)
	e := echo.New()

	body, ct := multipartUpload(t, "report.pdf", "application/pdf", "%PDF", map[string]string{"category": CategoryLabReport})
	req := withUser(httptest.NewRequest(http.MethodPost, "/", body), "u1")
	req.Header.Set(echo.HeaderContentType, ct)
	rec := httptest.NewRecorder()

	if err := h.handleUpload(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var meta BlobMetadata
	_ = json.Unmarshal(rec.Body.Bytes(), &meta)
	if meta.OwnerID != "u1" || meta.Category != CategoryLabReport {
		t.Errorf("unexpected metadata %+v", meta)
	}
}

func TestBlobHandler_UploadRejectsType(t *testing.T) {
	h := NewBlobHandler(NewInMemoryBlobStore())
	e := echo.New()

	body, ct := multipartUpload(t, "x.exe", "application/x-msdownload", "MZ", nil)
	req := withUser(httptest.NewRequest(http.MethodPost, "/", body), "u1")
	req.Header.Set(echo.HeaderContentType, ct)
	err := h.handleUpload(e.NewContext(req, httptest.NewRecorder()))
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnsupportedMediaType {
		t.Errorf("expected 415, got %v", err)
	}
}

func TestBlobHandler_RequiresUser(t *testing.T) {
	h := NewBlobHandler(NewInMemoryBlobStore())
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	err := h.handleList(e.NewContext(req, httptest.NewRecorder()))
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}
}

func TestBlobHandler_Download(t *testing.T) {
	store := NewInMemoryBlobStore()
	m := seedBlob(t, store, "u1", CategoryOther, "", "notes.txt", "hello")
	h := NewBlobHandler(store)
	e := echo.New()

	req := withUser(httptest.NewRequest(http.MethodGet, "/", nil), "u1")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(m.ID)

	if err := h.handleDownload(c); err != nil {
		t.Fatal(err)
	}
	if rec.Body.String() != "hello" {
		t.Errorf("expected body hello, got %q", rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "notes.txt") {
		t.Errorf("expected filename in Content-Disposition, got %q", cd)
	}
}

func TestBlobHandler_DeleteOtherUserIs404(t *testing.T) {
	store := NewInMemoryBlobStore()
	m := seedBlob(t, store, "u1", CategoryOther, "", "notes.txt", "hello")
	h := NewBlobHandler(store)
	e := echo.New()

	req := withUser(httptest.NewRequest(http.MethodDelete, "/", nil), "u2")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(m.ID)

	err := h.handleDelete(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestBlobHandler_List(t *testing.T) {
	store := NewInMemoryBlobStore()
	seedBlob(t, store, "u1", CategoryExport, "", "a.txt", "a")
	seedBlob(t, store, "u1", CategoryOther, "", "b.txt", "b")
	h := NewBlobHandler(store)
	e := echo.New()

	req := withUser(httptest.NewRequest(http.MethodGet, "/?category=export", nil), "u1")
	rec := httptest.NewRecorder()
	if err := h.handleList(e.NewContext(req, rec)); err != nil {
		t.Fatal(err)
	}
	var resp listResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 1 || resp.Items[0].FileName != "a.txt" {
		t.Errorf("unexpected list %+v", resp)
	}
}

package telemedicine

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/healthhub/healthhub/internal/platform/auth"
	"github.com/healthhub/healthhub/internal/platform/blobstore"
	"github.com/healthhub/healthhub/internal/platform/kvstore"
	"github.com/healthhub/healthhub/internal/platform/notification"
	"github.com/healthhub/healthhub/internal/platform/validate"
)

var fixedNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func newTestService() (*Service, *notification.Service) {
	store := kvstore.NewMemoryStore()
	logger := zerolog.Nop()
	sender := notification.NewLogSender(logger)
	notes := notification.NewService(store, notification.NewTemplateEngine(), sender, sender, logger)
	s := NewService(store, blobstore.NewInMemoryBlobStore(), notes, logger)
	s.now = func() time.Time { return fixedNow }
	return s, notes
}

func firstSlot(t *testing.T, s *Service, doctorID string) AvailableSlot {
	t.Helper()
	slots, err := s.Slots(context.Background(), doctorID, 0)
	if err != nil || len(slots) == 0 {
		t.Fatalf("no slots for %s: %v", doctorID, err)
	}
	return slots[0]
}

func TestSlots(t *testing.T) {
	s, _ := newTestService()
	slots, err := s.Slots(context.Background(), "doc-002", 0)
	if err != nil {
		t.Fatal(err)
	}
	limit := fixedNow.AddDate(0, 0, BookingWindowDays)
	for i, sl := range slots {
		if !sl.Start.After(fixedNow) || sl.Start.After(limit) {
			t.Fatalf("slot %s outside the booking window", sl.Start)
		}
		if sl.End.Sub(sl.Start) != 30*time.Minute {
			t.Fatalf("unexpected slot length %s", sl.End.Sub(sl.Start))
		}
		if i > 0 && !slots[i-1].Start.Before(sl.Start) {
			t.Fatal("slots are not in time order")
		}
	}
	if _, err := s.Slots(context.Background(), "doc-999", 0); !errors.Is(err, ErrDoctorNotFound) {
		t.Errorf("expected ErrDoctorNotFound, got %v", err)
	}
}

func TestBook(t *testing.T) {
	s, notes := newTestService()
	ctx := context.Background()
	slot := firstSlot(t, s, "doc-001")

	appt, err := s.Book(ctx, "u1", BookingRequest{DoctorID: "doc-001", Start: slot.Start, Reason: "checkup", PatientName: "Sam"})
	if err != nil {
		t.Fatal(err)
	}
	if appt.Status != StatusBooked || appt.DoctorName != "Dr. Maya Patel" || !appt.End.Equal(slot.End) {
		t.Errorf("unexpected appointment %+v", appt)
	}

	after, _ := s.Slots(ctx, "doc-001", 0)
	for _, sl := range after {
		if sl.Start.Equal(slot.Start) {
			t.Error("booked slot is still offered")
		}
	}

	history, _ := notes.History(ctx, "u1", false)
	if len(history) != 1 || history[0].TemplateID != notification.TemplateAppointmentConfirmed ||
		!strings.Contains(history[0].Body, "Hi Sam, your video visit with Dr. Maya Patel") {
		t.Errorf("expected a confirmation, got %+v", history)
	}
}

func TestBook_Rejections(t *testing.T) {
	s, _ := newTestService()
	ctx := context.Background()
	slot := firstSlot(t, s, "doc-001")
	if _, err := s.Book(ctx, "u1", BookingRequest{DoctorID: "doc-001", Start: slot.Start}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		req  BookingRequest
		want error
	}{
		{"taken by another user", BookingRequest{DoctorID: "doc-001", Start: slot.Start}, ErrSlotAlreadyBooked},
		{"unknown doctor", BookingRequest{DoctorID: "doc-999", Start: slot.Start}, ErrDoctorNotFound},
		{"outside hours", BookingRequest{DoctorID: "doc-001", Start: time.Date(2024, 3, 18, 3, 0, 0, 0, time.UTC)}, ErrSlotNotFound},
		{"starting right now", BookingRequest{DoctorID: "doc-001", Start: fixedNow}, ErrSlotNotFound},
		{"in the past", BookingRequest{DoctorID: "doc-001", Start: time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)}, ErrSlotNotFound},
		{"beyond the window", BookingRequest{DoctorID: "doc-001", Start: time.Date(2024, 4, 15, 10, 0, 0, 0, time.UTC)}, ErrSlotNotFound},
	}
	for _, tt := range tests {
		if _, err := s.Book(ctx, "u2", tt.req); !errors.Is(err, tt.want) {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, err)
		}
	}
}

func TestBook_Concurrent(t *testing.T) {
	s, _ := newTestService()
	slot := firstSlot(t, s, "doc-003")

	var wg sync.WaitGroup
	var mu sync.Mutex
	booked, conflicts := 0, 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Book(context.Background(), string(rune('a'+i)), BookingRequest{DoctorID: "doc-003", Start: slot.Start})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				booked++
			case errors.Is(err, ErrSlotAlreadyBooked):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	if booked != 1 || conflicts != 9 {
		t.Errorf("expected one booking and nine conflicts, got %d and %d", booked, conflicts)
	}
}

func TestSlots_EveryOfferedSlotIsBookable(t *testing.T) {
	s, _ := newTestService()
	ctx := context.Background()
	slots, err := s.Slots(ctx, "doc-003", 1)
	if err != nil || len(slots) == 0 {
		t.Fatalf("no slots: %v", err)
	}
	for _, sl := range slots {
		if _, err := s.Book(ctx, "u1", BookingRequest{DoctorID: "doc-003", Start: sl.Start}); err != nil {
			t.Errorf("slot %s offered but not bookable: %v", sl.Start, err)
		}
	}
}

func TestCancel(t *testing.T) {
	s, _ := newTestService()
	ctx := context.Background()
	slot := firstSlot(t, s, "doc-001")
	appt, err := s.Book(ctx, "u1", BookingRequest{DoctorID: "doc-001", Start: slot.Start})
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	if _, err := s.Cancel(ctx, "u2", appt.ID, ""); !errors.Is(err, ErrNotOwner) {
		t.Errorf("expected ErrNotOwner, got %v", err)
	}
	if _, err := s.Cancel(ctx, "u1", "missing", ""); !errors.Is(err, ErrAppointmentNotFound) {
		t.Errorf("expected ErrAppointmentNotFound, got %v", err)
	}
	out, err := s.Cancel(ctx, "u1", appt.ID, "feeling better")
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != StatusCancelled || out.CancelReason != "feeling better" || out.CancelledAt == nil {
		t.Errorf("unexpected cancelled appointment %+v", out)
	}
	if _, err := s.Cancel(ctx, "u1", appt.ID, ""); !errors.Is(err, ErrNotCancellable) {
		t.Errorf("expected ErrNotCancellable, got %v", err)
	}
	if _, err := s.Book(ctx, "u2", BookingRequest{DoctorID: "doc-001", Start: slot.Start}); err != nil {
		t.Errorf("cancelled slot should be bookable again: %v", err)
	}
}

func TestListAndNext(t *testing.T) {
	s, _ := newTestService()
	ctx := context.Background()
	slots, _ := s.Slots(ctx, "doc-001", 0)
	late, _ := s.Book(ctx, "u1", BookingRequest{DoctorID: "doc-001", Start: slots[2].Start})
	early, _ := s.Book(ctx, "u1", BookingRequest{DoctorID: "doc-001", Start: slots[0].Start})
	cancelled, _ := s.Book(ctx, "u1", BookingRequest{DoctorID: "doc-001", Start: slots[1].Start})
	s.Cancel(ctx, "u1", cancelled.ID, "")

	all, _ := s.List(ctx, "u1", "", false)
	if len(all) != 3 || all[0].ID != early.ID {
		t.Errorf("expected all three by start time, got %+v", all)
	}
	upcoming, _ := s.List(ctx, "u1", "", true)
	if len(upcoming) != 2 || upcoming[1].ID != late.ID {
		t.Errorf("expected two upcoming, got %+v", upcoming)
	}
	next, _ := s.Next(ctx, "u1")
	if next == nil || next.ID != early.ID {
		t.Errorf("unexpected next %+v", next)
	}
	if none, _ := s.Next(ctx, "u2"); none != nil {
		t.Errorf("expected no next appointment, got %+v", none)
	}
}

func TestAttachments(t *testing.T) {
	s, _ := newTestService()
	ctx := context.Background()
	slot := firstSlot(t, s, "doc-001")
	appt, _ := s.Book(ctx, "u1", BookingRequest{DoctorID: "doc-001", Start: slot.Start})

	meta := blobstore.BlobMetadata{FileName: "rash.png", ContentType: "image/png", Category: blobstore.CategoryExport}
	out, err := s.Attach(ctx, "u1", appt.ID, meta, strings.NewReader("png"))
	if err != nil {
		t.Fatal(err)
	}
	if out.AppointmentID != appt.ID || out.Category != blobstore.CategoryAttachment || out.OwnerID != "u1" {
		t.Errorf("unexpected attachment metadata %+v", out)
	}
	if _, err := s.Attach(ctx, "u2", appt.ID, meta, strings.NewReader("png")); !errors.Is(err, ErrNotOwner) {
		t.Errorf("expected ErrNotOwner, got %v", err)
	}
	items, err := s.Attachments(ctx, "u1", appt.ID)
	if err != nil || len(items) != 1 {
		t.Errorf("expected one attachment, got %d, %v", len(items), err)
	}
}

func newTestEcho(s *Service) *echo.Echo {
	e := echo.New()
	e.Validator = validate.New()
	NewHandler(s).RegisterRoutes(e.Group("/api/v1/dashboard"))
	return e
}

func serve(e *echo.Echo, req *http.Request, userID string) *httptest.ResponseRecorder {
	req = req.WithContext(auth.WithUser(req.Context(), userID, []string{auth.RoleUser}))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func TestHandler_BookAndCancel(t *testing.T) {
	s, _ := newTestService()
	e := newTestEcho(s)
	slot := firstSlot(t, s, "doc-004")
	body := `{"doctor_id":"doc-004","start":"` + slot.Start.Format(time.RFC3339) + `"}`

	if rec := serve(e, jsonRequest(http.MethodPost, "/api/v1/dashboard/telemedicine/appointments", body), "u1"); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := serve(e, jsonRequest(http.MethodPost, "/api/v1/dashboard/telemedicine/appointments", body), "u2"); rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for a double booking, got %d", rec.Code)
	}

	appts, _ := s.List(context.Background(), "u1", "", false)
	path := "/api/v1/dashboard/telemedicine/appointments/" + appts[0].ID + "/cancel"
	if rec := serve(e, jsonRequest(http.MethodPost, path, `{}`), "u2"); rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for another user's appointment, got %d", rec.Code)
	}
	if rec := serve(e, jsonRequest(http.MethodPost, path, `{"reason":"conflict"}`), "u1"); rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_UploadAttachment(t *testing.T) {
	s, _ := newTestService()
	e := newTestEcho(s)
	slot := firstSlot(t, s, "doc-001")
	appt, _ := s.Book(context.Background(), "u1", BookingRequest{DoctorID: "doc-001", Start: slot.Start})

	upload := func(contentType string) int {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="notes.txt"`)
		h.Set("Content-Type", contentType)
		part, _ := w.CreatePart(h)
		part.Write([]byte("blood pressure log"))
		w.Close()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/dashboard/telemedicine/appointments/"+appt.ID+"/attachments", &buf)
		req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
		return serve(e, req, "u1").Code
	}
	if code := upload("text/plain"); code != http.StatusCreated {
		t.Errorf("expected 201, got %d", code)
	}
	if code := upload("application/x-msdownload"); code != http.StatusUnsupportedMediaType {
		t.Errorf("expected 415, got %d", code)
	}
}

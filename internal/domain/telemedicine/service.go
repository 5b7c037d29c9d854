// Package telemedicine books video visits with the doctor directory and
// keeps their attachments.
package telemedicine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthhub/healthhub/internal/platform/blobstore"
	"github.com/healthhub/healthhub/internal/platform/kvstore"
	"github.com/healthhub/healthhub/internal/platform/notification"
	"github.com/healthhub/healthhub/internal/platform/sandbox"
)

const (
	appointmentsKey = "appointments"
	// bookingsNS holds the slot index shared by all users.
	bookingsNS  = "_telemedicine"
	bookingsKey = "bookings"
)

var (
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrSlotNotFound        = errors.New("slot not found")
	ErrSlotAlreadyBooked   = errors.New("slot is already booked")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrNotOwner            = errors.New("appointment belongs to another user")
	ErrNotCancellable      = errors.New("appointment can no longer be cancelled")
)

// Notifier sends the booking confirmation.
type Notifier interface {
	Notify(ctx context.Context, userID string, msg notification.Message) ([]notification.Notification, error)
}

type Service struct {
	appointments *kvstore.Collection[Appointment]
	bookings     *kvstore.Collection[booking]
	blobs        blobstore.BlobStore
	notifier     Notifier
	logger       zerolog.Logger
	now          func() time.Time
}

func NewService(store kvstore.Store, blobs blobstore.BlobStore, notifier Notifier, logger zerolog.Logger) *Service {
	return &Service{
		appointments: kvstore.NewCollection[Appointment](store, appointmentsKey, logger),
		bookings:     kvstore.NewCollection[booking](store, bookingsKey, logger),
		blobs:        blobs,
		notifier:     notifier,
		logger:       logger,
		now:          time.Now,
	}
}

// Doctors lists the directory, optionally by specialty, with each doctor's
// next free slot.
func (s *Service) Doctors(ctx context.Context, specialty string) ([]DoctorView, error) {
	taken, err := s.taken(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	out := []DoctorView{}
	for _, d := range sandbox.Doctors(specialty) {
		v := DoctorView{Doctor: d}
		for _, t := range sandbox.Slots(d.ID, now, BookingWindowDays) {
			if !taken[slotKey(d.ID, t)] {
				v.NextSlot = &t
				break
			}
		}
		out = append(out, v)
	}
	return out, nil
}

func slotKey(doctorID string, start time.Time) string {
	return doctorID + "|" + start.UTC().Format(time.RFC3339)
}

func (s *Service) taken(ctx context.Context) (map[string]bool, error) {
	items, err := s.bookings.Load(ctx, bookingsNS)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(items))
	for _, b := range items {
		if b.Active {
			out[slotKey(b.DoctorID, b.Start)] = true
		}
	}
	return out, nil
}

// Slots returns the doctor's free slots over the next days days, capped at
// the booking window.
func (s *Service) Slots(ctx context.Context, doctorID string, days int) ([]AvailableSlot, error) {
	if _, ok := sandbox.DoctorByID(doctorID); !ok {
		return nil, ErrDoctorNotFound
	}
	if days <= 0 || days > BookingWindowDays {
		days = BookingWindowDays
	}
	taken, err := s.taken(ctx)
	if err != nil {
		return nil, err
	}
	out := []AvailableSlot{}
	for _, t := range sandbox.Slots(doctorID, s.now().UTC(), days) {
		if taken[slotKey(doctorID, t)] {
			continue
		}
		out = append(out, AvailableSlot{DoctorID: doctorID, Start: t, End: t.Add(sandbox.SlotLength)})
	}
	return out, nil
}

// Book reserves a slot. The slot index is updated first so that two users
// racing for the same slot cannot both succeed.
func (s *Service) Book(ctx context.Context, userID string, req BookingRequest) (*Appointment, error) {
	doc, ok := sandbox.DoctorByID(req.DoctorID)
	if !ok {
		return nil, ErrDoctorNotFound
	}
	now := s.now().UTC()
	start := req.Start.UTC()
	if !start.After(now) || start.After(now.AddDate(0, 0, BookingWindowDays)) || !sandbox.IsSlot(doc.ID, start) {
		return nil, ErrSlotNotFound
	}

	appt := Appointment{
		ID:         uuid.New().String(),
		UserID:     userID,
		DoctorID:   doc.ID,
		DoctorName: doc.Name,
		Specialty:  doc.Specialty,
		Start:      start,
		End:        start.Add(sandbox.SlotLength),
		Reason:     req.Reason,
		Status:     StatusBooked,
		CreatedAt:  now,
	}
	err := s.bookings.Update(ctx, bookingsNS, func(items []booking) ([]booking, error) {
		key := slotKey(doc.ID, start)
		for _, b := range items {
			if b.Active && slotKey(b.DoctorID, b.Start) == key {
				return nil, ErrSlotAlreadyBooked
			}
		}
		return append(items, booking{AppointmentID: appt.ID, UserID: userID, DoctorID: doc.ID, Start: start, Active: true}), nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.appointments.Append(ctx, userID, appt); err != nil {
		s.release(ctx, appt.ID)
		return nil, err
	}

	name := req.PatientName
	if name == "" {
		name = "there"
	}
	_, err = s.notifier.Notify(ctx, userID, notification.Message{
		TemplateID: notification.TemplateAppointmentConfirmed,
		Data: map[string]string{
			"name":   name,
			"doctor": doc.Name,
			"date":   start.Format("Mon 2 Jan 2006"),
			"time":   start.Format("15:04") + " UTC",
		},
		Metadata: map[string]string{"appointment_id": appt.ID},
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Str("appointment_id", appt.ID).Msg("appointment confirmation not sent")
	}
	return &appt, nil
}

// release frees the slot held by an appointment.
func (s *Service) release(ctx context.Context, appointmentID string) {
	err := s.bookings.Update(ctx, bookingsNS, func(items []booking) ([]booking, error) {
		for i := range items {
			if items[i].AppointmentID == appointmentID {
				items[i].Active = false
			}
		}
		return items, nil
	})
	if err != nil {
		s.logger.Error().Err(err).Str("appointment_id", appointmentID).Msg("failed to release slot")
	}
}

// owner resolves who holds an appointment, so that another user's id gets
// ErrNotOwner rather than ErrAppointmentNotFound.
func (s *Service) owner(ctx context.Context, appointmentID string) (string, error) {
	items, err := s.bookings.Load(ctx, bookingsNS)
	if err != nil {
		return "", err
	}
	for _, b := range items {
		if b.AppointmentID == appointmentID {
			return b.UserID, nil
		}
	}
	return "", ErrAppointmentNotFound
}

func (s *Service) Get(ctx context.Context, userID, id string) (*Appointment, error) {
	owner, err := s.owner(ctx, id)
	if err != nil {
		return nil, err
	}
	if owner != userID {
		return nil, ErrNotOwner
	}
	items, err := s.appointments.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, a := range items {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

// Cancel cancels the caller's own appointment before it starts and frees
// the slot.
func (s *Service) Cancel(ctx context.Context, userID, id, reason string) (*Appointment, error) {
	owner, err := s.owner(ctx, id)
	if err != nil {
		return nil, err
	}
	if owner != userID {
		return nil, ErrNotOwner
	}
	var out Appointment
	err = s.appointments.Update(ctx, userID, func(items []Appointment) ([]Appointment, error) {
		for i := range items {
			if items[i].ID != id {
				continue
			}
			if items[i].Status != StatusBooked || !items[i].Start.After(s.now()) {
				return nil, ErrNotCancellable
			}
			now := s.now().UTC()
			items[i].Status = StatusCancelled
			items[i].CancelledAt = &now
			items[i].CancelReason = reason
			out = items[i]
			return items, nil
		}
		return nil, ErrAppointmentNotFound
	})
	if err != nil {
		return nil, err
	}
	s.release(ctx, id)
	return &out, nil
}

// List returns the user's appointments by start time. status narrows the
// result; upcoming keeps only booked visits that have not started.
func (s *Service) List(ctx context.Context, userID, status string, upcoming bool) ([]Appointment, error) {
	items, err := s.appointments.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]Appointment, 0, len(items))
	for _, a := range items {
		if status != "" && a.Status != status {
			continue
		}
		if upcoming && (a.Status != StatusBooked || !a.Start.After(now)) {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// Next returns the earliest upcoming appointment, or nil.
func (s *Service) Next(ctx context.Context, userID string) (*Appointment, error) {
	items, err := s.List(ctx, userID, "", true)
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return &items[0], nil
}

// Attach stores a file against one of the user's appointments.
func (s *Service) Attach(ctx context.Context, userID, id string, meta blobstore.BlobMetadata, content io.Reader) (*blobstore.BlobMetadata, error) {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	meta.OwnerID = userID
	meta.AppointmentID = id
	meta.Category = blobstore.CategoryAttachment
	out, err := s.blobs.Upload(ctx, meta, content)
	if err != nil {
		return nil, fmt.Errorf("upload attachment: %w", err)
	}
	return out, nil
}

func (s *Service) Attachments(ctx context.Context, userID, id string) ([]*blobstore.BlobMetadata, error) {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	return s.blobs.ListByOwner(ctx, userID, blobstore.CategoryAttachment, id)
}

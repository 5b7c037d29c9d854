// Package medication tracks a user's medications, their daily schedule and
// how well it is being followed.
package medication

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthhub/healthhub/internal/domain/pharmacist"
	"github.com/healthhub/healthhub/internal/platform/kvstore"
	"github.com/healthhub/healthhub/internal/platform/notification"
	"github.com/healthhub/healthhub/internal/platform/sandbox"
)

const (
	medicationsKey = "medications"
	doseLogsKey    = "dose_logs"
	maxDoseLogs    = 2000
	maxAdherence   = 90
	// reminderLead is how far ahead of a dose a reminder may go out.
	reminderLead = 30 * time.Minute
)

var (
	ErrMedicationNotFound = errors.New("medication not found")
	ErrNotScheduled       = errors.New("no dose is scheduled at that time")
)

// Notifier delivers rendered reminders.
type Notifier interface {
	Templates() *notification.TemplateEngine
	Notify(ctx context.Context, userID string, msg notification.Message) ([]notification.Notification, error)
}

type Service struct {
	meds     *kvstore.Collection[Medication]
	doses    *kvstore.Collection[DoseLog]
	notifier Notifier
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(store kvstore.Store, notifier Notifier, logger zerolog.Logger) *Service {
	return &Service{
		meds:     kvstore.NewCollection[Medication](store, medicationsKey, logger),
		doses:    kvstore.NewCollection[DoseLog](store, doseLogsKey, logger),
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Service) today() time.Time {
	n := s.now().UTC()
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *Service) normalize(in MedicationInput) (Medication, error) {
	m := Medication{
		Name:      strings.TrimSpace(in.Name),
		Dosage:    strings.TrimSpace(in.Dosage),
		Frequency: Frequency(strings.ToLower(strings.TrimSpace(string(in.Frequency)))),
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		Notes:     in.Notes,
		Active:    true,
	}
	if m.Name == "" {
		return m, fmt.Errorf("name is required")
	}
	if m.Dosage == "" {
		return m, fmt.Errorf("dosage is required")
	}
	if !m.Frequency.Valid() {
		return m, fmt.Errorf("frequency must be one of once daily, twice daily, thrice daily, weekly, as-needed")
	}
	if in.Active != nil {
		m.Active = *in.Active
	}

	times := in.Times
	if len(times) == 0 {
		times = defaultTimes[m.Frequency]
	}
	if m.Frequency == FrequencyAsNeeded && len(in.Times) > 0 {
		return m, fmt.Errorf("as-needed medications have no scheduled times")
	}
	if len(times) != m.Frequency.DosesPerDay() {
		return m, fmt.Errorf("%s needs %d time(s), got %d", m.Frequency, m.Frequency.DosesPerDay(), len(times))
	}
	seen := map[string]bool{}
	for _, t := range times {
		if _, err := parseClock(t); err != nil {
			return m, err
		}
		if seen[t] {
			return m, fmt.Errorf("duplicate time %s", t)
		}
		seen[t] = true
	}
	m.Times = append([]string{}, times...)
	sort.Strings(m.Times)

	if m.StartDate == "" {
		m.StartDate = s.today().Format(DateLayout)
	}
	if _, err := time.Parse(DateLayout, m.StartDate); err != nil {
		return m, fmt.Errorf("start_date must be YYYY-MM-DD")
	}
	if m.EndDate != "" {
		if _, err := time.Parse(DateLayout, m.EndDate); err != nil {
			return m, fmt.Errorf("end_date must be YYYY-MM-DD")
		}
		if m.EndDate < m.StartDate {
			return m, fmt.Errorf("end_date must not be before start_date")
		}
	}
	return m, nil
}

func (s *Service) Add(ctx context.Context, userID string, in MedicationInput) (*Medication, error) {
	m, err := s.normalize(in)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	m.ID = uuid.New().String()
	m.CreatedAt = now
	m.UpdatedAt = now
	if err := s.meds.Append(ctx, userID, m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Service) Update(ctx context.Context, userID, id string, in MedicationInput) (*Medication, error) {
	m, err := s.normalize(in)
	if err != nil {
		return nil, err
	}
	var out Medication
	err = s.meds.Update(ctx, userID, func(items []Medication) ([]Medication, error) {
		for i := range items {
			if items[i].ID != id {
				continue
			}
			m.ID = id
			m.CreatedAt = items[i].CreatedAt
			m.UpdatedAt = s.now().UTC()
			items[i] = m
			out = m
			return items, nil
		}
		return nil, ErrMedicationNotFound
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns the user's medications by name. With activeOnly set,
// inactive ones are left out.
func (s *Service) List(ctx context.Context, userID string, activeOnly bool) ([]Medication, error) {
	items, err := s.meds.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]Medication, 0, len(items))
	for _, m := range items {
		if activeOnly && !m.Active {
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Service) Get(ctx context.Context, userID, id string) (*Medication, error) {
	items, err := s.meds.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, m := range items {
		if m.ID == id {
			return &m, nil
		}
	}
	return nil, ErrMedicationNotFound
}

// Delete removes the medication and its dose history.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	err := s.meds.Update(ctx, userID, func(items []Medication) ([]Medication, error) {
		for i, m := range items {
			if m.ID == id {
				return append(items[:i], items[i+1:]...), nil
			}
		}
		return nil, ErrMedicationNotFound
	})
	if err != nil {
		return err
	}
	return s.doses.Update(ctx, userID, func(items []DoseLog) ([]DoseLog, error) {
		kept := items[:0]
		for _, d := range items {
			if d.MedicationID != id {
				kept = append(kept, d)
			}
		}
		return kept, nil
	})
}

// LogDose records a dose as taken or skipped. A scheduled dose logged twice
// on the same day keeps only the latest status.
func (s *Service) LogDose(ctx context.Context, userID, medID string, in DoseInput) (*DoseLog, error) {
	if in.Status != DoseTaken && in.Status != DoseSkipped {
		return nil, fmt.Errorf("status must be taken or skipped")
	}
	m, err := s.Get(ctx, userID, medID)
	if err != nil {
		return nil, err
	}
	at := s.now().UTC()
	if in.At != nil {
		at = in.At.UTC()
	}
	if at.After(s.now().Add(time.Minute)) {
		return nil, fmt.Errorf("at cannot be in the future")
	}
	if in.Scheduled != "" {
		found := false
		for _, t := range m.Times {
			if t == in.Scheduled {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrNotScheduled, in.Scheduled)
		}
	}
	entry := DoseLog{
		ID:           uuid.New().String(),
		MedicationID: medID,
		Date:         at.Format(DateLayout),
		Scheduled:    in.Scheduled,
		Status:       in.Status,
		At:           at,
		Note:         in.Note,
	}
	err = s.doses.Update(ctx, userID, func(items []DoseLog) ([]DoseLog, error) {
		if entry.Scheduled != "" {
			for i := range items {
				d := items[i]
				if d.MedicationID == medID && d.Date == entry.Date && d.Scheduled == entry.Scheduled {
					entry.ID = d.ID
					items[i] = entry
					return items, nil
				}
			}
		}
		items = append(items, entry)
		if len(items) > maxDoseLogs {
			items = items[len(items)-maxDoseLogs:]
		}
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Doses returns the dose history, newest first, optionally for one medication.
func (s *Service) Doses(ctx context.Context, userID, medID string) ([]DoseLog, error) {
	items, err := s.doses.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]DoseLog, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		if medID == "" || items[i].MedicationID == medID {
			out = append(out, items[i])
		}
	}
	return out, nil
}

// doseIndex maps medication id, date and scheduled time to a status.
func doseIndex(logs []DoseLog) map[string]DoseStatus {
	idx := make(map[string]DoseStatus, len(logs))
	for _, d := range logs {
		if d.Scheduled != "" {
			idx[d.MedicationID+"|"+d.Date+"|"+d.Scheduled] = d.Status
		}
	}
	return idx
}

func schedule(meds []Medication, idx map[string]DoseStatus, day time.Time) []ScheduledDose {
	out := []ScheduledDose{}
	date := day.Format(DateLayout)
	for _, m := range meds {
		if !m.ScheduledOn(day) {
			continue
		}
		for _, t := range m.Times {
			st, ok := idx[m.ID+"|"+date+"|"+t]
			if !ok {
				st = DosePending
			}
			out = append(out, ScheduledDose{MedicationID: m.ID, Name: m.Name, Dosage: m.Dosage, Time: t, Status: st})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// DueToday returns today's scheduled doses in time order.
func (s *Service) DueToday(ctx context.Context, userID string) ([]ScheduledDose, error) {
	meds, err := s.meds.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	logs, err := s.doses.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return schedule(meds, doseIndex(logs), s.today()), nil
}

// Adherence reports the share of scheduled doses taken over the last days
// days, today included. Doses scheduled later today are not counted yet.
func (s *Service) Adherence(ctx context.Context, userID string, days int) (*Adherence, error) {
	if days <= 0 {
		days = 7
	}
	if days > maxAdherence {
		days = maxAdherence
	}
	meds, err := s.meds.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	logs, err := s.doses.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	idx := doseIndex(logs)
	now := s.now().UTC()
	today := s.today()
	nowMin := now.Hour()*60 + now.Minute()

	res := &Adherence{Days: days, ByMedication: []MedicationAdherence{}}
	perMed := map[string]*MedicationAdherence{}
	for i := days - 1; i >= 0; i-- {
		day := today.AddDate(0, 0, -i)
		for _, d := range schedule(meds, idx, day) {
			if i == 0 {
				if at, _ := parseClock(d.Time); at > nowMin {
					continue
				}
			}
			ma, ok := perMed[d.MedicationID]
			if !ok {
				ma = &MedicationAdherence{MedicationID: d.MedicationID, Name: d.Name}
				perMed[d.MedicationID] = ma
			}
			res.Expected++
			ma.Expected++
			switch d.Status {
			case DoseTaken:
				res.Taken++
				ma.Taken++
			case DoseSkipped:
				res.Skipped++
			}
		}
	}
	res.Percent = percent(res.Taken, res.Expected)
	for _, ma := range perMed {
		ma.Percent = percent(ma.Taken, ma.Expected)
		res.ByMedication = append(res.ByMedication, *ma)
	}
	sort.Slice(res.ByMedication, func(i, j int) bool { return res.ByMedication[i].Name < res.ByMedication[j].Name })
	return res, nil
}

func percent(n, of int) float64 {
	if of == 0 {
		return 100
	}
	return math.Round(float64(n)/float64(of)*1000) / 10
}

// Interactions checks the user's active medications against each other.
func (s *Service) Interactions(ctx context.Context, userID string) (pharmacist.InteractionReport, error) {
	meds, err := s.List(ctx, userID, true)
	if err != nil {
		return pharmacist.InteractionReport{}, err
	}
	names := make([]string, 0, len(meds))
	for _, m := range meds {
		names = append(names, m.Name)
	}
	if len(names) < 2 {
		return pharmacist.InteractionReport{Drugs: names, Unknown: []string{}, Interactions: []pharmacist.Interaction{}}, nil
	}
	return pharmacist.CheckInteractions(names)
}

func reminderData(name string, d ScheduledDose) map[string]string {
	if name == "" {
		name = "there"
	}
	return map[string]string{"name": name, "time": d.Time, "dosage": d.Dosage, "medication": d.Name}
}

// Reminders renders a reminder for each dose still pending today.
func (s *Service) Reminders(ctx context.Context, userID, name string) ([]Reminder, error) {
	due, err := s.DueToday(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := []Reminder{}
	for _, d := range due {
		if d.Status != DosePending {
			continue
		}
		subject, body, err := s.notifier.Templates().Render(notification.TemplateMedicationReminder, reminderData(name, d))
		if err != nil {
			return nil, err
		}
		out = append(out, Reminder{MedicationID: d.MedicationID, Time: d.Time, Subject: subject, Body: body})
	}
	return out, nil
}

// SendDueReminders notifies the user of pending doses due now or within
// the next half hour and returns how many reminders went out.
func (s *Service) SendDueReminders(ctx context.Context, userID, name string) (int, error) {
	due, err := s.DueToday(ctx, userID)
	if err != nil {
		return 0, err
	}
	now := s.now().UTC()
	limit := now.Hour()*60 + now.Minute() + int(reminderLead.Minutes())
	sent := 0
	for _, d := range due {
		if d.Status != DosePending {
			continue
		}
		if at, _ := parseClock(d.Time); at > limit {
			continue
		}
		_, err := s.notifier.Notify(ctx, userID, notification.Message{
			TemplateID: notification.TemplateMedicationReminder,
			Data:       reminderData(name, d),
			Metadata:   map[string]string{"medication_id": d.MedicationID, "time": d.Time},
		})
		if err != nil {
			return sent, err
		}
		sent++
	}
	s.logger.Debug().Str("user_id", userID).Int("sent", sent).Msg("medication reminders sent")
	return sent, nil
}

// Import adds generated medications starting today.
func (s *Service) Import(ctx context.Context, userID string, meds []sandbox.Medication) (int, error) {
	n := 0
	for _, m := range meds {
		if _, err := s.Add(ctx, userID, MedicationInput{
			Name:      m.Name,
			Dosage:    m.Dosage,
			Frequency: Frequency(m.Frequency),
			Times:     m.Times,
			Notes:     m.Notes,
		}); err != nil {
			return n, fmt.Errorf("import %s: %w", m.Name, err)
		}
		n++
	}
	return n, nil
}

package medication

import (
	"fmt"
	"time"
)

type Frequency string

const (
	FrequencyOnceDaily   Frequency = "once daily"
	FrequencyTwiceDaily  Frequency = "twice daily"
	FrequencyThriceDaily Frequency = "thrice daily"
	FrequencyWeekly      Frequency = "weekly"
	FrequencyAsNeeded    Frequency = "as-needed"
)

var defaultTimes = map[Frequency][]string{
	FrequencyOnceDaily:   {"08:00"},
	FrequencyTwiceDaily:  {"08:00", "20:00"},
	FrequencyThriceDaily: {"08:00", "14:00", "20:00"},
	FrequencyWeekly:      {"08:00"},
	FrequencyAsNeeded:    {},
}

// DosesPerDay is how many times a day the frequency schedules a dose.
// Weekly counts one on its scheduled day; as-needed is never scheduled.
func (f Frequency) DosesPerDay() int {
	return len(defaultTimes[f])
}

func (f Frequency) Valid() bool {
	_, ok := defaultTimes[f]
	return ok
}

const DateLayout = "2006-01-02"

type Medication struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Dosage    string    `json:"dosage"`
	Frequency Frequency `json:"frequency"`
	Times     []string  `json:"times"`
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ScheduledOn reports whether the medication has doses due on day
// (a UTC midnight).
func (m Medication) ScheduledOn(day time.Time) bool {
	if !m.Active || m.Frequency == FrequencyAsNeeded {
		return false
	}
	d := day.Format(DateLayout)
	if d < m.StartDate || (m.EndDate != "" && d > m.EndDate) {
		return false
	}
	if m.Frequency == FrequencyWeekly {
		start, err := time.Parse(DateLayout, m.StartDate)
		if err != nil {
			return false
		}
		return start.Weekday() == day.Weekday()
	}
	return true
}

type MedicationInput struct {
	Name      string    `json:"name" validate:"required,max=100"`
	Dosage    string    `json:"dosage" validate:"required,max=50"`
	Frequency Frequency `json:"frequency" validate:"required"`
	Times     []string  `json:"times" validate:"max=3"`
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"`
	Notes     string    `json:"notes" validate:"max=500"`
	Active    *bool     `json:"active"`
}

type DoseStatus string

const (
	DoseTaken   DoseStatus = "taken"
	DoseSkipped DoseStatus = "skipped"
	DosePending DoseStatus = "pending"
)

type DoseLog struct {
	ID           string     `json:"id"`
	MedicationID string     `json:"medication_id"`
	Date         string     `json:"date"`
	Scheduled    string     `json:"scheduled,omitempty"`
	Status       DoseStatus `json:"status"`
	At           time.Time  `json:"at"`
	Note         string     `json:"note,omitempty"`
}

type DoseInput struct {
	Status    DoseStatus `json:"status" validate:"required,oneof=taken skipped"`
	Scheduled string     `json:"scheduled"`
	At        *time.Time `json:"at"`
	Note      string     `json:"note" validate:"max=200"`
}

// ScheduledDose is one dose due on a given day and what became of it.
type ScheduledDose struct {
	MedicationID string     `json:"medication_id"`
	Name         string     `json:"name"`
	Dosage       string     `json:"dosage"`
	Time         string     `json:"time"`
	Status       DoseStatus `json:"status"`
}

type MedicationAdherence struct {
	MedicationID string  `json:"medication_id"`
	Name         string  `json:"name"`
	Expected     int     `json:"expected"`
	Taken        int     `json:"taken"`
	Percent      float64 `json:"percent"`
}

type Adherence struct {
	Days     int `json:"days"`
	Expected int `json:"expected"`
	Taken    int `json:"taken"`
	Skipped  int `json:"skipped"`
	// Percent is 100 when nothing was due.
	Percent      float64               `json:"percent"`
	ByMedication []MedicationAdherence `json:"by_medication"`
}

type Reminder struct {
	MedicationID string `json:"medication_id"`
	Time         string `json:"time"`
	Subject      string `json:"subject"`
	Body         string `json:"body"`
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

package sandbox

import (
	"hash/fnv"
	"sort"
	"strings"
	"time"
)

type Doctor struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Specialty       string   `json:"specialty"`
	Rating          float64  `json:"rating"`
	YearsExperience int      `json:"years_experience"`
	Languages       []string `json:"languages"`
	Bio             string   `json:"bio"`
}

var doctors = []Doctor{
	{ID: "doc-001", Name: "Dr. Maya Patel", Specialty: "general practice", Rating: 4.8, YearsExperience: 12, Languages: []string{"English", "Hindi"}, Bio: "Family medicine with a focus on preventive care."},
	{ID: "doc-002", Name: "Dr. James Okafor", Specialty: "cardiology", Rating: 4.9, YearsExperience: 18, Languages: []string{"English"}, Bio: "Heart rhythm and blood pressure management."},
	{ID: "doc-003", Name: "Dr. Elena Garcia", Specialty: "dermatology", Rating: 4.7, YearsExperience: 9, Languages: []string{"English", "Spanish"}, Bio: "Skin conditions, acne and eczema."},
	{ID: "doc-004", Name: "Dr. Wei Chen", Specialty: "endocrinology", Rating: 4.6, YearsExperience: 15, Languages: []string{"English", "Mandarin"}, Bio: "Diabetes and thyroid care."},
	{ID: "doc-005", Name: "Dr. Sarah Lindqvist", Specialty: "psychiatry", Rating: 4.9, YearsExperience: 11, Languages: []string{"English", "Swedish"}, Bio: "Anxiety, depression and sleep problems."},
	{ID: "doc-006", Name: "Dr. Omar Haddad", Specialty: "pulmonology", Rating: 4.5, YearsExperience: 20, Languages: []string{"English", "Arabic"}, Bio: "Asthma and breathing disorders."},
	{ID: "doc-007", Name: "Dr. Grace Kim", Specialty: "nutrition", Rating: 4.8, YearsExperience: 7, Languages: []string{"English", "Korean"}, Bio: "Weight management and dietary planning."},
	{ID: "doc-008", Name: "Dr. Luis Romero", Specialty: "general practice", Rating: 4.4, YearsExperience: 6, Languages: []string{"English", "Spanish"}, Bio: "Same-day consultations for common illnesses."},
}

// Doctors returns the directory, optionally narrowed to one specialty
// (case-insensitive).
func Doctors(specialty string) []Doctor {
	out := []Doctor{}
	for _, d := range doctors {
		if specialty != "" && !strings.EqualFold(d.Specialty, specialty) {
			continue
		}
		d.Languages = append([]string(nil), d.Languages...)
		out = append(out, d)
	}
	return out
}

// DoctorByID looks a doctor up in the directory.
func DoctorByID(id string) (Doctor, bool) {
	for _, d := range doctors {
		if d.ID == id {
			return d, true
		}
	}
	return Doctor{}, false
}

// Specialties lists the distinct specialties, sorted.
func Specialties() []string {
	seen := map[string]bool{}
	var out []string
	for _, d := range doctors {
		if !seen[d.Specialty] {
			seen[d.Specialty] = true
			out = append(out, d.Specialty)
		}
	}
	sort.Strings(out)
	return out
}

// SlotLength is the length of one appointment slot.
const SlotLength = 30 * time.Minute

// Slots returns the doctor's bookable slot start times from the day of
// from for the given number of days: weekdays 09:00-17:00 in 30 minute
// steps, with roughly a quarter of the slots taken out per doctor. Only
// slots starting strictly after from are returned.
func Slots(doctorID string, from time.Time, numDays int) []time.Time {
	out := []time.Time{}
	for _, d := range days(numDays, day(from).AddDate(0, 0, numDays-1)) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		for t := d.Add(9 * time.Hour); t.Before(d.Add(17 * time.Hour)); t = t.Add(SlotLength) {
			if !t.After(from) || unavailable(doctorID, t) {
				continue
			}
			out = append(out, t)
		}
	}
	return out
}

// IsSlot reports whether t is one of the doctor's generated slots.
func IsSlot(doctorID string, t time.Time) bool {
	t = t.UTC()
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	if t.Second() != 0 || t.Nanosecond() != 0 || t.Minute()%30 != 0 {
		return false
	}
	if t.Hour() < 9 || t.Hour() >= 17 {
		return false
	}
	return !unavailable(doctorID, t)
}

func unavailable(doctorID string, t time.Time) bool {
	h := fnv.New32a()
	_, _ = h.Write([]byte(doctorID + t.UTC().Format(time.RFC3339)))
	return h.Sum32()%4 == 0
}

package sandbox

import (
	"fmt"
	"strings"
)

// Profile is the mock personal data of a demo account.
type Profile struct {
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	DateOfBirth string   `json:"date_of_birth"`
	Sex         string   `json:"sex"`
	HeightCm    float64  `json:"height_cm"`
	WeightKg    float64  `json:"weight_kg"`
	Conditions  []string `json:"conditions"`
	Allergies   []string `json:"allergies"`
	Goals       string   `json:"goals"`
}

var (
	firstNames = []string{"Alex", "Sam", "Jordan", "Taylor", "Riley", "Casey", "Morgan", "Jamie"}
	lastNames  = []string{"Rivera", "Nguyen", "Smith", "Okoro", "Kowalski", "Hansen", "Silva", "Tanaka"}
	conditions = []string{"hypertension", "asthma", "diabetes", "anemia"}
	allergies  = []string{"penicillin", "peanuts", "pollen", "latex", "shellfish"}
	goals      = []string{"lose 5 kg", "sleep 8 hours a night", "walk 10,000 steps daily", "lower blood pressure", "run a 10k"}
)

// Profile generates a demo profile. The email is derived from the name and
// always uses the example.com domain.
func (g *Generator) Profile() Profile {
	first, last := g.pick(firstNames), g.pick(lastNames)
	sex := "female"
	if g.rng.Intn(2) == 0 {
		sex = "male"
	}
	p := Profile{
		Name:        first + " " + last,
		Email:       strings.ToLower(first+"."+last) + "@example.com",
		DateOfBirth: dob(g),
		Sex:         sex,
		HeightCm:    round(g.around(172, 8), 0),
		WeightKg:    round(g.around(74, 9), 1),
		Conditions:  []string{},
		Allergies:   []string{},
		Goals:       g.pick(goals),
	}
	if g.rng.Intn(2) == 0 {
		p.Conditions = append(p.Conditions, g.pick(conditions))
	}
	if g.rng.Intn(3) == 0 {
		p.Allergies = append(p.Allergies, g.pick(allergies))
	}
	return p
}

func dob(g *Generator) string {
	y := 1955 + g.rng.Intn(45)
	m := 1 + g.rng.Intn(12)
	d := 1 + g.rng.Intn(28)
	return fmt.Sprintf("%04d-%02d-%02d", y, m, d)
}

// Package pharmacist answers medication questions with keyword rules over a
// small mocked formulary and interaction table. It never calls out to a
// real pharmacy service.
package pharmacist

import (
	"fmt"
	"regexp"
	"strings"
)

type Topic string

const (
	TopicEmergency   Topic = "emergency"
	TopicInteraction Topic = "interaction"
	TopicSideEffects Topic = "side_effects"
	TopicDosage      Topic = "dosage"
	TopicMissedDose  Topic = "missed_dose"
	TopicStorage     Topic = "storage"
	TopicAlcohol     Topic = "alcohol"
	TopicPregnancy   Topic = "pregnancy"
	TopicRefill      Topic = "refill"
	TopicGeneral     Topic = "general"
)

const Disclaimer = "This is general information, not medical advice. Always follow your prescriber's instructions."

type Reply struct {
	Topic        Topic              `json:"topic"`
	Text         string             `json:"text"`
	Medications  []string           `json:"medications"`
	Interactions *InteractionReport `json:"interactions,omitempty"`
	Disclaimer   string             `json:"disclaimer"`
}

type rule struct {
	topic    Topic
	keywords []string
	pattern  *regexp.Regexp
	answer   func(meds []string) (string, *InteractionReport)
}

func (r rule) matches(q string) bool {
	for _, k := range r.keywords {
		if strings.Contains(q, k) {
			return true
		}
	}
	return r.pattern != nil && r.pattern.MatchString(q)
}

// Agent holds the ordered rule set. The zero value is not usable; call
// NewAgent.
type Agent struct {
	rules []rule
}

func NewAgent() *Agent {
	return &Agent{rules: []rule{
		{
			topic:    TopicEmergency,
			keywords: []string{"overdose", "took too many", "took too much", "poison", "can't breathe", "cannot breathe", "swelling of", "anaphyla"},
			pattern:  regexp.MustCompile(`\b(double|triple|extra) (dose|pills?)\b.*\b(child|kid|baby)\b`),
			answer:   emergencyAnswer,
		},
		{
			topic:    TopicInteraction,
			keywords: []string{"interact", "together with", "combine", "mix "},
			pattern:  regexp.MustCompile(`\b(take|taking|use|using)\b.+\b(with|and)\b.+`),
			answer:   interactionAnswer,
		},
		{
			topic:    TopicSideEffects,
			keywords: []string{"side effect", "side-effect", "reaction", "makes me feel", "adverse"},
			answer:   perDrug("side effects", func(d Drug) string { return "commonly " + strings.Join(d.SideEffects, ", ") }),
		},
		{
			topic:    TopicMissedDose,
			keywords: []string{"missed", "forgot", "skip"},
			answer: func([]string) (string, *InteractionReport) {
				return "If you miss a dose, take it as soon as you remember unless your next dose is soon. " +
					"Never take two doses at once to catch up.", nil
			},
		},
		{
			topic:    TopicDosage,
			keywords: []string{"dose", "dosage", "how much", "how many", "mg"},
			pattern:  regexp.MustCompile(`\bhow often\b`),
			answer:   perDrug("typical dosing", func(d Drug) string { return d.TypicalDose }),
		},
		{
			topic:    TopicStorage,
			keywords: []string{"store", "storage", "fridge", "refrigerat", "expire"},
			answer:   perDrug("storage", func(d Drug) string { return d.Storage }),
		},
		{
			topic:    TopicAlcohol,
			keywords: []string{"alcohol", "drink", "beer", "wine"},
			answer:   alcoholAnswer,
		},
		{
			topic:    TopicPregnancy,
			keywords: []string{"pregnan", "breastfeed", "nursing"},
			answer:   perDrug("pregnancy", func(d Drug) string { return d.Pregnancy }),
		},
		{
			topic:    TopicRefill,
			keywords: []string{"refill", "renew", "prescription", "run out", "ran out"},
			answer: func([]string) (string, *InteractionReport) {
				return "Request a refill through your pharmacy a few days before you run out. " +
					"Prescription-only medicines need an active prescription from your doctor.", nil
			},
		},
	}}
}

// Respond picks the first rule whose keywords or pattern match question.
func (a *Agent) Respond(question string) (Reply, error) {
	q := strings.ToLower(strings.TrimSpace(question))
	if q == "" {
		return Reply{}, fmt.Errorf("question is required")
	}
	meds := ExtractMedications(q)
	reply := Reply{Topic: TopicGeneral, Medications: meds, Disclaimer: Disclaimer}
	for _, r := range a.rules {
		if !r.matches(q) {
			continue
		}
		// Interaction rules need two drugs; otherwise keep looking.
		if r.topic == TopicInteraction && len(meds) < 2 {
			continue
		}
		reply.Topic = r.topic
		reply.Text, reply.Interactions = r.answer(meds)
		return reply, nil
	}
	reply.Text = generalAnswer(meds)
	return reply, nil
}

func emergencyAnswer([]string) (string, *InteractionReport) {
	return "This may be a medical emergency. Call your local emergency number or poison control now. " +
		"Keep the medicine packaging with you.", nil
}

func interactionAnswer(meds []string) (string, *InteractionReport) {
	report, err := CheckInteractions(meds)
	if err != nil {
		return err.Error(), nil
	}
	if len(report.Interactions) == 0 {
		return fmt.Sprintf("No interaction between %s is listed in our reference table. "+
			"Check with your pharmacist before combining.", strings.Join(report.Drugs, " and ")), &report
	}
	lines := make([]string, 0, len(report.Interactions))
	for _, it := range report.Interactions {
		lines = append(lines, fmt.Sprintf("%s + %s (%s): %s", it.DrugA, it.DrugB, it.Severity, it.Advice))
	}
	return strings.Join(lines, " "), &report
}

func alcoholAnswer(meds []string) (string, *InteractionReport) {
	if len(meds) == 0 {
		return "Many medicines interact with alcohol. Tell us which medication you mean.", nil
	}
	parts := make([]string, 0, len(meds))
	for _, m := range meds {
		d, _ := Lookup(m)
		if d.AvoidAlcohol {
			parts = append(parts, fmt.Sprintf("avoid alcohol with %s", d.Name))
		} else {
			parts = append(parts, fmt.Sprintf("moderate alcohol is not known to interact with %s", d.Name))
		}
	}
	return capitalize(strings.Join(parts, "; ")) + ".", nil
}

// perDrug builds an answer listing one formulary field for each medication.
func perDrug(label string, field func(Drug) string) func([]string) (string, *InteractionReport) {
	return func(meds []string) (string, *InteractionReport) {
		if len(meds) == 0 {
			return fmt.Sprintf("Tell us which medication you mean and we can share its %s.", label), nil
		}
		parts := make([]string, 0, len(meds))
		for _, m := range meds {
			d, _ := Lookup(m)
			parts = append(parts, fmt.Sprintf("%s %s: %s", d.Name, label, field(d)))
		}
		return strings.Join(parts, ". ") + ".", nil
	}
}

func generalAnswer(meds []string) string {
	if len(meds) == 0 {
		return "I can help with dosing, side effects, interactions, storage, missed doses and refills. " +
			"Ask about a specific medication."
	}
	d, _ := Lookup(meds[0])
	return fmt.Sprintf("%s is a %s commonly used for %s.", capitalize(d.Name), d.Class, strings.Join(d.CommonUses, ", "))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

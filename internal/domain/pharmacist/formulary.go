package pharmacist

import (
	"sort"
	"strings"
)

// Drug is a formulary entry. Everything here is mocked reference data.
type Drug struct {
	Name         string   `json:"name"`
	Class        string   `json:"class"`
	CommonUses   []string `json:"common_uses"`
	TypicalDose  string   `json:"typical_dose"`
	SideEffects  []string `json:"side_effects"`
	Storage      string   `json:"storage"`
	AvoidAlcohol bool     `json:"avoid_alcohol"`
	Pregnancy    string   `json:"pregnancy"`
	Aliases      []string `json:"aliases,omitempty"`
}

var formulary = []Drug{
	{Name: "ibuprofen", Class: "NSAID", CommonUses: []string{"pain", "fever", "inflammation"},
		TypicalDose: "200-400 mg every 4-6 hours with food, max 1200 mg/day without medical advice",
		SideEffects: []string{"stomach upset", "heartburn", "dizziness"}, Storage: "room temperature, away from moisture",
		AvoidAlcohol: true, Pregnancy: "avoid in the third trimester", Aliases: []string{"advil", "motrin"}},
	{Name: "acetaminophen", Class: "analgesic", CommonUses: []string{"pain", "fever"},
		TypicalDose: "500-1000 mg every 4-6 hours, max 3000 mg/day",
		SideEffects: []string{"rare at normal doses", "liver damage in overdose"}, Storage: "room temperature",
		AvoidAlcohol: true, Pregnancy: "generally considered safe at normal doses", Aliases: []string{"paracetamol", "tylenol"}},
	{Name: "aspirin", Class: "NSAID / antiplatelet", CommonUses: []string{"pain", "heart attack prevention"},
		TypicalDose: "75-100 mg daily for heart protection, 300-600 mg for pain",
		SideEffects: []string{"stomach bleeding", "bruising"}, Storage: "room temperature, keep dry",
		AvoidAlcohol: true, Pregnancy: "avoid unless prescribed"},
	{Name: "warfarin", Class: "anticoagulant", CommonUses: []string{"blood clot prevention"},
		TypicalDose: "individualised by INR monitoring",
		SideEffects: []string{"bleeding", "bruising"}, Storage: "room temperature, protect from light",
		AvoidAlcohol: true, Pregnancy: "contraindicated", Aliases: []string{"coumadin"}},
	{Name: "metformin", Class: "biguanide", CommonUses: []string{"type 2 diabetes"},
		TypicalDose: "500 mg once or twice daily with meals, titrated up",
		SideEffects: []string{"nausea", "diarrhea", "metallic taste"}, Storage: "room temperature",
		AvoidAlcohol: true, Pregnancy: "sometimes used; discuss with your doctor"},
	{Name: "lisinopril", Class: "ACE inhibitor", CommonUses: []string{"high blood pressure", "heart failure"},
		TypicalDose: "10 mg once daily, adjusted to blood pressure",
		SideEffects: []string{"dry cough", "dizziness", "high potassium"}, Storage: "room temperature",
		Pregnancy: "contraindicated"},
	{Name: "atorvastatin", Class: "statin", CommonUses: []string{"high cholesterol"},
		TypicalDose: "10-20 mg once daily",
		SideEffects: []string{"muscle aches", "headache"}, Storage: "room temperature",
		AvoidAlcohol: true, Pregnancy: "contraindicated", Aliases: []string{"lipitor"}},
	{Name: "sertraline", Class: "SSRI", CommonUses: []string{"depression", "anxiety"},
		TypicalDose: "50 mg once daily",
		SideEffects: []string{"nausea", "insomnia", "headache"}, Storage: "room temperature",
		AvoidAlcohol: true, Pregnancy: "discuss risks and benefits with your doctor", Aliases: []string{"zoloft"}},
	{Name: "amoxicillin", Class: "penicillin antibiotic", CommonUses: []string{"bacterial infections"},
		TypicalDose: "500 mg every 8 hours for the prescribed course",
		SideEffects: []string{"diarrhea", "rash"}, Storage: "capsules at room temperature; liquid in the fridge",
		Pregnancy: "generally considered safe"},
	{Name: "omeprazole", Class: "proton pump inhibitor", CommonUses: []string{"acid reflux", "ulcers"},
		TypicalDose: "20 mg once daily before breakfast",
		SideEffects: []string{"headache", "abdominal pain"}, Storage: "room temperature",
		Pregnancy: "generally considered safe", Aliases: []string{"prilosec"}},
	{Name: "levothyroxine", Class: "thyroid hormone", CommonUses: []string{"hypothyroidism"},
		TypicalDose: "individualised, taken on an empty stomach",
		SideEffects: []string{"palpitations if dose is too high"}, Storage: "room temperature, protect from light",
		Pregnancy: "continue; dose often needs adjusting", Aliases: []string{"synthroid"}},
	{Name: "simvastatin", Class: "statin", CommonUses: []string{"high cholesterol"},
		TypicalDose: "20-40 mg once daily in the evening",
		SideEffects: []string{"muscle aches"}, Storage: "room temperature",
		AvoidAlcohol: true, Pregnancy: "contraindicated"},
	{Name: "clarithromycin", Class: "macrolide antibiotic", CommonUses: []string{"bacterial infections"},
		TypicalDose: "250-500 mg twice daily",
		SideEffects: []string{"taste changes", "nausea"}, Storage: "room temperature",
		Pregnancy: "avoid unless prescribed"},
	{Name: "tramadol", Class: "opioid analgesic", CommonUses: []string{"moderate to severe pain"},
		TypicalDose: "50-100 mg every 4-6 hours as prescribed",
		SideEffects: []string{"drowsiness", "constipation", "nausea"}, Storage: "room temperature, locked away",
		AvoidAlcohol: true, Pregnancy: "avoid unless prescribed"},
	{Name: "spironolactone", Class: "potassium-sparing diuretic", CommonUses: []string{"heart failure", "high blood pressure"},
		TypicalDose: "25 mg once daily",
		SideEffects: []string{"high potassium", "breast tenderness"}, Storage: "room temperature",
		Pregnancy: "avoid unless prescribed"},
}

var drugIndex = func() map[string]*Drug {
	idx := make(map[string]*Drug)
	for i := range formulary {
		d := &formulary[i]
		idx[d.Name] = d
		for _, a := range d.Aliases {
			idx[a] = d
		}
	}
	return idx
}()

// lookupTerms is every name and alias, longest first so "simvastatin"
// wins over a shorter overlapping term.
var lookupTerms = func() []string {
	terms := make([]string, 0, len(drugIndex))
	for k := range drugIndex {
		terms = append(terms, k)
	}
	sort.Slice(terms, func(i, j int) bool {
		if len(terms[i]) != len(terms[j]) {
			return len(terms[i]) > len(terms[j])
		}
		return terms[i] < terms[j]
	})
	return terms
}()

// Lookup returns the formulary entry for a name or brand alias.
func Lookup(name string) (Drug, bool) {
	d, ok := drugIndex[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Drug{}, false
	}
	return *d, true
}

// Formulary returns every entry sorted by name.
func Formulary() []Drug {
	out := append([]Drug(nil), formulary...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ExtractMedications returns the canonical names of formulary drugs
// mentioned in text, in order of first mention.
func ExtractMedications(text string) []string {
	lower := strings.ToLower(text)
	type hit struct {
		name string
		pos  int
	}
	var hits []hit
	seen := map[string]bool{}
	taken := make([]bool, len(lower))
	for _, term := range lookupTerms {
		from := 0
		for {
			i := strings.Index(lower[from:], term)
			if i < 0 {
				break
			}
			i += from
			from = i + len(term)
			if taken[i] || !wordBoundary(lower, i, len(term)) {
				continue
			}
			for k := i; k < i+len(term); k++ {
				taken[k] = true
			}
			name := drugIndex[term].Name
			if !seen[name] {
				seen[name] = true
				hits = append(hits, hit{name, i})
			}
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.name)
	}
	return out
}

func wordBoundary(s string, i, n int) bool {
	isLetter := func(b byte) bool { return b >= 'a' && b <= 'z' }
	if i > 0 && isLetter(s[i-1]) {
		return false
	}
	if end := i + n; end < len(s) && isLetter(s[end]) {
		return false
	}
	return true
}

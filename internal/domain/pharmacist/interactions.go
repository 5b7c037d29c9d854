package pharmacist

import (
	"fmt"
	"sort"
	"strings"
)

type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeverityMajor    Severity = "major"
)

func (s Severity) rank() int {
	switch s {
	case SeverityMajor:
		return 3
	case SeverityModerate:
		return 2
	case SeverityMinor:
		return 1
	}
	return 0
}

// Interaction describes a known problem between two drugs.
type Interaction struct {
	DrugA    string   `json:"drug_a"`
	DrugB    string   `json:"drug_b"`
	Severity Severity `json:"severity"`
	Advice   string   `json:"advice"`
}

type pair struct{ a, b string }

func key(a, b string) pair {
	if a > b {
		a, b = b, a
	}
	return pair{a, b}
}

// interactionTable stands in for a pharmacy interaction service.
var interactionTable = map[pair]Interaction{}

func init() {
	for _, it := range []Interaction{
		{"warfarin", "aspirin", SeverityMajor, "Greatly increased bleeding risk. Do not combine unless your prescriber directed it."},
		{"warfarin", "ibuprofen", SeverityMajor, "Increased bleeding risk. Prefer acetaminophen for pain and ask your pharmacist."},
		{"warfarin", "acetaminophen", SeverityMinor, "Regular high doses may raise INR. Occasional use is usually fine."},
		{"warfarin", "clarithromycin", SeverityMajor, "Clarithromycin can sharply increase warfarin levels. INR monitoring is needed."},
		{"simvastatin", "clarithromycin", SeverityMajor, "Raises simvastatin levels and the risk of muscle damage. Usually paused during the course."},
		{"atorvastatin", "clarithromycin", SeverityModerate, "May raise statin levels. Report unexplained muscle pain."},
		{"lisinopril", "spironolactone", SeverityMajor, "Both raise potassium. Blood tests are needed if used together."},
		{"lisinopril", "ibuprofen", SeverityModerate, "NSAIDs can reduce the blood pressure effect and strain the kidneys."},
		{"aspirin", "ibuprofen", SeverityModerate, "Ibuprofen can blunt aspirin's heart protection. Take aspirin first and separate doses."},
		{"sertraline", "tramadol", SeverityMajor, "Risk of serotonin syndrome and seizures. Seek advice before combining."},
		{"sertraline", "aspirin", SeverityModerate, "SSRIs with aspirin raise the risk of stomach bleeding."},
		{"sertraline", "ibuprofen", SeverityModerate, "SSRIs with NSAIDs raise the risk of stomach bleeding."},
		{"levothyroxine", "omeprazole", SeverityMinor, "Reduced stomach acid may lower absorption. Thyroid levels may need checking."},
		{"metformin", "lisinopril", SeverityMinor, "May slightly increase the glucose-lowering effect. Monitor blood sugar."},
	} {
		interactionTable[key(it.DrugA, it.DrugB)] = it
	}
}

// InteractionReport is the result of checking a set of drugs.
type InteractionReport struct {
	Drugs        []string      `json:"drugs"`
	Unknown      []string      `json:"unknown"`
	Interactions []Interaction `json:"interactions"`
	HighestRisk  Severity      `json:"highest_risk,omitempty"`
}

// CheckInteractions checks every pair among drugs. Names are resolved
// through the formulary; unrecognised names are reported, not rejected.
// Results are ordered most severe first.
func CheckInteractions(drugs []string) (InteractionReport, error) {
	report := InteractionReport{Drugs: []string{}, Unknown: []string{}, Interactions: []Interaction{}}
	seen := map[string]bool{}
	for _, raw := range drugs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		d, ok := Lookup(raw)
		if !ok {
			report.Unknown = append(report.Unknown, raw)
			continue
		}
		if !seen[d.Name] {
			seen[d.Name] = true
			report.Drugs = append(report.Drugs, d.Name)
		}
	}
	if len(report.Drugs)+len(report.Unknown) < 2 {
		return report, fmt.Errorf("at least two medications are required")
	}
	for i := 0; i < len(report.Drugs); i++ {
		for j := i + 1; j < len(report.Drugs); j++ {
			if it, ok := interactionTable[key(report.Drugs[i], report.Drugs[j])]; ok {
				report.Interactions = append(report.Interactions, it)
			}
		}
	}
	sort.SliceStable(report.Interactions, func(i, j int) bool {
		return report.Interactions[i].Severity.rank() > report.Interactions[j].Severity.rank()
	})
	if len(report.Interactions) > 0 {
		report.HighestRisk = report.Interactions[0].Severity
	}
	return report, nil
}

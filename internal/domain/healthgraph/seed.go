package healthgraph

type seedEdge struct {
	from, to string
	weight   float64
}

var (
	seedSymptoms   = []string{"chest pain", "shortness of breath", "headache", "fatigue", "dizziness"}
	seedConditions = []string{"heart disease", "hypertension", "asthma", "diabetes", "anemia"}
	seedRisks      = []string{"cardiac arrest", "stroke", "respiratory failure", "kidney failure"}

	seedEdges = []seedEdge{
		{"chest pain", "heart disease", 0.9},
		{"chest pain", "cardiac arrest", 0.7},
		{"shortness of breath", "asthma", 0.8},
		{"shortness of breath", "heart disease", 0.6},
		{"headache", "hypertension", 0.7},
		{"fatigue", "diabetes", 0.5},
		{"fatigue", "anemia", 0.8},
		{"dizziness", "hypertension", 0.6},
		{"dizziness", "anemia", 0.5},
		{"heart disease", "stroke", 0.8},
		{"heart disease", "cardiac arrest", 0.85},
		{"hypertension", "stroke", 0.9},
		{"hypertension", "kidney failure", 0.5},
		{"asthma", "respiratory failure", 0.7},
		{"diabetes", "kidney failure", 0.6},
	}
)

// NewSeeded builds the default symptom/condition/risk graph.
func NewSeeded() *Graph {
	b := NewBuilder()
	for _, s := range seedSymptoms {
		b.AddNode(TypeSymptom, s)
	}
	for _, c := range seedConditions {
		b.AddNode(TypeCondition, c)
	}
	for _, r := range seedRisks {
		b.AddNode(TypeRisk, r)
	}
	for _, e := range seedEdges {
		// seed weights are literals inside [0,1]
		_ = b.AddEdge(e.from, e.to, e.weight)
	}
	return b.Build()
}

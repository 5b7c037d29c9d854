// Package anomaly flags outliers in numeric health series using z-scores.
// Statistics are recomputed from the whole series on every call.
package anomaly

import (
	"math"
	"sort"
)

// DefaultThreshold is the z-score magnitude at which a value is flagged.
const DefaultThreshold = 2.0

// Stats summarises a series. StdDev is the population standard deviation.
type Stats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stdDev"`
	Count  int     `json:"count"`
}

// Anomaly is one flagged reading.
type Anomaly struct {
	Value  float64 `json:"value"`
	Index  int     `json:"index"`
	ZScore float64 `json:"zScore"`
}

// Summarize returns the mean and population standard deviation of series.
// An empty series yields zero stats.
func Summarize(series []float64) Stats {
	n := len(series)
	if n == 0 {
		return Stats{}
	}
	// sum/n can miss a value like 0.1 by an ulp, leaving a constant series
	// with a tiny spread.
	if constant(series) {
		return Stats{Mean: series[0], Count: n}
	}
	var sum float64
	for _, v := range series {
		sum += v
	}
	mean := sum / float64(n)

	var sq float64
	for _, v := range series {
		d := v - mean
		sq += d * d
	}
	return Stats{Mean: mean, StdDev: math.Sqrt(sq / float64(n)), Count: n}
}

func constant(series []float64) bool {
	for _, v := range series[1:] {
		if v != series[0] {
			return false
		}
	}
	return true
}

// Detect returns every value whose |z| is at least threshold, in series
// order. A non-positive threshold falls back to DefaultThreshold. A series
// with zero spread has no anomalies.
func Detect(series []float64, threshold float64) []Anomaly {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	out := []Anomaly{}
	st := Summarize(series)
	if st.Count == 0 || st.StdDev == 0 {
		return out
	}
	for i, v := range series {
		z := (v - st.Mean) / st.StdDev
		if math.Abs(z) >= threshold {
			out = append(out, Anomaly{Value: v, Index: i, ZScore: z})
		}
	}
	return out
}

// Detector applies a fixed threshold.
type Detector struct {
	Threshold float64
}

func NewDetector(threshold float64) *Detector {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Detector{Threshold: threshold}
}

// Detect runs Detect with the detector's threshold.
func (d *Detector) Detect(series []float64) []Anomaly {
	return Detect(series, d.Threshold)
}

// Result pairs a series' stats with its anomalies.
type Result struct {
	Stats     Stats     `json:"stats"`
	Anomalies []Anomaly `json:"anomalies"`
}

// Analyze returns the stats and anomalies for one series.
func (d *Detector) Analyze(series []float64) Result {
	return Result{Stats: Summarize(series), Anomalies: d.Detect(series)}
}

// DetectNamed analyses several named series, e.g. heart_rate and steps.
// Series with no anomalies are still present in the result.
func (d *Detector) DetectNamed(series map[string][]float64) map[string]Result {
	out := make(map[string]Result, len(series))
	for name, s := range series {
		out[name] = d.Analyze(s)
	}
	return out
}

// Count totals the anomalies across named results.
func Count(results map[string]Result) int {
	n := 0
	for _, r := range results {
		n += len(r.Anomalies)
	}
	return n
}

// Names returns the result keys in sorted order.
func Names(results map[string]Result) []string {
	names := make([]string, 0, len(results))
	for k := range results {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

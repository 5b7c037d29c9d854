package sandbox

import "time"

// Point is one daily sample.
type Point struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// Vitals are daily series for the dashboard metrics.
type Vitals struct {
	HeartRate  []Point `json:"heart_rate"`
	Steps      []Point `json:"steps"`
	Calories   []Point `json:"calories"`
	SleepHours []Point `json:"sleep_hours"`
}

// Metric names used as keys by Vitals.Map.
const (
	MetricHeartRate  = "heart_rate"
	MetricSteps      = "steps"
	MetricCalories   = "calories"
	MetricSleepHours = "sleep_hours"
)

// Map returns the raw values of each series keyed by metric name.
func (v Vitals) Map() map[string][]float64 {
	return map[string][]float64{
		MetricHeartRate:  Values(v.HeartRate),
		MetricSteps:      Values(v.Steps),
		MetricCalories:   Values(v.Calories),
		MetricSleepHours: Values(v.SleepHours),
	}
}

// Values strips the dates from a series.
func Values(points []Point) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Value
	}
	return out
}

// Vitals generates n days of data ending at end. With outliers set, one
// heart-rate spike and one very short night are placed near the end so the
// anomaly detector has something to find.
func (g *Generator) Vitals(n int, end time.Time, outliers bool) Vitals {
	v := Vitals{
		HeartRate:  []Point{},
		Steps:      []Point{},
		Calories:   []Point{},
		SleepHours: []Point{},
	}
	restingHR := g.around(66, 4)
	baseSteps := g.around(8000, 1500)
	for _, d := range days(n, end) {
		date := d.Format(DateLayout)
		weekend := d.Weekday() == time.Saturday || d.Weekday() == time.Sunday
		steps := g.around(baseSteps, 1200)
		if weekend {
			steps *= 0.8
		}
		if steps < 500 {
			steps = 500
		}
		v.HeartRate = append(v.HeartRate, Point{date, round(g.around(restingHR, 2.5), 0)})
		v.Steps = append(v.Steps, Point{date, round(steps, 0)})
		v.Calories = append(v.Calories, Point{date, round(1700+steps*0.04+g.around(0, 60), 0)})
		v.SleepHours = append(v.SleepHours, Point{date, round(g.around(7.2, 0.5), 1)})
	}
	if outliers && n >= 5 {
		v.HeartRate[n-2].Value = round(restingHR+35, 0)
		v.SleepHours[n-3].Value = 3.1
	}
	return v
}

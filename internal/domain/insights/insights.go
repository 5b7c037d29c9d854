// Package insights turns a user's recent metrics into short, rule-based
// observations and runs the wellness chat assistant.
package insights

import (
	"fmt"
	"sort"

	"github.com/healthhub/healthhub/internal/domain/anomaly"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityAlert   Severity = "alert"
)

func (s Severity) rank() int {
	switch s {
	case SeverityAlert:
		return 2
	case SeverityWarning:
		return 1
	}
	return 0
}

const (
	CategorySleep     = "sleep"
	CategoryActivity  = "activity"
	CategoryHeart     = "heart"
	CategoryNutrition = "nutrition"
	CategoryHydration = "hydration"
	CategoryMood      = "mood"
	CategoryAnomaly   = "anomaly"
)

type Insight struct {
	Category string   `json:"category"`
	Severity Severity `json:"severity"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
}

// Snapshot is the input to Generate. Zero values mean "not tracked" and
// produce no insight for that category.
type Snapshot struct {
	AvgSleepHours    float64                   `json:"avg_sleep_hours"`
	AvgSteps         float64                   `json:"avg_steps"`
	RestingHeartRate float64                   `json:"resting_heart_rate"`
	CaloriesIn       float64                   `json:"calories_in"`
	CaloriesOut      float64                   `json:"calories_out"`
	WaterML          float64                   `json:"water_ml"`
	WaterGoalML      float64                   `json:"water_goal_ml"`
	MoodScores       []float64                 `json:"mood_scores"`
	Anomalies        map[string]anomaly.Result `json:"anomalies,omitempty"`
}

// Generate applies every rule to s and returns the insights most severe
// first. It never returns nil.
func Generate(s Snapshot) []Insight {
	out := []Insight{}
	for _, rule := range []func(Snapshot) []Insight{
		sleepInsights, activityInsights, heartInsights, calorieInsights,
		hydrationInsights, moodInsights, anomalyInsights,
	} {
		out = append(out, rule(s)...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Severity.rank() > out[j].Severity.rank() })
	return out
}

func sleepInsights(s Snapshot) []Insight {
	h := s.AvgSleepHours
	switch {
	case h == 0:
		return nil
	case h < 5:
		return []Insight{{CategorySleep, SeverityAlert, "Very little sleep",
			fmt.Sprintf("You averaged %.1f hours a night. Ongoing sleep under 5 hours affects mood, focus and heart health.", h)}}
	case h < 6.5:
		return []Insight{{CategorySleep, SeverityWarning, "Short on sleep",
			fmt.Sprintf("You averaged %.1f hours a night. Most adults need 7 to 9 hours.", h)}}
	case h > 10:
		return []Insight{{CategorySleep, SeverityWarning, "Sleeping a lot",
			fmt.Sprintf("You averaged %.1f hours a night. Persistent oversleeping can be worth mentioning to a doctor.", h)}}
	case h >= 7 && h <= 9:
		return []Insight{{CategorySleep, SeverityInfo, "Healthy sleep",
			fmt.Sprintf("%.1f hours a night is right in the recommended range.", h)}}
	}
	return nil
}

func activityInsights(s Snapshot) []Insight {
	steps := s.AvgSteps
	switch {
	case steps == 0:
		return nil
	case steps < 5000:
		return []Insight{{CategoryActivity, SeverityWarning, "Low activity",
			fmt.Sprintf("You averaged %.0f steps a day. Short walks after meals are an easy way to add more.", steps)}}
	case steps >= 10000:
		return []Insight{{CategoryActivity, SeverityInfo, "Great activity",
			fmt.Sprintf("You averaged %.0f steps a day. Keep it up.", steps)}}
	}
	return []Insight{{CategoryActivity, SeverityInfo, "Steady activity",
		fmt.Sprintf("You averaged %.0f steps a day. Aim for 10,000 for extra benefit.", steps)}}
}

func heartInsights(s Snapshot) []Insight {
	hr := s.RestingHeartRate
	switch {
	case hr == 0:
		return nil
	case hr > 100:
		return []Insight{{CategoryHeart, SeverityAlert, "High resting heart rate",
			fmt.Sprintf("Your resting heart rate is %.0f bpm. Above 100 bpm at rest should be checked by a doctor.", hr)}}
	case hr > 85:
		return []Insight{{CategoryHeart, SeverityWarning, "Elevated resting heart rate",
			fmt.Sprintf("Your resting heart rate is %.0f bpm. Stress, caffeine and poor sleep can all raise it.", hr)}}
	case hr < 45:
		return []Insight{{CategoryHeart, SeverityWarning, "Low resting heart rate",
			fmt.Sprintf("Your resting heart rate is %.0f bpm. That is normal for trained athletes; otherwise mention it to a doctor.", hr)}}
	}
	return nil
}

func calorieInsights(s Snapshot) []Insight {
	if s.CaloriesIn == 0 || s.CaloriesOut == 0 {
		return nil
	}
	balance := s.CaloriesIn - s.CaloriesOut
	switch {
	case balance > 500:
		return []Insight{{CategoryNutrition, SeverityWarning, "Calorie surplus",
			fmt.Sprintf("You ate about %.0f kcal more than you burned today.", balance)}}
	case balance < -1000:
		return []Insight{{CategoryNutrition, SeverityWarning, "Large calorie deficit",
			fmt.Sprintf("You burned about %.0f kcal more than you ate today. Very large deficits are hard to sustain.", -balance)}}
	}
	return []Insight{{CategoryNutrition, SeverityInfo, "Balanced intake",
		fmt.Sprintf("Your intake is within %.0f kcal of what you burned.", abs(balance))}}
}

func hydrationInsights(s Snapshot) []Insight {
	if s.WaterGoalML <= 0 {
		return nil
	}
	pct := s.WaterML / s.WaterGoalML * 100
	if pct >= 100 {
		return []Insight{{CategoryHydration, SeverityInfo, "Hydration goal reached",
			fmt.Sprintf("You drank %.0f ml today.", s.WaterML)}}
	}
	sev := SeverityInfo
	if pct < 40 {
		sev = SeverityWarning
	}
	return []Insight{{CategoryHydration, sev, "Drink some water",
		fmt.Sprintf("You are at %.0f%% of your %.0f ml goal.", pct, s.WaterGoalML)}}
}

// moodInsights compares the last three scores with the earlier ones.
// Scores run from 1 (very low) to 10 (very good).
func moodInsights(s Snapshot) []Insight {
	n := len(s.MoodScores)
	if n == 0 {
		return nil
	}
	all := mean(s.MoodScores)
	if all < 4 {
		return []Insight{{CategoryMood, SeverityWarning, "Low mood",
			"Your recent check-ins have been low. Talking to someone you trust or a professional can help."}}
	}
	if n < 6 {
		return nil
	}
	recent, earlier := mean(s.MoodScores[n-3:]), mean(s.MoodScores[:n-3])
	switch {
	case recent <= earlier-1.5:
		return []Insight{{CategoryMood, SeverityWarning, "Mood dipping",
			fmt.Sprintf("Your mood has dropped from %.1f to %.1f over the last few days.", earlier, recent)}}
	case recent >= earlier+1.5:
		return []Insight{{CategoryMood, SeverityInfo, "Mood improving",
			fmt.Sprintf("Your mood has improved from %.1f to %.1f over the last few days.", earlier, recent)}}
	}
	return nil
}

var metricLabels = map[string]string{
	"heart_rate":  "heart rate",
	"steps":       "step count",
	"calories":    "calorie burn",
	"sleep_hours": "sleep duration",
}

func anomalyInsights(s Snapshot) []Insight {
	var out []Insight
	for _, name := range anomaly.Names(s.Anomalies) {
		res := s.Anomalies[name]
		if len(res.Anomalies) == 0 {
			continue
		}
		label := metricLabels[name]
		if label == "" {
			label = name
		}
		sev := SeverityWarning
		if name == "heart_rate" {
			sev = SeverityAlert
		}
		last := res.Anomalies[len(res.Anomalies)-1]
		out = append(out, Insight{CategoryAnomaly, sev, fmt.Sprintf("Unusual %s", label),
			fmt.Sprintf("%d reading(s) stood out from your usual %s, most recently %.1f (typical %.1f).",
				len(res.Anomalies), label, last.Value, res.Stats.Mean)})
	}
	return out
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

package wellbeing

import "time"

type Mood string

const (
	MoodHappy     Mood = "happy"
	MoodCalm      Mood = "calm"
	MoodEnergetic Mood = "energetic"
	MoodNeutral   Mood = "neutral"
	MoodTired     Mood = "tired"
	MoodAnxious   Mood = "anxious"
	MoodStressed  Mood = "stressed"
	MoodSad       Mood = "sad"
	MoodAngry     Mood = "angry"
)

// valence is +1 for pleasant moods, -1 for unpleasant ones.
var valence = map[Mood]int{
	MoodHappy:     1,
	MoodCalm:      1,
	MoodEnergetic: 1,
	MoodNeutral:   0,
	MoodTired:     -1,
	MoodAnxious:   -1,
	MoodStressed:  -1,
	MoodSad:       -1,
	MoodAngry:     -1,
}

func (m Mood) Valid() bool {
	_, ok := valence[m]
	return ok
}

// Moods lists the accepted moods, pleasant first.
func Moods() []Mood {
	return []Mood{MoodHappy, MoodCalm, MoodEnergetic, MoodNeutral, MoodTired, MoodAnxious, MoodStressed, MoodSad, MoodAngry}
}

type Emotion struct {
	ID        string    `json:"id"`
	Mood      Mood      `json:"mood"`
	Intensity int       `json:"intensity"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Score places the check-in on a 1 (very low) to 10 (very good) scale:
// an intense pleasant mood scores high, an intense unpleasant one low.
func (e Emotion) Score() float64 {
	switch valence[e.Mood] {
	case 1:
		return 5 + float64(e.Intensity)/2
	case -1:
		return 6 - float64(e.Intensity)/2
	}
	return 5.5
}

type EmotionInput struct {
	Mood      Mood       `json:"mood" validate:"required"`
	Intensity int        `json:"intensity" validate:"required,gte=1,lte=10"`
	Note      string     `json:"note" validate:"max=500"`
	At        *time.Time `json:"at"`
}

type MoodTrend struct {
	Mood         Mood    `json:"mood"`
	Count        int     `json:"count"`
	AvgIntensity float64 `json:"avg_intensity"`
}

type DailyMood struct {
	Date     string  `json:"date"`
	CheckIns int     `json:"check_ins"`
	Score    float64 `json:"score"`
}

type Trend struct {
	Days     int         `json:"days"`
	CheckIns int         `json:"check_ins"`
	AvgScore float64     `json:"avg_score"`
	Dominant Mood        `json:"dominant,omitempty"`
	ByMood   []MoodTrend `json:"by_mood"`
	Daily    []DailyMood `json:"daily"`
}

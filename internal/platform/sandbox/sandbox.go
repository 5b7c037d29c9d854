// Package sandbox generates the deterministic mock data served whenever a
// remote integration is unavailable and by the seed command. The same seed
// and user id always produce the same data.
package sandbox

import (
	"hash/fnv"
	"math"
	"math/rand"
	"time"
)

// DateLayout is the day format used by series points.
const DateLayout = "2006-01-02"

// Generator produces mock records for one user.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator seeds a generator from seed mixed with a hash of userID.
func NewGenerator(seed int64, userID string) *Generator {
	h := fnv.New64a()
	_, _ = h.Write([]byte(userID))
	return &Generator{rng: rand.New(rand.NewSource(seed ^ int64(h.Sum64())))}
}

func (g *Generator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

// around returns mean plus gaussian noise with the given spread.
func (g *Generator) around(mean, spread float64) float64 {
	return mean + g.rng.NormFloat64()*spread
}

func (g *Generator) between(lo, hi int) int {
	return lo + g.rng.Intn(hi-lo+1)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// day truncates t to midnight UTC.
func day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// days returns n consecutive days ending with end's day, oldest first.
func days(n int, end time.Time) []time.Time {
	if n <= 0 {
		return nil
	}
	last := day(end)
	out := make([]time.Time, n)
	for i := 0; i < n; i++ {
		out[i] = last.AddDate(0, 0, i-n+1)
	}
	return out
}

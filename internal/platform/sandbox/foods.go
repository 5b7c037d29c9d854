package sandbox

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Food is a nutrient breakdown for one serving line.
type Food struct {
	Name        string  `json:"name"`
	ServingQty  float64 `json:"serving_qty"`
	ServingUnit string  `json:"serving_unit"`
	Calories    float64 `json:"calories"`
	ProteinG    float64 `json:"protein_g"`
	CarbsG      float64 `json:"carbs_g"`
	FatG        float64 `json:"fat_g"`
	FiberG      float64 `json:"fiber_g"`
}

// foodTable holds per-unit values for common foods.
var foodTable = map[string]Food{
	"apple":          {Name: "apple", ServingQty: 1, ServingUnit: "medium", Calories: 95, ProteinG: 0.5, CarbsG: 25, FatG: 0.3, FiberG: 4.4},
	"banana":         {Name: "banana", ServingQty: 1, ServingUnit: "medium", Calories: 105, ProteinG: 1.3, CarbsG: 27, FatG: 0.4, FiberG: 3.1},
	"egg":            {Name: "egg", ServingQty: 1, ServingUnit: "large", Calories: 72, ProteinG: 6.3, CarbsG: 0.4, FatG: 4.8},
	"oatmeal":        {Name: "oatmeal", ServingQty: 1, ServingUnit: "cup", Calories: 158, ProteinG: 6, CarbsG: 27, FatG: 3.2, FiberG: 4},
	"rice":           {Name: "rice", ServingQty: 1, ServingUnit: "cup", Calories: 206, ProteinG: 4.3, CarbsG: 45, FatG: 0.4, FiberG: 0.6},
	"chicken breast": {Name: "chicken breast", ServingQty: 1, ServingUnit: "breast", Calories: 284, ProteinG: 53, CarbsG: 0, FatG: 6.2},
	"salmon":         {Name: "salmon", ServingQty: 1, ServingUnit: "fillet", Calories: 367, ProteinG: 39, CarbsG: 0, FatG: 22},
	"broccoli":       {Name: "broccoli", ServingQty: 1, ServingUnit: "cup", Calories: 31, ProteinG: 2.5, CarbsG: 6, FatG: 0.3, FiberG: 2.4},
	"bread":          {Name: "bread", ServingQty: 1, ServingUnit: "slice", Calories: 79, ProteinG: 2.7, CarbsG: 15, FatG: 1, FiberG: 0.6},
	"milk":           {Name: "milk", ServingQty: 1, ServingUnit: "cup", Calories: 122, ProteinG: 8, CarbsG: 12, FatG: 4.8},
	"yogurt":         {Name: "yogurt", ServingQty: 1, ServingUnit: "container", Calories: 149, ProteinG: 8.5, CarbsG: 11, FatG: 8},
	"almonds":        {Name: "almonds", ServingQty: 1, ServingUnit: "oz", Calories: 164, ProteinG: 6, CarbsG: 6, FatG: 14, FiberG: 3.5},
	"pasta":          {Name: "pasta", ServingQty: 1, ServingUnit: "cup", Calories: 221, ProteinG: 8, CarbsG: 43, FatG: 1.3, FiberG: 2.5},
	"salad":          {Name: "salad", ServingQty: 1, ServingUnit: "bowl", Calories: 33, ProteinG: 2, CarbsG: 6, FatG: 0.4, FiberG: 2},
	"coffee":         {Name: "coffee", ServingQty: 1, ServingUnit: "cup", Calories: 2, ProteinG: 0.3},
	"orange":         {Name: "orange", ServingQty: 1, ServingUnit: "medium", Calories: 62, ProteinG: 1.2, CarbsG: 15, FatG: 0.2, FiberG: 3.1},
	"avocado":        {Name: "avocado", ServingQty: 1, ServingUnit: "fruit", Calories: 322, ProteinG: 4, CarbsG: 17, FatG: 29, FiberG: 13.5},
	"cheese":         {Name: "cheese", ServingQty: 1, ServingUnit: "slice", Calories: 113, ProteinG: 7, CarbsG: 0.4, FatG: 9.3},
	"potato":         {Name: "potato", ServingQty: 1, ServingUnit: "medium", Calories: 161, ProteinG: 4.3, CarbsG: 37, FatG: 0.2, FiberG: 3.8},
	"steak":          {Name: "steak", ServingQty: 1, ServingUnit: "steak", Calories: 679, ProteinG: 62, CarbsG: 0, FatG: 48},
}

// foodNames lists foodTable keys longest first so "chicken breast" wins
// over a shorter partial match.
var foodNames = func() []string {
	names := make([]string, 0, len(foodTable))
	for k := range foodTable {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	return names
}()

var (
	splitRe    = regexp.MustCompile(`(?i)\s*(?:,|\band\b|\bwith\b|\+)\s*`)
	quantityRe = regexp.MustCompile(`^(\d+(?:\.\d+)?|a|an|one|two|three|four|half)\s+`)
	words      = map[string]float64{"a": 1, "an": 1, "one": 1, "two": 2, "three": 3, "four": 4, "half": 0.5}
)

// LookupFoods parses a natural-language meal description ("2 eggs and a
// banana") into foods. Unknown items get a generic 100 kcal estimate so
// the caller always has something to show.
func LookupFoods(query string) []Food {
	out := []Food{}
	for _, part := range splitRe.Split(strings.ToLower(strings.TrimSpace(query)), -1) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		qty := 1.0
		if m := quantityRe.FindStringSubmatch(part); m != nil {
			if w, ok := words[m[1]]; ok {
				qty = w
			} else if f, err := strconv.ParseFloat(m[1], 64); err == nil {
				qty = f
			}
			part = strings.TrimSpace(part[len(m[0]):])
		}
		out = append(out, scaleFood(matchFood(part), qty))
	}
	return out
}

func matchFood(item string) Food {
	if f, ok := foodTable[item]; ok {
		return f
	}
	singular := strings.TrimSuffix(strings.TrimSuffix(item, "es"), "s")
	if f, ok := foodTable[singular]; ok {
		return f
	}
	if f, ok := foodTable[strings.TrimSuffix(item, "s")]; ok {
		return f
	}
	for _, name := range foodNames {
		if strings.Contains(item, name) {
			return foodTable[name]
		}
	}
	return Food{Name: item, ServingQty: 1, ServingUnit: "serving", Calories: 100, ProteinG: 3, CarbsG: 15, FatG: 3}
}

func scaleFood(f Food, qty float64) Food {
	f.ServingQty = round(f.ServingQty*qty, 2)
	f.Calories = round(f.Calories*qty, 1)
	f.ProteinG = round(f.ProteinG*qty, 1)
	f.CarbsG = round(f.CarbsG*qty, 1)
	f.FatG = round(f.FatG*qty, 1)
	f.FiberG = round(f.FiberG*qty, 1)
	return f
}

package cycle

import (
	"math"
	"sort"
	"time"
)

// Regularity classes by the spread of recorded cycle lengths
const (
	Regular       = "regular"
	Irregular     = "irregular"
	VeryIrregular = "very irregular"
)

const (
	// minCyclesForRegularity is how many cycles are needed before the
	// spread of lengths is judged
	minCyclesForRegularity = 3
	irregularSpread        = 7.0
	veryIrregularSpread    = 14.0
	maxCommonSymptoms      = 5
	minNormalCycleLength   = 21
	maxNormalCycleLength   = 35
)

// Alert texts surfaced with insights
const (
	AlertIrregular  = "Your cycles are showing irregular patterns. Consider consulting a healthcare provider."
	AlertOutOfRange = "Your cycle length is outside the normal range (21-35 days)."
)

// Insight summarizes a user's cycle and symptom history
type Insight struct {
	AverageCycleLength   int            `json:"averageCycleLength"`
	AveragePeriodLength  int            `json:"averagePeriodLength"`
	CycleRegularity      string         `json:"cycleRegularity"`
	CommonSymptoms       []string       `json:"commonSymptoms"`
	MoodPatterns         map[string]int `json:"moodPatterns"`
	FertileWindow        Window         `json:"fertileWindow"`
	NextPeriodPrediction time.Time      `json:"nextPeriodPrediction"`
	IrregularityAlerts   []string       `json:"irregularityAlerts"`
}

// Insights derives averages, regularity, symptom and mood patterns,
// predictions and alerts from the history
func Insights(cycles []Cycle, logs []SymptomLog, now time.Time) Insight {
	avgCycle := averageCycleLength(cycles)
	avgPeriod := float64(DefaultPeriodLength)
	if len(cycles) > 0 {
		sum := 0
		for _, c := range cycles {
			sum += c.PeriodLength
		}
		avgPeriod = float64(sum) / float64(len(cycles))
	}

	regularity := Regular
	if len(cycles) >= minCyclesForRegularity {
		spread := lengthSpread(cycles)
		if spread > irregularSpread {
			regularity = Irregular
		}
		if spread > veryIrregularSpread {
			regularity = VeryIrregular
		}
	}

	// The regularity alert fires for the middle class only
	alerts := []string{}
	if regularity == Irregular {
		alerts = append(alerts, AlertIrregular)
	}
	if avgCycle < minNormalCycleLength || avgCycle > maxNormalCycleLength {
		alerts = append(alerts, AlertOutOfRange)
	}

	return Insight{
		AverageCycleLength:   roundHalfUp(avgCycle),
		AveragePeriodLength:  roundHalfUp(avgPeriod),
		CycleRegularity:      regularity,
		CommonSymptoms:       commonSymptoms(logs),
		MoodPatterns:         moodPatterns(logs),
		FertileWindow:        FertileWindow(cycles, now),
		NextPeriodPrediction: NextPeriod(cycles, now),
		IrregularityAlerts:   alerts,
	}
}

// lengthSpread is the population standard deviation of cycle lengths
func lengthSpread(cycles []Cycle) float64 {
	mean := averageCycleLength(cycles)
	var sq float64
	for _, c := range cycles {
		d := float64(c.CycleLength) - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(cycles)))
}

// commonSymptoms returns up to five symptoms by descending count. Ties
// keep the order in which symptoms were first logged.
func commonSymptoms(logs []SymptomLog) []string {
	counts := make(map[string]int)
	var order []string
	for _, l := range logs {
		for _, s := range l.Symptoms {
			if counts[s] == 0 {
				order = append(order, s)
			}
			counts[s]++
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > maxCommonSymptoms {
		order = order[:maxCommonSymptoms]
	}
	if order == nil {
		order = []string{}
	}
	return order
}

func moodPatterns(logs []SymptomLog) map[string]int {
	counts := make(map[string]int)
	for _, l := range logs {
		counts[l.Mood]++
	}
	return counts
}

// roundHalfUp rounds halves toward positive infinity, so 28.5 becomes 29
func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

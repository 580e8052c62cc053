package cycle

import (
	"math"
	"slices"
	"time"
)

// Phase names a stage of the cycle
type Phase string

const (
	PhaseMenstrual  Phase = "Menstrual"
	PhaseFollicular Phase = "Follicular"
	PhaseOvulation  Phase = "Ovulation"
	PhaseLuteal     Phase = "Luteal"
)

// Day locates today within the current cycle
type Day struct {
	CycleDay int   `json:"cycleDay"`
	Phase    Phase `json:"phase"`
	PhaseDay int   `json:"phaseDay"`
}

// CurrentDay places now within the cycle that began at lastPeriod. Once
// the expected next period has passed without a new start the count
// restarts at day one. A non-positive cycleLength falls back to the
// default, and a lastPeriod in the future counts as day one.
func CurrentDay(lastPeriod time.Time, cycleLength int, now time.Time) Day {
	if cycleLength <= 0 {
		cycleLength = DefaultCycleLength
	}

	since := int(math.Floor(now.Sub(lastPeriod).Hours() / 24))
	cycleDay := 1
	if since > 0 {
		cycleDay = since%cycleLength + 1
	}
	if now.After(lastPeriod.AddDate(0, 0, cycleLength)) {
		cycleDay = 1
	}

	switch {
	case cycleDay <= 5:
		return Day{CycleDay: cycleDay, Phase: PhaseMenstrual, PhaseDay: cycleDay}
	case cycleDay <= 13:
		return Day{CycleDay: cycleDay, Phase: PhaseFollicular, PhaseDay: cycleDay - 5}
	case cycleDay <= 16:
		return Day{CycleDay: cycleDay, Phase: PhaseOvulation, PhaseDay: cycleDay - 13}
	default:
		return Day{CycleDay: cycleDay, Phase: PhaseLuteal, PhaseDay: cycleDay - 16}
	}
}

var phaseRecommendations = map[Phase][]string{
	PhaseMenstrual: {
		"Stay hydrated and rest more",
		"Gentle yoga or stretching",
		"Iron-rich foods for energy",
	},
	PhaseFollicular: {
		"Light to moderate exercise",
		"Focus on protein-rich foods",
		"Good time for new habits",
	},
	PhaseOvulation: {
		"Peak energy - great for intense workouts",
		"High-protein, balanced meals",
		"Social activities and networking",
	},
	PhaseLuteal: {
		"Comfort foods in moderation",
		"Stress management techniques",
		"Prepare for upcoming period",
	},
}

// symptomRecommendations adds advice when a symptom is logged in a phase
var symptomRecommendations = map[Phase]struct {
	symptom string
	advice  []string
}{
	PhaseMenstrual: {"cramps", []string{"Heat therapy for cramps", "Magnesium supplements"}},
	PhaseLuteal:    {"mood swings", []string{"Meditation and mindfulness", "Limit caffeine and sugar"}},
}

// Recommendations returns wellness advice for the phase, extended for
// symptoms that matter in it. Unknown phases get no advice.
func Recommendations(phase Phase, symptoms []string) []string {
	out := slices.Clone(phaseRecommendations[phase])
	if out == nil {
		return []string{}
	}
	if extra, ok := symptomRecommendations[phase]; ok && slices.Contains(symptoms, extra.symptom) {
		out = append(out, extra.advice...)
	}
	return out
}

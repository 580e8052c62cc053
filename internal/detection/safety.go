package detection

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Cramp intensities reported in a symptom log
const (
	CrampsNone   = "none"
	CrampsMild   = "mild"
	CrampsSevere = "severe"
)

// Safety alert trigger types
const (
	TriggerSeverePain       = "severe_pain"
	TriggerEmergencySymptom = "emergency_symptom"
)

var emergencySymptoms = []string{"severe bleeding", "fainting", "severe nausea", "chest pain"}

var newAlertID = uuid.NewString

// SymptomLog is a daily symptom entry as logged by the user
type SymptomLog struct {
	Date     time.Time `json:"date"`
	Cramps   string    `json:"cramps"`
	Symptoms []string  `json:"symptoms"`
	Notes    string    `json:"notes,omitempty"`
}

// SafetyAlert prompts the user to contact help after a worrying symptom log
type SafetyAlert struct {
	ID                       string    `json:"id"`
	UserID                   string    `json:"userId"`
	TriggerType              string    `json:"triggerType"`
	Message                  string    `json:"message"`
	Timestamp                time.Time `json:"timestamp"`
	IsResolved               bool      `json:"isResolved"`
	EmergencyContactNotified bool      `json:"emergencyContactNotified"`
}

// CheckSymptomTriggers returns a severe_pain alert for severe cramps and an
// emergency_symptom alert when any symptom mentions an emergency condition
func CheckSymptomTriggers(userID string, log SymptomLog, now time.Time) []SafetyAlert {
	var alerts []SafetyAlert

	if strings.EqualFold(log.Cramps, CrampsSevere) {
		alerts = append(alerts, SafetyAlert{
			UserID:      userID,
			TriggerType: TriggerSeverePain,
			Message:     "Severe pain detected. Would you like to alert your emergency contacts?",
			Timestamp:   now,
		})
	}

	if hasEmergencySymptom(log.Symptoms) {
		alerts = append(alerts, SafetyAlert{
			UserID:      userID,
			TriggerType: TriggerEmergencySymptom,
			Message:     "Emergency symptom detected. Please seek medical attention immediately.",
			Timestamp:   now,
		})
	}

	for i := range alerts {
		alerts[i].ID = newAlertID()
	}
	return alerts
}

func hasEmergencySymptom(symptoms []string) bool {
	for _, s := range symptoms {
		lower := strings.ToLower(s)
		for _, emergency := range emergencySymptoms {
			if strings.Contains(lower, emergency) {
				return true
			}
		}
	}
	return false
}

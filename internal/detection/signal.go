package detection

import (
	"encoding/json"
	"fmt"
	"math"
)

// Validate checks the payload matching s.Type
func (s Signal) Validate() error {
	switch s.Type {
	case SignalLocation:
		if s.Location == nil {
			return &ValidationError{Signal: s.Type, Field: "payload", Reason: "is missing"}
		}
		return validateLocation(*s.Location)
	case SignalHealth:
		if s.Health == nil {
			return &ValidationError{Signal: s.Type, Field: "payload", Reason: "is missing"}
		}
		if s.Health.Timestamp.IsZero() {
			return &ValidationError{Signal: s.Type, Field: "timestamp", Reason: "is required"}
		}
		if s.Health.HeartRate != nil && (math.IsNaN(*s.Health.HeartRate) || *s.Health.HeartRate < 0) {
			return &ValidationError{Signal: s.Type, Field: "heartRate", Reason: "must be a non-negative number"}
		}
		if s.Health.Steps != nil && *s.Health.Steps < 0 {
			return &ValidationError{Signal: s.Type, Field: "steps", Reason: "must be non-negative"}
		}
		if s.Health.SleepHours != nil && (math.IsNaN(*s.Health.SleepHours) || *s.Health.SleepHours < 0) {
			return &ValidationError{Signal: s.Type, Field: "sleepHours", Reason: "must be a non-negative number"}
		}
		return nil
	case SignalCheckIn, SignalSOS:
		if s.Type == SignalSOS && s.SOS != nil && s.SOS.Location != nil {
			p := s.SOS.Location
			if err := validateCoordinate(s.Type, p.Latitude, p.Longitude); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSignal, s.Type)
	}
}

func validateLocation(l LocationSample) error {
	if l.Timestamp.IsZero() {
		return &ValidationError{Signal: SignalLocation, Field: "timestamp", Reason: "is required"}
	}
	return validateCoordinate(SignalLocation, l.Latitude, l.Longitude)
}

func validateCoordinate(t SignalType, lat, lon float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return &ValidationError{Signal: t, Field: "latitude", Reason: "must be between -90 and 90"}
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return &ValidationError{Signal: t, Field: "longitude", Reason: "must be between -180 and 180"}
	}
	return nil
}

// DecodeSignal builds a Signal from a wire type name and its JSON payload.
// An empty payload is accepted for check-in and SOS signals.
func DecodeSignal(signalType string, payload []byte) (Signal, error) {
	t, err := ParseSignalType(signalType)
	if err != nil {
		return Signal{}, fmt.Errorf("%w: %q", err, signalType)
	}

	sig := Signal{Type: t}
	empty := len(payload) == 0

	switch t {
	case SignalLocation:
		sig.Location = &LocationSample{}
		err = unmarshalPayload(t, payload, sig.Location)
	case SignalHealth:
		sig.Health = &HealthSample{}
		err = unmarshalPayload(t, payload, sig.Health)
	case SignalCheckIn:
		sig.CheckIn = &CheckIn{}
		if !empty {
			err = unmarshalPayload(t, payload, sig.CheckIn)
		}
	case SignalSOS:
		sig.SOS = &SOSTrigger{}
		if !empty {
			err = unmarshalPayload(t, payload, sig.SOS)
		}
	}
	if err != nil {
		return Signal{}, err
	}

	return sig, nil
}

func unmarshalPayload(t SignalType, payload []byte, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return &ValidationError{Signal: t, Field: "payload", Reason: fmt.Sprintf("is not valid JSON (%v)", err)}
	}
	return nil
}

package geo

import (
	"math"
	"time"

	"github.com/sixdouglas/suncalc"
)

// Daylight describes the sun's position at a place and instant
type Daylight struct {
	SunAltitude float64 // degrees above the horizon
	IsDark      bool    // sun below civil twilight (-6 degrees)
}

// DaylightAt computes the sun altitude for p at t
func DaylightAt(p Point, t time.Time) Daylight {
	pos := suncalc.GetPosition(t, p.Latitude, p.Longitude)
	altitude := pos.Altitude * (180.0 / math.Pi)

	return Daylight{
		SunAltitude: math.Round(altitude*100) / 100,
		IsDark:      altitude < -6,
	}
}

package model

import "time"

// PhaseName is one of the eight named lunar phases.
type PhaseName string

// Lunar phases in order of increasing Sun-Moon elongation.
const (
	NewMoon        PhaseName = "new_moon"
	WaxingCrescent PhaseName = "waxing_crescent"
	FirstQuarter   PhaseName = "first_quarter"
	WaxingGibbous  PhaseName = "waxing_gibbous"
	FullMoon       PhaseName = "full_moon"
	WaningGibbous  PhaseName = "waning_gibbous"
	LastQuarter    PhaseName = "last_quarter"
	WaningCrescent PhaseName = "waning_crescent"
)

// Phases lists the phases starting at new moon; each spans 45 degrees of
// elongation centred on a multiple of 45.
var Phases = []PhaseName{NewMoon, WaxingCrescent, FirstQuarter, WaxingGibbous, FullMoon, WaningGibbous, LastQuarter, WaningCrescent}

// LunarPhase describes the Moon relative to the Sun.
type LunarPhase struct {
	Name         PhaseName `json:"name"`
	Elongation   float64   `json:"elongation"`
	Illumination float64   `json:"illumination"`
	MoonSign     Sign      `json:"moon_sign"`
}

// SkySnapshot is the geocentric sky at an instant.
type SkySnapshot struct {
	At        time.Time           `json:"at"`
	JulianDay float64             `json:"julian_day"`
	Positions []CelestialPosition `json:"positions"`
	Aspects   []Aspect            `json:"aspects"`
	Lunar     LunarPhase          `json:"lunar_phase"`
}

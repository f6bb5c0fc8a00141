package model

import (
	"fmt"
	"time"
)

// HouseSystem selects the house division strategy.
type HouseSystem string

// Supported house systems.
const (
	Placidus      HouseSystem = "placidus"
	Koch          HouseSystem = "koch"
	Equal         HouseSystem = "equal"
	WholeSign     HouseSystem = "whole_sign"
	Campanus      HouseSystem = "campanus"
	Regiomontanus HouseSystem = "regiomontanus"
	Topocentric   HouseSystem = "topocentric"
	Alcabitius    HouseSystem = "alcabitius"
	Morinus       HouseSystem = "morinus"
	Porphyrius    HouseSystem = "porphyrius"
)

// HouseSystems is the closed set of accepted selectors.
var HouseSystems = []HouseSystem{Placidus, Koch, Equal, WholeSign, Campanus, Regiomontanus, Topocentric, Alcabitius, Morinus, Porphyrius}

// ParseHouseSystem validates a selector; unknown values are rejected.
func ParseHouseSystem(s string) (HouseSystem, error) {
	for _, hs := range HouseSystems {
		if string(hs) == s {
			return hs, nil
		}
	}
	return "", fmt.Errorf("%w: unknown house system %q", ErrInvalidInput, s)
}

// ZodiacType selects the reference frame for longitudes.
type ZodiacType string

// Zodiac frames.
const (
	Tropical ZodiacType = "tropical"
	Sidereal ZodiacType = "sidereal"
)

// ParseZodiacType validates a zodiac selector. Empty means tropical.
func ParseZodiacType(s string) (ZodiacType, error) {
	switch ZodiacType(s) {
	case "", Tropical:
		return Tropical, nil
	case Sidereal:
		return Sidereal, nil
	}
	return "", fmt.Errorf("%w: unknown zodiac type %q", ErrInvalidInput, s)
}

// Date is a civil calendar date.
type Date struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

// Clock is a civil time of day.
type Clock struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
	Second int `json:"second,omitempty"`
}

// Location is a point on the Earth's surface. Longitude is positive east.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone"`
	City      string  `json:"city,omitempty"`
	Country   string  `json:"country,omitempty"`
}

// BirthData is the input of a natal chart.
type BirthData struct {
	Name     string   `json:"name,omitempty"`
	Date     Date     `json:"date"`
	Time     Clock    `json:"time"`
	Location Location `json:"location"`
}

// UT returns the birth instant in UTC, interpreting the civil fields in the
// location's timezone. An empty timezone means UTC.
func (b BirthData) UT() (time.Time, error) {
	loc := time.UTC
	if b.Location.Timezone != "" {
		l, err := time.LoadLocation(b.Location.Timezone)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: timezone %q: %v", ErrInvalidBirthData, b.Location.Timezone, err)
		}
		loc = l
	}
	t := time.Date(b.Date.Year, time.Month(b.Date.Month), b.Date.Day, b.Time.Hour, b.Time.Minute, b.Time.Second, 0, loc)
	return t.UTC(), nil
}

// CelestialPosition is a body placed on the ecliptic.
type CelestialPosition struct {
	Body       Body    `json:"body"`
	Longitude  float64 `json:"longitude"`
	Latitude   float64 `json:"latitude"`
	Distance   float64 `json:"distance"`
	Speed      float64 `json:"speed"`
	Sign       Sign    `json:"sign"`
	Degree     int     `json:"degree"`
	Minute     int     `json:"minute"`
	Second     int     `json:"second"`
	Retrograde bool    `json:"retrograde"`
	House      int     `json:"house"`
}

// HouseCusp is the starting longitude of a house.
type HouseCusp struct {
	House     int     `json:"house"`
	Longitude float64 `json:"longitude"`
	Sign      Sign    `json:"sign"`
	Degree    int     `json:"degree"`
	Minute    int     `json:"minute"`
	Second    int     `json:"second"`
}

// AspectType names an angular relationship.
type AspectType string

// Aspect types.
const (
	Conjunction    AspectType = "conjunction"
	Opposition     AspectType = "opposition"
	Trine          AspectType = "trine"
	Square         AspectType = "square"
	Sextile        AspectType = "sextile"
	Quincunx       AspectType = "quincunx"
	Semisextile    AspectType = "semisextile"
	Semisquare     AspectType = "semisquare"
	Sesquiquadrate AspectType = "sesquiquadrate"
	Quintile       AspectType = "quintile"
	Biquintile     AspectType = "biquintile"
)

// AspectTypes lists every aspect in detection scan order.
var AspectTypes = []AspectType{Conjunction, Opposition, Trine, Square, Sextile, Quincunx, Semisextile, Semisquare, Sesquiquadrate, Quintile, Biquintile}

var exactAngles = map[AspectType]float64{
	Conjunction: 0, Opposition: 180, Trine: 120, Square: 90, Sextile: 60, Quincunx: 150,
	Semisextile: 30, Semisquare: 45, Sesquiquadrate: 135, Quintile: 72, Biquintile: 144,
}

// Angle returns the exact angle of the aspect.
func (a AspectType) Angle() float64 { return exactAngles[a] }

// Valid reports whether a is a known aspect type.
func (a AspectType) Valid() bool {
	_, ok := exactAngles[a]
	return ok
}

// Aspect is a detected angular relationship between two bodies.
type Aspect struct {
	Body1    Body       `json:"body1"`
	Body2    Body       `json:"body2"`
	Type     AspectType `json:"type"`
	Angle    float64    `json:"angle"`
	Orb      float64    `json:"orb"`
	Applying bool       `json:"applying"`
	Strength float64    `json:"strength"`
}

// Chart is a fully assembled natal chart.
type Chart struct {
	ID           string              `json:"id,omitempty"`
	BirthData    BirthData           `json:"birth_data"`
	JulianDay    float64             `json:"julian_day"`
	Positions    []CelestialPosition `json:"positions"`
	Houses       []HouseCusp         `json:"houses"`
	Aspects      []Aspect            `json:"aspects"`
	Ascendant    CelestialPosition   `json:"ascendant"`
	Midheaven    CelestialPosition   `json:"midheaven"`
	HouseSystem  HouseSystem         `json:"house_system"`
	ZodiacType   ZodiacType          `json:"zodiac_type"`
	Elements     map[Element]int     `json:"elements"`
	Modalities   map[Modality]int    `json:"modalities"`
	CalculatedAt time.Time           `json:"calculated_at"`
}

// Position returns the position of body b, if present.
func (c *Chart) Position(b Body) (CelestialPosition, bool) {
	for _, p := range c.Positions {
		if p.Body == b {
			return p, true
		}
	}
	return CelestialPosition{}, false
}

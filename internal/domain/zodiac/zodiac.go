// Package zodiac normalizes ecliptic longitudes and places them in signs.
package zodiac

import (
	"math"

	"github.com/okian/astrolabe/internal/domain/julian"
	"github.com/okian/astrolabe/internal/domain/model"
)

const (
	fullCircle  = 360.0
	signWidth   = 30.0
	daysPerYear = 365.25

	// Lahiri ayanamsa at J2000 and its annual precession rate, in degrees.
	ayanamsaJ2000 = 23.853
	ayanamsaRate  = 50.2788 / 3600
)

// Normalize maps any real angle into [0, 360).
func Normalize(x float64) float64 {
	r := math.Mod(x, fullCircle)
	if r < 0 {
		r += fullCircle
	}
	if r >= fullCircle || r == 0 {
		return 0
	}
	return r
}

// Separation returns the shortest arc between two longitudes, in [0, 180].
func Separation(a, b float64) float64 {
	diff := math.Abs(Normalize(a) - Normalize(b))
	return math.Min(diff, fullCircle-diff)
}

// Midpoint returns the midpoint of the shorter arc between a and b.
func Midpoint(a, b float64) float64 {
	a, b = Normalize(a), Normalize(b)
	delta := Normalize(b - a)
	if delta > fullCircle/2 {
		delta -= fullCircle
	}
	return Normalize(a + delta/2)
}

// Placement is a longitude expressed as a sign and an offset within it.
type Placement struct {
	Longitude float64
	Sign      model.Sign
	Degree    int
	Minute    int
	Second    int
}

// Place normalizes lon and splits it into sign, degree, minute and second.
func Place(lon float64) Placement {
	n := Normalize(lon)
	idx := int(n / signWidth)
	if idx > len(model.Signs)-1 {
		idx = len(model.Signs) - 1
	}
	within := n - float64(idx)*signWidth
	deg := math.Floor(within)
	minutes := (within - deg) * 60
	min := math.Floor(minutes)
	sec := math.Floor((minutes - min) * 60)
	return Placement{
		Longitude: n,
		Sign:      model.Signs[idx],
		Degree:    int(deg),
		Minute:    int(min),
		Second:    int(sec),
	}
}

// Position builds a CelestialPosition for body from raw ecliptic values.
// Speeds below retrogradeThreshold mark the body retrograde.
func Position(body model.Body, lon, lat, dist, speed, retrogradeThreshold float64) model.CelestialPosition {
	p := Place(lon)
	return model.CelestialPosition{
		Body:       body,
		Longitude:  p.Longitude,
		Latitude:   lat,
		Distance:   dist,
		Speed:      speed,
		Sign:       p.Sign,
		Degree:     p.Degree,
		Minute:     p.Minute,
		Second:     p.Second,
		Retrograde: speed < retrogradeThreshold,
	}
}

// Cusp builds a HouseCusp for house from a longitude.
func Cusp(house int, lon float64) model.HouseCusp {
	p := Place(lon)
	return model.HouseCusp{House: house, Longitude: p.Longitude, Sign: p.Sign, Degree: p.Degree, Minute: p.Minute, Second: p.Second}
}

// Ayanamsa returns the Lahiri ayanamsa in degrees at jd.
func Ayanamsa(jd float64) float64 {
	years := (jd - julian.J2000) / daysPerYear
	return ayanamsaJ2000 + ayanamsaRate*years
}

// ToSidereal converts a tropical longitude to the sidereal zodiac at jd.
func ToSidereal(lon, jd float64) float64 {
	return Normalize(lon - Ayanamsa(jd))
}

// ElementCounts tallies the elements of the signs occupied by positions.
// Chart points are ignored.
func ElementCounts(positions []model.CelestialPosition) map[model.Element]int {
	counts := make(map[model.Element]int, len(model.Elements))
	for _, e := range model.Elements {
		counts[e] = 0
	}
	for _, p := range positions {
		if p.Body.IsPoint() {
			continue
		}
		if e := p.Sign.Element(); e != "" {
			counts[e]++
		}
	}
	return counts
}

// ModalityCounts tallies the modalities of the signs occupied by positions.
// Chart points are ignored.
func ModalityCounts(positions []model.CelestialPosition) map[model.Modality]int {
	counts := make(map[model.Modality]int, len(model.Modalities))
	for _, m := range model.Modalities {
		counts[m] = 0
	}
	for _, p := range positions {
		if p.Body.IsPoint() {
			continue
		}
		if m := p.Sign.Modality(); m != "" {
			counts[m]++
		}
	}
	return counts
}

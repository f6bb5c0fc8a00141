package houses

import (
	"math"

	"github.com/okian/astrolabe/internal/domain/model"
	"github.com/okian/astrolabe/internal/domain/zodiac"
)

// EqualHouses starts at the ascendant and steps 30 degrees.
func EqualHouses(jd float64, loc model.Location) ([12]float64, error) {
	f := newFrame(jd, loc.Latitude, loc.Longitude)
	return equalFrom(f.asc), nil
}

// WholeSignHouses starts at 0 degrees of the rising sign.
func WholeSignHouses(jd float64, loc model.Location) ([12]float64, error) {
	f := newFrame(jd, loc.Latitude, loc.Longitude)
	return equalFrom(math.Floor(f.asc/30) * 30), nil
}

// PorphyryHouses trisects each quadrant between the angles.
func PorphyryHouses(jd float64, loc model.Location) ([12]float64, error) {
	f := newFrame(jd, loc.Latitude, loc.Longitude)
	return quadrants(f.asc, f.mc), nil
}

// RegiomontanusHouses divides the celestial equator in 30 degree steps from
// the meridian and projects them through the north and south points.
func RegiomontanusHouses(jd float64, loc model.Location) ([12]float64, error) {
	f := newFrame(jd, loc.Latitude, loc.Longitude)
	return f.projected(func(h float64) float64 { return h }), nil
}

// CampanusHouses divides the prime vertical in 30 degree steps and maps
// each division onto the equator before projecting it like Regiomontanus.
func CampanusHouses(jd float64, loc model.Location) ([12]float64, error) {
	f := newFrame(jd, loc.Latitude, loc.Longitude)
	cosPhi := math.Cos(f.lat * deg2rad)
	return f.projected(func(h float64) float64 {
		r := h * deg2rad
		return math.Atan2(math.Sin(r)*cosPhi, math.Cos(r)) * rad2deg
	}), nil
}

func equalFrom(start float64) [12]float64 {
	var c [12]float64
	for i := range c {
		c[i] = zodiac.Normalize(start + 30*float64(i))
	}
	return c
}

func quadrants(asc, mc float64) [12]float64 {
	ic := zodiac.Normalize(mc + 180)
	dsc := zodiac.Normalize(asc + 180)
	lower := zodiac.Normalize(ic - asc) // asc -> ic, mirrored by dsc -> mc
	upper := zodiac.Normalize(asc - mc) // mc -> asc, mirrored by ic -> dsc

	var c [12]float64
	c[0], c[3], c[6], c[9] = asc, ic, dsc, mc
	c[1] = zodiac.Normalize(asc + lower/3)
	c[2] = zodiac.Normalize(asc + 2*lower/3)
	c[4] = zodiac.Normalize(ic + upper/3)
	c[5] = zodiac.Normalize(ic + 2*upper/3)
	c[7] = zodiac.Normalize(dsc + lower/3)
	c[8] = zodiac.Normalize(dsc + 2*lower/3)
	c[10] = zodiac.Normalize(mc + upper/3)
	c[11] = zodiac.Normalize(mc + 2*upper/3)
	return c
}

// projected builds the cusps of a system whose house circles pass through
// the north and south points of the horizon. equatorial maps a division of
// 30, 60, 120 or 150 degrees to its hour-angle offset on the equator.
func (f frame) projected(equatorial func(h float64) float64) [12]float64 {
	tanPhi := math.Tan(f.lat * deg2rad)
	cusp := func(h float64) float64 {
		offset := equatorial(h)
		return ascendantAt(f.ramc+offset-90, f.eps, tanPhi*math.Sin(offset*deg2rad))
	}

	var c [12]float64
	c[0], c[9] = f.asc, f.mc
	c[10], c[11] = cusp(30), cusp(60)
	c[1], c[2] = cusp(120), cusp(150)
	for i := 0; i < 6; i++ {
		c[(i+3)%12] = zodiac.Normalize(c[(i+9)%12] + 180)
	}
	return c
}

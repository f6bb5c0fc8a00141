package houses

import (
	"math"

	"github.com/okian/astrolabe/internal/domain/julian"
	"github.com/okian/astrolabe/internal/domain/zodiac"
)

const (
	deg2rad = math.Pi / 180
	rad2deg = 180 / math.Pi
)

// Obliquity returns the mean obliquity of the ecliptic at jd, in degrees.
func Obliquity(jd float64) float64 {
	t := julian.CenturiesSinceJ2000(jd)
	return 23.4392911 - (46.8150*t+0.00059*t*t-0.001813*t*t*t)/3600
}

// SiderealTime returns the local mean sidereal time at jd for an east
// longitude, as an angle in degrees. This is the right ascension of the
// meridian (RAMC).
func SiderealTime(jd, eastLongitude float64) float64 {
	t := julian.CenturiesSinceJ2000(jd)
	gmst := 280.46061837 + 360.98564736629*(jd-julian.J2000) + 0.000387933*t*t - t*t*t/38710000
	return zodiac.Normalize(gmst + eastLongitude)
}

// Midheaven returns the ecliptic longitude culminating at ramc.
func Midheaven(ramc, eps float64) float64 {
	r, e := ramc*deg2rad, eps*deg2rad
	return zodiac.Normalize(math.Atan2(math.Sin(r), math.Cos(r)*math.Cos(e)) * rad2deg)
}

// Ascendant returns the ecliptic longitude rising on the eastern horizon.
func Ascendant(ramc, eps, latitude float64) float64 {
	return ascendantAt(ramc, eps, math.Tan(latitude*deg2rad))
}

// ascendantAt intersects the ecliptic with the great circle whose pole has
// tangent tanPole and whose equator crossing lies 90 degrees east of ramc.
func ascendantAt(ramc, eps, tanPole float64) float64 {
	r, e := ramc*deg2rad, eps*deg2rad
	y := math.Cos(r)
	x := -(math.Sin(r)*math.Cos(e) + tanPole*math.Sin(e))
	return zodiac.Normalize(math.Atan2(y, x) * rad2deg)
}

// frame holds the angles every strategy starts from.
type frame struct {
	ramc float64
	eps  float64
	lat  float64
	asc  float64
	mc   float64
}

func newFrame(jd, latitude, eastLongitude float64) frame {
	f := frame{
		ramc: SiderealTime(jd, eastLongitude),
		eps:  Obliquity(jd),
		lat:  latitude,
	}
	f.asc = Ascendant(f.ramc, f.eps, f.lat)
	f.mc = Midheaven(f.ramc, f.eps)
	return f
}

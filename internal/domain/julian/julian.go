// Package julian converts between the proleptic Gregorian calendar and Julian Day numbers.
package julian

import (
	"fmt"
	"math"
	"time"

	"github.com/okian/astrolabe/internal/domain/model"
)

// Reference epochs.
const (
	// J2000 is the Julian Day of 2000-01-01T12:00 TT.
	J2000 = 2451545.0
	// DefaultMinJulianDay is 0001-01-01T00:00 UT.
	DefaultMinJulianDay = 1721425.5

	secondsPerDay = 86400
)

// Calendar is a UT calendar instant with whole-second resolution.
type Calendar struct {
	Year   int
	Month  int
	Day    int
	Hour   int
	Minute int
	Second int
}

// FromTime extracts the UT calendar fields of t.
func FromTime(t time.Time) Calendar {
	t = t.UTC()
	return Calendar{Year: t.Year(), Month: int(t.Month()), Day: t.Day(), Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}
}

// Time returns the calendar instant as a UTC time.
func (c Calendar) Time() time.Time {
	return time.Date(c.Year, time.Month(c.Month), c.Day, c.Hour, c.Minute, c.Second, 0, time.UTC)
}

// Option configures a Converter.
type Option func(*Converter)

// WithMinJulianDay sets the earliest accepted Julian Day.
func WithMinJulianDay(jd float64) Option {
	return func(c *Converter) {
		if jd > 0 {
			c.minJD = jd
		}
	}
}

// Converter is a TimeConverter with a lower bound on supported dates.
type Converter struct {
	minJD float64
}

// NewConverter creates a converter; the default bound is DefaultMinJulianDay.
func NewConverter(opts ...Option) Converter {
	c := Converter{minJD: DefaultMinJulianDay}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// MinJulianDay returns the configured lower bound.
func (c Converter) MinJulianDay() float64 { return c.minJD }

// ToJulianDay converts a UT calendar instant. Instants earlier than the
// configured bound fail with model.ErrInvalidInput.
func (c Converter) ToJulianDay(cal Calendar) (float64, error) {
	jd := JulianDay(cal)
	if jd < c.minJD {
		err := model.NewError(model.KindInvalidInput, "julian.to_julian_day",
			fmt.Errorf("julian day %.5f precedes supported minimum %.5f", jd, c.minJD))
		err.Detail = map[string]float64{"julian_day": jd, "min": c.minJD}
		return 0, err
	}
	return jd, nil
}

// ToCalendar converts a Julian Day back to a UT calendar instant, rounding
// to the nearest second.
func (c Converter) ToCalendar(jd float64) Calendar {
	return FromJulianDay(jd)
}

// JulianDay applies the Gregorian day-number formula without range checks.
func JulianDay(cal Calendar) float64 {
	a := floorDiv(14-cal.Month, 12)
	y := cal.Year + 4800 - a
	m := cal.Month + 12*a - 3
	jdn := cal.Day + floorDiv(153*m+2, 5) + 365*y + floorDiv(y, 4) - floorDiv(y, 100) + floorDiv(y, 400) - 32045
	return float64(jdn) + float64(cal.Hour-12)/24 + float64(cal.Minute)/1440 + float64(cal.Second)/secondsPerDay
}

// FromJulianDay is the inverse of JulianDay.
func FromJulianDay(jd float64) Calendar {
	shifted := jd + 0.5
	jdn := int(math.Floor(shifted))
	secs := int(math.Round((shifted - math.Floor(shifted)) * secondsPerDay))
	if secs >= secondsPerDay {
		jdn++
		secs -= secondsPerDay
	}

	a := jdn + 32044
	b := floorDiv(4*a+3, 146097)
	c := a - floorDiv(146097*b, 4)
	d := floorDiv(4*c+3, 1461)
	e := c - floorDiv(1461*d, 4)
	m := floorDiv(5*e+2, 153)

	return Calendar{
		Year:   100*b + d - 4800 + floorDiv(m, 10),
		Month:  m + 3 - 12*floorDiv(m, 10),
		Day:    e - floorDiv(153*m+2, 5) + 1,
		Hour:   secs / 3600,
		Minute: secs % 3600 / 60,
		Second: secs % 60,
	}
}

// CenturiesSinceJ2000 returns Julian centuries elapsed since J2000.
func CenturiesSinceJ2000(jd float64) float64 {
	return (jd - J2000) / 36525
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// Package model holds the domain entities shared by every astrolabe component.
package model

import "fmt"

// Body identifies a celestial body or a computed chart point.
type Body string

// Bodies known to the engine. Ascendant and Midheaven are chart points, not
// ephemeris bodies.
const (
	Sun       Body = "sun"
	Moon      Body = "moon"
	Mercury   Body = "mercury"
	Venus     Body = "venus"
	Mars      Body = "mars"
	Jupiter   Body = "jupiter"
	Saturn    Body = "saturn"
	Uranus    Body = "uranus"
	Neptune   Body = "neptune"
	Pluto     Body = "pluto"
	NorthNode Body = "north_node"
	SouthNode Body = "south_node"
	Chiron    Body = "chiron"
	Lilith    Body = "lilith"
	Ascendant Body = "ascendant"
	Midheaven Body = "midheaven"
)

// Planets are the ten classical bodies plus the outer planets.
var Planets = []Body{Sun, Moon, Mercury, Venus, Mars, Jupiter, Saturn, Uranus, Neptune, Pluto}

// CoreBodies is the default body set of a natal chart.
var CoreBodies = append(append([]Body{}, Planets...), NorthNode, SouthNode)

// Asteroids are added to a chart on request.
var Asteroids = []Body{Chiron, Lilith}

var bodyOrder = map[Body]int{
	Sun: 0, Moon: 1, Mercury: 2, Venus: 3, Mars: 4, Jupiter: 5, Saturn: 6,
	Uranus: 7, Neptune: 8, Pluto: 9, NorthNode: 10, SouthNode: 11,
	Chiron: 12, Lilith: 13, Ascendant: 14, Midheaven: 15,
}

// Index returns the canonical ordering of the body, or -1 when unknown.
func (b Body) Index() int {
	if i, ok := bodyOrder[b]; ok {
		return i
	}
	return -1
}

// Valid reports whether b is a known body or chart point.
func (b Body) Valid() bool { return b.Index() >= 0 }

// IsLuminary reports whether b is the Sun or the Moon.
func (b Body) IsLuminary() bool { return b == Sun || b == Moon }

// IsOuter reports whether b is one of the slow outer planets.
func (b Body) IsOuter() bool { return b == Uranus || b == Neptune || b == Pluto }

// IsPoint reports whether b is a computed chart point rather than a body.
func (b Body) IsPoint() bool { return b == Ascendant || b == Midheaven }

// ParseBody converts a wire name into a Body.
func ParseBody(s string) (Body, error) {
	b := Body(s)
	if !b.Valid() {
		return "", fmt.Errorf("%w: unknown body %q", ErrInvalidInput, s)
	}
	return b, nil
}

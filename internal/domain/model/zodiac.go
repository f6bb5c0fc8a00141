package model

// Sign is one of the twelve 30-degree zodiac divisions.
type Sign string

// Zodiac signs in ecliptic order starting at 0 degrees.
const (
	Aries       Sign = "aries"
	Taurus      Sign = "taurus"
	Gemini      Sign = "gemini"
	Cancer      Sign = "cancer"
	Leo         Sign = "leo"
	Virgo       Sign = "virgo"
	Libra       Sign = "libra"
	Scorpio     Sign = "scorpio"
	Sagittarius Sign = "sagittarius"
	Capricorn   Sign = "capricorn"
	Aquarius    Sign = "aquarius"
	Pisces      Sign = "pisces"
)

// Signs lists the zodiac in order; Signs[i] spans [30i, 30i+30).
var Signs = [12]Sign{Aries, Taurus, Gemini, Cancer, Leo, Virgo, Libra, Scorpio, Sagittarius, Capricorn, Aquarius, Pisces}

// Element groups signs by triplicity.
type Element string

// Elements.
const (
	Fire  Element = "fire"
	Earth Element = "earth"
	Air   Element = "air"
	Water Element = "water"
)

// Elements lists every element.
var Elements = []Element{Fire, Earth, Air, Water}

// Modality groups signs by quadruplicity.
type Modality string

// Modalities.
const (
	Cardinal Modality = "cardinal"
	Fixed    Modality = "fixed"
	Mutable  Modality = "mutable"
)

// Modalities lists every modality.
var Modalities = []Modality{Cardinal, Fixed, Mutable}

// Element returns the element of s; the cycle is fire, earth, air, water.
func (s Sign) Element() Element {
	i := s.Index()
	if i < 0 {
		return ""
	}
	return Elements[i%4]
}

// Modality returns the modality of s; the cycle is cardinal, fixed, mutable.
func (s Sign) Modality() Modality {
	i := s.Index()
	if i < 0 {
		return ""
	}
	return Modalities[i%3]
}

// Ruler returns the modern ruling body of s.
func (s Sign) Ruler() Body {
	return signRulers[s]
}

// Index returns the position of s in the zodiac, or -1.
func (s Sign) Index() int {
	for i, sign := range Signs {
		if sign == s {
			return i
		}
	}
	return -1
}

var signRulers = map[Sign]Body{
	Aries: Mars, Taurus: Venus, Gemini: Mercury, Cancer: Moon, Leo: Sun, Virgo: Mercury,
	Libra: Venus, Scorpio: Pluto, Sagittarius: Jupiter, Capricorn: Saturn, Aquarius: Uranus, Pisces: Neptune,
}

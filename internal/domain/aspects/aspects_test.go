package aspects

import (
	"errors"
	"testing"

	"github.com/okian/astrolabe/internal/domain/model"
	"github.com/okian/astrolabe/internal/domain/zodiac"
	. "github.com/smartystreets/goconvey/convey"
)

func pos(b model.Body, lon, speed float64) model.CelestialPosition {
	return zodiac.Position(b, lon, 0, 1, speed, 0)
}

func TestBetween(t *testing.T) {
	Convey("Given the default detector", t, func() {
		d := NewDetector()

		Convey("When the Sun is at 0 and the Moon at 120", func() {
			a, ok := d.Between(pos(model.Sun, 0, 1), pos(model.Moon, 120, 13))

			Convey("Then there is an exact trine", func() {
				So(ok, ShouldBeTrue)
				So(a.Type, ShouldEqual, model.Trine)
				So(a.Orb, ShouldEqual, 0)
				So(a.Strength, ShouldEqual, 1)
				So(a.Angle, ShouldEqual, 120)
			})
		})

		Convey("When two bodies sit either side of the zero point", func() {
			a, ok := d.Between(pos(model.Mars, 10, 0.5), pos(model.Venus, 355, 1.2))

			Convey("Then their separation is 15 and no aspect forms", func() {
				So(zodiac.Separation(10, 355), ShouldAlmostEqual, 15, 1e-9)
				So(ok, ShouldBeFalse)
				So(a, ShouldResemble, model.Aspect{})
			})
		})

		Convey("When the deviation is half the orb", func() {
			a, ok := d.Between(pos(model.Sun, 0, 1), pos(model.Saturn, 94, 0.03))
			So(ok, ShouldBeTrue)
			So(a.Type, ShouldEqual, model.Square)
			So(a.Strength, ShouldAlmostEqual, 0.5, 1e-9)
		})

		Convey("When the pair order must be kept", func() {
			venus, sun := pos(model.Venus, 0, 1.2), pos(model.Sun, 120, 0.9)
			a, ok := d.Ordered(venus, sun, 1)
			So(ok, ShouldBeTrue)
			So(a.Body1, ShouldEqual, model.Venus)
			So(a.Applying, ShouldBeTrue)

			c, _ := d.BetweenScaled(venus, sun, 1)
			So(c.Body1, ShouldEqual, model.Sun)
			So(c.Applying, ShouldBeFalse)
		})

		Convey("When orbs are scaled", func() {
			sun, saturn := pos(model.Sun, 0, 1), pos(model.Saturn, 94, 0.03)

			_, ok := d.BetweenScaled(sun, saturn, 0.4)
			So(ok, ShouldBeFalse)

			a, ok := d.BetweenScaled(sun, saturn, 1.5)
			So(ok, ShouldBeTrue)
			So(a.Type, ShouldEqual, model.Square)
			So(a.Strength, ShouldAlmostEqual, 1-4.0/12, 1e-9)
		})

		Convey("Then detection is symmetric", func() {
			pairs := [][2]model.CelestialPosition{
				{pos(model.Sun, 12, 1), pos(model.Moon, 190, 13)},
				{pos(model.Mercury, 300, -0.4), pos(model.Jupiter, 59, 0.1)},
				{pos(model.Venus, 44, 1.1), pos(model.Pluto, 117, 0.01)},
				{pos(model.NorthNode, 200, -0.05), pos(model.Mars, 271, 0.6)},
			}
			for _, p := range pairs {
				a1, ok1 := d.Between(p[0], p[1])
				a2, ok2 := d.Between(p[1], p[0])
				So(ok1, ShouldEqual, ok2)
				So(a1, ShouldResemble, a2)
			}
		})

		Convey("Then applying compares the speeds in canonical order", func() {
			a, _ := d.Between(pos(model.Moon, 120, 13), pos(model.Sun, 0, 1))
			So(a.Body1, ShouldEqual, model.Sun)
			So(a.Applying, ShouldBeFalse)
		})
	})
}

func TestOverlappingOrbs(t *testing.T) {
	Convey("Given widened orbs where sextile and quintile overlap", t, func() {
		orbs, err := Merge(DefaultOrbs(), Orbs{model.Sextile: 12})
		So(err, ShouldBeNil)
		a, b := pos(model.Sun, 0, 1), pos(model.Mars, 71, 0.5)

		Convey("When matching in scan order", func() {
			asp, ok := NewDetector(WithOrbs(orbs)).Between(a, b)

			Convey("Then the earlier table entry wins", func() {
				So(ok, ShouldBeTrue)
				So(asp.Type, ShouldEqual, model.Sextile)
			})
		})

		Convey("When matching by nearest angle", func() {
			asp, ok := NewDetector(WithOrbs(orbs), WithNearestAngle()).Between(a, b)

			Convey("Then the closer exact angle wins", func() {
				So(ok, ShouldBeTrue)
				So(asp.Type, ShouldEqual, model.Quintile)
				So(asp.Orb, ShouldAlmostEqual, 1, 1e-9)
			})
		})
	})
}

func TestMerge(t *testing.T) {
	Convey("Given orb overrides", t, func() {
		Convey("When an orb is negative", func() {
			_, err := Merge(DefaultOrbs(), Orbs{model.Trine: -1})
			So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
		})

		Convey("When the aspect type is unknown", func() {
			_, err := Merge(DefaultOrbs(), Orbs{model.AspectType("septile"): 1})
			So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
		})

		Convey("When an orb is zero", func() {
			orbs, err := Merge(DefaultOrbs(), Orbs{model.Conjunction: 0})
			So(err, ShouldBeNil)
			_, ok := NewDetector(WithOrbs(orbs)).Between(pos(model.Sun, 10, 1), pos(model.Moon, 10, 12))

			Convey("Then the type is disabled", func() {
				So(ok, ShouldBeFalse)
			})
		})

		Convey("Then the defaults are never mutated", func() {
			base := DefaultOrbs()
			_, _ = Merge(base, Orbs{model.Trine: 1})
			So(base[model.Trine], ShouldEqual, 8)
		})
	})
}

func TestDetect(t *testing.T) {
	Convey("Given several positions", t, func() {
		positions := []model.CelestialPosition{
			pos(model.Sun, 0, 1),
			pos(model.Moon, 120, 13),
			pos(model.Mercury, 240, 1.4),
			pos(model.Venus, 33, 1.2),
		}
		got := NewDetector().Detect(positions)

		Convey("Then each pair is evaluated once", func() {
			trines := 0
			for _, a := range got {
				if a.Type == model.Trine {
					trines++
				}
				So(a.Strength, ShouldBeBetweenOrEqual, 0, 1)
			}
			So(trines, ShouldEqual, 3)
		})

		Convey("Then a single position yields no aspects", func() {
			So(NewDetector().Detect(positions[:1]), ShouldBeEmpty)
		})
	})
}

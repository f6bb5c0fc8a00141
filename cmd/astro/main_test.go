package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/okian/astrolabe/internal/domain/model"
	"github.com/okian/astrolabe/internal/domain/types"
	"github.com/okian/astrolabe/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
	"github.com/urfave/cli/v3"
)

const testTable = "../../data/ephemeris.yaml"

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	prev := stdout
	stdout = buf
	t.Cleanup(func() { stdout = prev })
	return buf
}

func TestChartCommand(t *testing.T) {
	convey.Convey("Given the chart command", t, func() {
		buf := capture(t)

		convey.Convey("When a birth inside the table range is computed", func() {
			err := newCommand().Run(context.Background(), []string{
				"astro", "chart", "--table", testTable,
				"--date", "2024-02-10", "--time", "14:30",
				"--lat", "51.5074", "--lon", "-0.1278", "--tz", "Europe/London",
				"--house-system", "equal",
			})

			convey.Convey("Then a chart envelope is printed", func() {
				convey.So(err, convey.ShouldBeNil)
				var env types.ChartEnvelope
				convey.So(json.Unmarshal(buf.Bytes(), &env), convey.ShouldBeNil)
				convey.So(env.OK(), convey.ShouldBeTrue)
				convey.So(env.Data.HouseSystem, convey.ShouldEqual, model.Equal)
				convey.So(env.Data.Houses, convey.ShouldHaveLength, 12)
				convey.So(env.Data.JulianDay, convey.ShouldAlmostEqual, 2460351.1041667, 1e-6)
			})
		})

		convey.Convey("When the birth falls outside the table", func() {
			err := newCommand().Run(context.Background(), []string{
				"astro", "chart", "--table", testTable, "--date", "1990-07-15",
			})

			convey.Convey("Then the failure is printed and returned", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldStartWith, string(model.KindEphemeris))
				var env types.ChartEnvelope
				convey.So(json.Unmarshal(buf.Bytes(), &env), convey.ShouldBeNil)
				convey.So(env.Error.Kind, convey.ShouldEqual, model.KindEphemeris)
			})
		})

		convey.Convey("When the time flag is malformed", func() {
			err := newCommand().Run(context.Background(), []string{
				"astro", "chart", "--table", testTable, "--date", "2024-02-10", "--time", "noon",
			})
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "--time")
			convey.So(buf.Len(), convey.ShouldEqual, 0)
		})
	})
}

func TestSkyCommand(t *testing.T) {
	convey.Convey("Given the sky command", t, func() {
		buf := capture(t)

		convey.Convey("When an instant inside the table is requested", func() {
			err := newCommand().Run(context.Background(), []string{
				"astro", "sky", "--table", testTable, "--at", "2024-03-01T00:00:00Z",
			})

			convey.Convey("Then a snapshot with a lunar phase is printed", func() {
				convey.So(err, convey.ShouldBeNil)
				var env types.SkyEnvelope
				convey.So(json.Unmarshal(buf.Bytes(), &env), convey.ShouldBeNil)
				convey.So(env.OK(), convey.ShouldBeTrue)
				convey.So(env.Data.JulianDay, convey.ShouldAlmostEqual, 2460370.5, 1e-6)
				convey.So(string(env.Data.Lunar.Name), convey.ShouldNotBeEmpty)
			})
		})

		convey.Convey("When --at is not RFC3339", func() {
			err := newCommand().Run(context.Background(), []string{"astro", "sky", "--at", "yesterday"})
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "--at")
		})
	})
}

func TestAsteroidsFlag(t *testing.T) {
	convey.Convey("Given the chart command", t, func() {
		var usage string
		for _, sub := range newCommand().Commands {
			if sub.Name != "chart" {
				continue
			}
			for _, f := range sub.Flags {
				if b, ok := f.(*cli.BoolFlag); ok && b.Name == "asteroids" {
					usage = b.Usage
				}
			}
		}

		convey.Convey("Then the asteroids flag names every optional body", func() {
			convey.So(usage, convey.ShouldNotBeEmpty)
			for _, b := range model.Asteroids {
				convey.So(strings.ToLower(usage), convey.ShouldContainSubstring, string(b))
			}
			convey.So(usage, convey.ShouldNotContainSubstring, "main-belt")
		})
	})
}

// Command astro computes charts from the command line and load tests a
// running astrolabe server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	service "github.com/okian/astrolabe/internal/app"
	"github.com/okian/astrolabe/internal/config"
	"github.com/okian/astrolabe/internal/domain/chart"
	"github.com/okian/astrolabe/internal/domain/model"
	"github.com/okian/astrolabe/internal/domain/types"
	"github.com/okian/astrolabe/internal/loadgen"
	"github.com/okian/astrolabe/pkg/logger"
)

// stdout receives command results; logs go to stderr.
var stdout io.Writer = os.Stdout

func main() {
	if err := logger.Init(logger.WithOutput(os.Stderr)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		logger.Get().Error(ctx, "astro failed", logger.Error(err))
		stop()
		os.Exit(1) //nolint:gocritic // exitAfterDefer: stop is called explicitly
	}
}

func newCommand() *cli.Command {
	tableFlag := func() cli.Flag {
		return &cli.StringFlag{
			Name:    "table",
			Usage:   "Path to the ephemeris table (overrides ASTRO_EPHEMERIS_TABLE)",
			Sources: cli.EnvVars("ASTRO_TABLE"),
		}
	}

	return &cli.Command{
		Name:  "astro",
		Usage: "Natal charts, sky snapshots and load tests for astrolabe",
		Commands: []*cli.Command{
			{
				Name:   "chart",
				Usage:  "Compute a natal chart locally",
				Action: runChart,
				Flags: []cli.Flag{
					tableFlag(),
					&cli.StringFlag{Name: "date", Usage: "Birth date, YYYY-MM-DD", Required: true},
					&cli.StringFlag{Name: "time", Usage: "Birth time, HH:MM or HH:MM:SS", Value: "12:00"},
					&cli.FloatFlag{Name: "lat", Usage: "Latitude in degrees, north positive"},
					&cli.FloatFlag{Name: "lon", Usage: "Longitude in degrees, east positive"},
					&cli.StringFlag{Name: "tz", Usage: "IANA timezone of the birth time", Value: "UTC"},
					&cli.StringFlag{Name: "name", Usage: "Optional label"},
					&cli.StringFlag{Name: "house-system", Usage: "House system, defaults to the configured one"},
					&cli.StringFlag{Name: "zodiac", Usage: "tropical or sidereal", Value: string(model.Tropical)},
					&cli.BoolFlag{Name: "asteroids", Usage: "Include Chiron and Lilith"},
				},
			},
			{
				Name:   "sky",
				Usage:  "Show current planetary positions and the lunar phase",
				Action: runSky,
				Flags: []cli.Flag{
					tableFlag(),
					&cli.StringFlag{Name: "at", Usage: "Instant in RFC3339, defaults to now"},
				},
			},
			{
				Name:   "loadtest",
				Usage:  "Drive a running server with random requests",
				Action: runLoadTest,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "url", Usage: "Base URL of the service", Value: "http://localhost:9080", Sources: cli.EnvVars("ASTRO_URL")},
					&cli.IntFlag{Name: "requests", Usage: "Number of single requests", Value: loadgen.DefaultRequests},
					&cli.IntFlag{Name: "workers", Usage: "Number of concurrent workers (default CPU cores * 2)"},
					&cli.DurationFlag{Name: "timeout", Usage: "HTTP request timeout", Value: loadgen.DefaultTimeout},
					&cli.IntFlag{Name: "batch", Usage: "Items in the trailing batch request", Value: loadgen.DefaultBatchSize},
					&cli.FloatFlag{Name: "synastry", Usage: "Share of requests sent as synastry", Value: loadgen.DefaultSynastryRatio},
					&cli.IntFlag{Name: "verify", Usage: "Stored charts to read back", Value: loadgen.DefaultVerifyCount},
					&cli.BoolFlag{Name: "verbose", Usage: "Log every failed request"},
				},
			},
		},
	}
}

// newAssembler builds an assembler from the layered config, with the table
// flag taking precedence over the configured source.
func newAssembler(ctx context.Context, cmd *cli.Command) (*chart.Assembler, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if path := cmd.String("table"); path != "" {
		cfg.EphemerisSource = config.SourceTable
		cfg.EphemerisTable = path
	}
	cfg.EphemerisWatch = false

	p, err := service.NewProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return chart.NewAssembler(p, service.ChartOptions(cfg)...), nil
}

func runChart(ctx context.Context, cmd *cli.Command) error {
	bd, err := birthData(cmd)
	if err != nil {
		return err
	}
	a, err := newAssembler(ctx, cmd)
	if err != nil {
		return err
	}

	req := types.ChartRequest{
		BirthData:        bd,
		HouseSystem:      cmd.String("house-system"),
		ZodiacType:       cmd.String("zodiac"),
		IncludeAsteroids: cmd.Bool("asteroids"),
	}
	return printResult(a.Compute(ctx, req.BirthData, req.Options()))
}

func runSky(ctx context.Context, cmd *cli.Command) error {
	at := time.Now().UTC()
	if s := cmd.String("at"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("invalid --at: %w", err)
		}
		at = t
	}
	a, err := newAssembler(ctx, cmd)
	if err != nil {
		return err
	}
	return printResult(a.Sky(ctx, at))
}

func runLoadTest(ctx context.Context, cmd *cli.Command) error {
	from, to := loadgen.DefaultRange()
	workers := int(cmd.Int("workers"))
	if workers < 1 {
		workers = runtime.NumCPU() * 2
	}
	_, err := loadgen.Run(ctx, &loadgen.Config{
		BaseURL:       cmd.String("url"),
		Requests:      int(cmd.Int("requests")),
		Workers:       workers,
		Timeout:       cmd.Duration("timeout"),
		BatchSize:     int(cmd.Int("batch")),
		SynastryRatio: cmd.Float("synastry"),
		VerifyCount:   int(cmd.Int("verify")),
		From:          from,
		To:            to,
		Verbose:       cmd.Bool("verbose"),
	})
	return err
}

// birthData reads the birth flags of the chart command.
func birthData(cmd *cli.Command) (model.BirthData, error) {
	d, err := time.Parse(time.DateOnly, cmd.String("date"))
	if err != nil {
		return model.BirthData{}, fmt.Errorf("invalid --date: %w", err)
	}
	clock := cmd.String("time")
	t, err := time.Parse("15:04:05", clock)
	if err != nil {
		if t, err = time.Parse("15:04", clock); err != nil {
			return model.BirthData{}, fmt.Errorf("invalid --time: %w", err)
		}
	}
	return model.BirthData{
		Name: cmd.String("name"),
		Date: model.Date{Year: d.Year(), Month: int(d.Month()), Day: d.Day()},
		Time: model.Clock{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()},
		Location: model.Location{
			Latitude:  cmd.Float("lat"),
			Longitude: cmd.Float("lon"),
			Timezone:  cmd.String("tz"),
		},
	}, nil
}

// printResult writes res as an indented envelope and returns its failure.
func printResult[T any](res model.Result[T]) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(types.FromResult(res)); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	if !res.OK() {
		return fmt.Errorf("%s: %s", res.Failure.Kind, res.Failure.Message)
	}
	return nil
}

// Package table serves ephemeris positions from a YAML table of dated rows.
//
// Rows hold geocentric positions at a Julian Day. Lookups between two rows
// are linearly interpolated, with longitudes moving along the shorter arc.
// The table is held behind an atomic pointer so a reload never blocks or
// tears a concurrent lookup.
package table

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync/atomic"

	"github.com/okian/astrolabe/internal/domain/ephemeris"
	"github.com/okian/astrolabe/internal/domain/model"
	"github.com/okian/astrolabe/internal/domain/zodiac"
	"gopkg.in/yaml.v3"
)

const providerName = "table"

// Sentinel errors for table loading.
var (
	ErrEmptyTable   = errors.New("ephemeris table has no rows")
	ErrDuplicateRow = errors.New("ephemeris table has duplicate julian days")
	ErrUnknownBody  = errors.New("ephemeris table names an unknown body")
)

// Row is the set of positions at one Julian Day.
type Row struct {
	JD     float64                              `yaml:"jd"`
	Bodies map[model.Body]ephemeris.RawPosition `yaml:"bodies"`
}

type document struct {
	Rows []Row `yaml:"rows"`
}

// Parse decodes and validates a YAML table. Rows are returned sorted by JD.
func Parse(data []byte) ([]Row, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode ephemeris table: %w", err)
	}
	return sortRows(doc.Rows)
}

func sortRows(rows []Row) ([]Row, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyTable
	}
	out := append([]Row(nil), rows...)
	sort.Slice(out, func(i, j int) bool { return out[i].JD < out[j].JD })
	for i, r := range out {
		if i > 0 && r.JD == out[i-1].JD {
			return nil, fmt.Errorf("%w: %.6f", ErrDuplicateRow, r.JD)
		}
		for b := range r.Bodies {
			if !b.Valid() || b.IsPoint() {
				return nil, fmt.Errorf("%w: %q at %.6f", ErrUnknownBody, b, r.JD)
			}
		}
	}
	return out, nil
}

// Provider implements ephemeris.Provider over a table.
type Provider struct {
	path string
	rows atomic.Pointer[[]Row]
}

// New creates a Provider over rows held in memory.
func New(rows []Row) (*Provider, error) {
	sorted, err := sortRows(rows)
	if err != nil {
		return nil, err
	}
	p := &Provider{}
	p.rows.Store(&sorted)
	return p, nil
}

// Load creates a Provider from a YAML file. The file can be reloaded later
// with Reload or Watch.
func Load(path string) (*Provider, error) {
	p := &Provider{path: path}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Reload re-reads the table file. On failure the current table stays in use.
func (p *Provider) Reload() error {
	if p.path == "" {
		return errors.New("ephemeris table has no backing file")
	}
	data, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("read ephemeris table: %w", err)
	}
	rows, err := Parse(data)
	if err != nil {
		return fmt.Errorf("%s: %w", p.path, err)
	}
	p.rows.Store(&rows)
	return nil
}

// Name implements ephemeris.Provider.
func (p *Provider) Name() string { return providerName }

// Range returns the first and last Julian Day of the table.
func (p *Provider) Range() (first, last float64) {
	rows := *p.rows.Load()
	return rows[0].JD, rows[len(rows)-1].JD
}

// Len returns the number of rows.
func (p *Provider) Len() int { return len(*p.rows.Load()) }

// Positions implements ephemeris.Provider. The table is geocentric, so loc
// is ignored.
func (p *Provider) Positions(ctx context.Context, jd float64, _ *model.Location) (ephemeris.Positions, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("table positions: %w", err)
	}
	rows := *p.rows.Load()
	first, last := rows[0].JD, rows[len(rows)-1].JD
	if jd < first || jd > last {
		return nil, ephemeris.NewError(providerName,
			map[string]float64{"jd": jd, "min": first, "max": last},
			fmt.Errorf("julian day %.6f outside table range [%.6f, %.6f]", jd, first, last))
	}

	// First row with JD >= jd.
	i := sort.Search(len(rows), func(i int) bool { return rows[i].JD >= jd })
	if rows[i].JD == jd {
		return ephemeris.Positions(rows[i].Bodies).Clone(), nil
	}
	return interpolate(rows[i-1], rows[i], jd), nil
}

// interpolate blends two bracketing rows. Bodies missing from either row
// are left out.
func interpolate(a, b Row, jd float64) ephemeris.Positions {
	t := (jd - a.JD) / (b.JD - a.JD)
	out := make(ephemeris.Positions, len(a.Bodies))
	for body, pa := range a.Bodies {
		pb, ok := b.Bodies[body]
		if !ok {
			continue
		}
		delta := zodiac.Normalize(pb.Longitude-pa.Longitude+180) - 180
		out[body] = ephemeris.RawPosition{
			Longitude: zodiac.Normalize(pa.Longitude + t*delta),
			Latitude:  lerp(pa.Latitude, pb.Latitude, t),
			Distance:  lerp(pa.Distance, pb.Distance, t),
			Speed:     lerp(pa.Speed, pb.Speed, t),
		}
	}
	return out
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

package loadgen

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/okian/astrolabe/internal/domain/model"
	"github.com/okian/astrolabe/internal/domain/types"
	"github.com/okian/astrolabe/pkg/logger"
)

const randomFloatDivisor = 1000000

// place is a birth location the generator picks from.
type place struct {
	city     string
	country  string
	lat, lon float64
	timezone string
}

var places = []place{
	{"New York", "US", 40.7128, -74.0060, "America/New_York"},
	{"London", "GB", 51.5074, -0.1278, "Europe/London"},
	{"Tokyo", "JP", 35.6762, 139.6503, "Asia/Tokyo"},
	{"Sydney", "AU", -33.8688, 151.2093, "Australia/Sydney"},
	{"Sao Paulo", "BR", -23.5505, -46.6333, "America/Sao_Paulo"},
	{"Cairo", "EG", 30.0444, 31.2357, "Africa/Cairo"},
	{"Mumbai", "IN", 19.0760, 72.8777, "Asia/Kolkata"},
	{"Reykjavik", "IS", 64.1466, -21.9426, "Atlantic/Reykjavik"},
	{"Quito", "EC", -0.1807, -78.4678, "America/Guayaquil"},
}

// House systems the generator rotates through.
var houseSystems = []model.HouseSystem{
	model.Placidus, model.Koch, model.Equal, model.WholeSign, model.Campanus,
	model.Regiomontanus, model.Topocentric, model.Alcabitius, model.Morinus, model.Porphyrius,
}

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

func randomIndex(n int) int {
	i, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(i.Int64())
}

// generateRequests creates count chart requests with birth moments in
// [from, to). The moment is drawn in UTC and expressed in local time of
// the chosen place, so every request stays inside the range.
func generateRequests(ctx context.Context, count int, from, to time.Time) ([]types.ChartRequest, error) {
	logger.Get().Info(ctx, "generating chart requests", logger.Int("count", count))

	span := to.Sub(from)
	reqs := make([]types.ChartRequest, count)
	for i := range reqs {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("request generation cancelled: %w", err)
		}
		instant := from.Add(time.Duration(getRandomFloat() * float64(span))).Truncate(time.Minute)
		req, err := newRequest(instant, places[randomIndex(len(places))])
		if err != nil {
			return nil, fmt.Errorf("failed to generate request %d: %w", i, err)
		}
		req.HouseSystem = string(houseSystems[i%len(houseSystems)])
		reqs[i] = req
	}
	return reqs, nil
}

// newRequest builds a chart request for instant as seen at p.
func newRequest(instant time.Time, p place) (types.ChartRequest, error) {
	loc, err := time.LoadLocation(p.timezone)
	if err != nil {
		return types.ChartRequest{}, fmt.Errorf("load timezone %q: %w", p.timezone, err)
	}
	local := instant.In(loc)
	return types.ChartRequest{
		BirthData: model.BirthData{
			Name: uuid.NewString(),
			Date: model.Date{Year: local.Year(), Month: int(local.Month()), Day: local.Day()},
			Time: model.Clock{Hour: local.Hour(), Minute: local.Minute()},
			Location: model.Location{
				Latitude:  p.lat,
				Longitude: p.lon,
				Timezone:  p.timezone,
				City:      p.city,
				Country:   p.country,
			},
		},
	}, nil
}

package chart

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/okian/astrolabe/internal/domain/model"
)

const maxYear = 9999

// ValidateBirthData checks every field of bd before any calculation starts.
// The returned error is a model.Error of kind invalid_birth_data whose
// Detail holds the per-field validation errors.
func ValidateBirthData(bd model.BirthData) error {
	d, c, l := bd.Date, bd.Time, bd.Location

	errs := validation.Errors{
		"date": validation.ValidateStruct(&d,
			validation.Field(&d.Year, validation.Required, validation.Max(maxYear)),
			validation.Field(&d.Month, validation.Required, validation.Min(1), validation.Max(12)),
			validation.Field(&d.Day, validation.Required, validation.Min(1), validation.Max(31), validation.By(dayExists(d))),
		),
		"time": validation.ValidateStruct(&c,
			validation.Field(&c.Hour, validation.Min(0), validation.Max(23)),
			validation.Field(&c.Minute, validation.Min(0), validation.Max(59)),
			validation.Field(&c.Second, validation.Min(0), validation.Max(59)),
		),
		"location": validation.ValidateStruct(&l,
			validation.Field(&l.Latitude, validation.Min(-90.0), validation.Max(90.0)),
			validation.Field(&l.Longitude, validation.Min(-180.0), validation.Max(180.0)),
			validation.Field(&l.Timezone, validation.By(timezoneExists)),
		),
	}.Filter()
	if errs == nil {
		return nil
	}

	e := model.NewError(model.KindInvalidBirthData, "chart.validate", errs)
	e.Detail = errs
	return e
}

func dayExists(d model.Date) validation.RuleFunc {
	return func(any) error {
		if d.Month < 1 || d.Month > 12 || d.Day < 1 {
			return nil
		}
		t := time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
		if t.Day() != d.Day {
			return errors.New("day does not exist in month")
		}
		return nil
	}
}

func timezoneExists(value any) error {
	tz, _ := value.(string)
	if tz == "" {
		return nil
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return errors.New("unknown timezone")
	}
	return nil
}

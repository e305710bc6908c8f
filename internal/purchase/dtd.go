package purchase

import (
	"context"
	"time"

	"storefront-api/internal/apperr"
)

// DTD is a delivery-time estimate: a calendar window plus the working
// days it spans.
type DTD struct {
	Occasion        string    `json:"occasion,omitempty"`
	DateFrom        time.Time `json:"date_from"`
	DateTo          time.Time `json:"date_to"`
	WorkingDaysFrom int       `json:"working_days_from"`
	WorkingDaysTo   int       `json:"working_days_to"`
}

// Validate enforces the DTD invariants.
func (d *DTD) Validate() error {
	if d.WorkingDaysFrom < 1 || d.WorkingDaysTo < 1 {
		return apperr.Incorrect("dtd working days must be at least 1")
	}
	if d.WorkingDaysFrom > d.WorkingDaysTo {
		return apperr.Incorrect("dtd working days range is inverted")
	}
	if d.DateFrom.After(d.DateTo) {
		return apperr.Incorrect("dtd date range is inverted")
	}
	return nil
}

// Calculator estimates delivery time for a variant. The policy is
// pluggable; the standard one works off fixed working-day bounds.
type Calculator interface {
	Default() DTD
	Calculate(ctx context.Context, simpleSKU string, qty int) (DTD, error)
}

// StandardCalculator derives the calendar window by walking working
// days forward from the current date, skipping weekends.
type StandardCalculator struct {
	daysFrom int
	daysTo   int
	now      func() time.Time
}

// NewStandardCalculator builds a calculator with the given working-day
// bounds.
func NewStandardCalculator(daysFrom, daysTo int) *StandardCalculator {
	if daysFrom < 1 {
		daysFrom = 1
	}
	if daysTo < daysFrom {
		daysTo = daysFrom
	}
	return &StandardCalculator{daysFrom: daysFrom, daysTo: daysTo, now: time.Now}
}

// Default returns the standard window anchored at today.
func (c *StandardCalculator) Default() DTD {
	today := c.now().UTC().Truncate(24 * time.Hour)
	return DTD{
		DateFrom:        addWorkingDays(today, c.daysFrom),
		DateTo:          addWorkingDays(today, c.daysTo),
		WorkingDaysFrom: c.daysFrom,
		WorkingDaysTo:   c.daysTo,
	}
}

// Calculate returns the estimate for one variant. The standard policy
// does not vary by SKU or qty.
func (c *StandardCalculator) Calculate(ctx context.Context, simpleSKU string, qty int) (DTD, error) {
	if qty < 1 {
		return DTD{}, apperr.Incorrect("dtd qty must be at least 1")
	}
	return c.Default(), nil
}

// addWorkingDays walks n working days forward, skipping Saturdays and
// Sundays.
func addWorkingDays(from time.Time, n int) time.Time {
	d := from
	for n > 0 {
		d = d.AddDate(0, 0, 1)
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			n--
		}
	}
	return d
}

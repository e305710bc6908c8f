package purchase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"storefront-api/internal/apperr"
)

func TestStandardCalculatorSkipsWeekends(t *testing.T) {
	c := NewStandardCalculator(2, 5)
	// Friday 2025-06-06.
	c.now = func() time.Time { return time.Date(2025, 6, 6, 15, 0, 0, 0, time.UTC) }

	dtd := c.Default()
	// Two working days from Friday land on Tuesday, five on Friday.
	require.Equal(t, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), dtd.DateFrom)
	require.Equal(t, time.Date(2025, 6, 13, 0, 0, 0, 0, time.UTC), dtd.DateTo)
	require.Equal(t, 2, dtd.WorkingDaysFrom)
	require.Equal(t, 5, dtd.WorkingDaysTo)
	require.NoError(t, dtd.Validate())
}

func TestStandardCalculatorMidweek(t *testing.T) {
	c := NewStandardCalculator(1, 3)
	// Monday 2025-06-02.
	c.now = func() time.Time { return time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC) }

	dtd := c.Default()
	require.Equal(t, time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC), dtd.DateFrom)
	require.Equal(t, time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC), dtd.DateTo)
}

func TestStandardCalculatorRejectsZeroQty(t *testing.T) {
	c := NewStandardCalculator(2, 5)

	_, err := c.Calculate(context.Background(), "A-M", 0)
	require.True(t, apperr.IsKind(err, apperr.KindIncorrectInput))

	dtd, err := c.Calculate(context.Background(), "A-M", 3)
	require.NoError(t, err)
	require.NoError(t, dtd.Validate())
}

func TestNewStandardCalculatorNormalizesBounds(t *testing.T) {
	c := NewStandardCalculator(0, 0)
	dtd := c.Default()
	require.Equal(t, 1, dtd.WorkingDaysFrom)
	require.Equal(t, 1, dtd.WorkingDaysTo)
}

func TestDTDValidate(t *testing.T) {
	bad := DTD{WorkingDaysFrom: 3, WorkingDaysTo: 2,
		DateFrom: time.Now(), DateTo: time.Now().AddDate(0, 0, 1)}
	require.True(t, apperr.IsKind(bad.Validate(), apperr.KindIncorrectInput))

	inverted := DTD{WorkingDaysFrom: 1, WorkingDaysTo: 2,
		DateFrom: time.Now().AddDate(0, 0, 2), DateTo: time.Now()}
	require.True(t, apperr.IsKind(inverted.Validate(), apperr.KindIncorrectInput))
}

package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestValidateSKU(t *testing.T) {
	tests := []struct {
		name string
		sku  string
		ok   bool
	}{
		{"simple", "SHOE1", true},
		{"with separators", "SHOE-1_a.b", true},
		{"empty", "", false},
		{"leading dash", "-SHOE1", false},
		{"spaces", "SHOE 1", false},
		{"too long", strings.Repeat("A", 70), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSKU(tt.sku, "config_sku")
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				var ve *ValidationError
				require.ErrorAs(t, err, &ve)
				require.Equal(t, "config_sku", ve.Field)
			}
		})
	}
}

func TestValidatePageDescriptor(t *testing.T) {
	require.NoError(t, ValidatePageDescriptor("about-us"))
	require.Error(t, ValidatePageDescriptor(""))
	require.Error(t, ValidatePageDescriptor("About-Us"))
	require.Error(t, ValidatePageDescriptor("-about"))
}

func TestValidateQty(t *testing.T) {
	require.NoError(t, ValidateQty(1, "qty"))
	require.NoError(t, ValidateQty(1000, "qty"))
	require.Error(t, ValidateQty(0, "qty"))
	require.Error(t, ValidateQty(-1, "qty"))
	require.Error(t, ValidateQty(1001, "qty"))
}

func TestValidatePagination(t *testing.T) {
	require.NoError(t, ValidatePagination(1, 20))
	require.NoError(t, ValidatePagination(0, 0))
	require.Error(t, ValidatePagination(-1, 20))
	require.Error(t, ValidatePagination(1, -1))
	require.Error(t, ValidatePagination(1, 501))
}

func TestValidateTrackingAction(t *testing.T) {
	for _, action := range []string{"view", "click", "visit"} {
		require.NoError(t, ValidateTrackingAction(action))
	}
	require.Error(t, ValidateTrackingAction(""))
	require.Error(t, ValidateTrackingAction("hover"))
}

func TestSanitizeString(t *testing.T) {
	require.Equal(t, "SHOE1", SanitizeString("  SHOE1\x00 "))
	require.Equal(t, "a\tb", SanitizeString("a\tb"))
	require.Equal(t, "", SanitizeString(" \x1b "))
}

func TestValidateTimeString(t *testing.T) {
	ts, err := ValidateTimeString("2025-06-02T10:00:00Z")
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC), ts)

	_, err = ValidateTimeString("")
	require.Error(t, err)
	_, err = ValidateTimeString("02/06/2025")
	require.Error(t, err)
}

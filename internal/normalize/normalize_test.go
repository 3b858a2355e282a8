package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNumber(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want *float64
	}{
		{"empty", "", nil},
		{"whitespace", "   ", nil},
		{"not available marker", "ND", nil},
		{"not available lowercase", "nd", nil},
		{"plain integer", "123", f(123)},
		{"thousands separator", "1.234", f(1234)},
		{"decimal comma", "0,65", f(0.65)},
		{"thousands and decimals", "1.234.567,89", f(1234567.89)},
		{"garbage", "abc", nil},
		{"mixed garbage", "12a", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseNumber(tt.raw)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		})
	}
}

func TestParseDateTime(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want *time.Time
	}{
		{"empty", "", nil},
		{"date only", "05/03/2024", ts(2024, 3, 5, 0, 0, 0)},
		{"date and time", "05/03/2024 14:30", ts(2024, 3, 5, 14, 30, 0)},
		{"date time seconds", "5/3/2024 14:30:45", ts(2024, 3, 5, 14, 30, 45)},
		{"iso fallback", "2024-03-05", ts(2024, 3, 5, 0, 0, 0)},
		{"month out of range", "05/13/2024", nil},
		{"garbage", "not a date", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDateTime(tt.raw)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, tt.want.Equal(*got), "want %v got %v", tt.want, got)
		})
	}
}

func TestNormalizePercent(t *testing.T) {
	assert.Nil(t, NormalizePercent(nil))

	// 65 means 65 percent; 0.65 is already a fraction.
	assert.InDelta(t, 0.65, *NormalizePercent(f(65)), 1e-9)
	assert.InDelta(t, 0.65, *NormalizePercent(f(0.65)), 1e-9)

	// 1.5 sits exactly on the threshold and stays untouched.
	assert.InDelta(t, 1.5, *NormalizePercent(f(1.5)), 1e-9)
	assert.InDelta(t, 0.0151, *NormalizePercent(f(1.51)), 1e-9)
}

func TestBuildVenueName(t *testing.T) {
	assert.Equal(t, "BAR SPORT", BuildVenueName("  BAR   SPORT ", "VIA ROMA 1", "MILANO", "MI"))
	assert.Equal(t, "VIA ROMA 1 - MILANO - MI", BuildVenueName("", "VIA ROMA 1", "MILANO", "MI"))
	assert.Equal(t, "VIA ROMA 1 - MILANO - MI", BuildVenueName("", "VIA VIA ROMA 1", "MILANO", "MI"))
	assert.Equal(t, "MILANO", BuildVenueName("", "", "MILANO", ""))
	assert.Equal(t, UnnamedVenue, BuildVenueName("", "", "", ""))
}

func TestDedupeAddressWords(t *testing.T) {
	assert.Equal(t, "VIA ROMA 1", DedupeAddressWords("VIA VIA ROMA 1"))
	assert.Equal(t, "Via Roma", DedupeAddressWords("Via via Roma"))
	assert.Equal(t, "", DedupeAddressWords(""))
}

func TestNormalizeMAC(t *testing.T) {
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", NormalizeMAC(" aa:bb:cc:dd:ee:ff "))
	assert.Equal(t, "", NormalizeMAC("  "))
}

func f(v float64) *float64 { return &v }

func ts(y int, m time.Month, d, hh, mm, ss int) *time.Time {
	t := time.Date(y, m, d, hh, mm, ss, 0, time.UTC)
	return &t
}

package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestamp_Conversions(t *testing.T) {
	ts := FromSeconds(1_700_000_000)
	assert.Equal(t, uint64(1_700_000_000), ts.Seconds())
	assert.Equal(t, uint64(1_700_000_000_000_000), ts.Micros())
	assert.Equal(t, ts, FromTime(ts.Time()))
	assert.Equal(t, "1700000000000000", ts.String())

	// Seconds truncates sub-second precision.
	assert.Equal(t, uint64(1), FromMicros(1_999_999).Seconds())
}

func TestTimestamp_Arithmetic(t *testing.T) {
	ts := FromSeconds(100)

	assert.Equal(t, FromSeconds(101), ts.Add(time.Second))
	assert.Equal(t, FromMicros(100_000_001), ts.Add(time.Microsecond))
	assert.Equal(t, FromSeconds(99), ts.Sub(time.Second))
	assert.Equal(t, Timestamp(0), ts.Sub(time.Hour), "Sub saturates at zero")
}

func TestParseHexSeconds(t *testing.T) {
	tests := []struct {
		in      string
		want    Timestamp
		wantErr bool
	}{
		{in: "0x0", want: 0},
		{in: "0x10", want: FromSeconds(16)},
		{in: "ff", want: FromSeconds(255)},
		{in: "earliest", want: 0},
		{in: "0xzz", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseHexSeconds(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("latest", func(t *testing.T) {
		before := Now()
		got, err := ParseHexSeconds("latest")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got, before)
	})
}

func TestMockClock(t *testing.T) {
	clock := NewMockClock(FromSeconds(10))
	assert.Equal(t, FromSeconds(10), clock.Now())

	clock.Advance(5 * time.Second)
	assert.Equal(t, FromSeconds(15), clock.Now())

	clock.Set(FromSeconds(1))
	assert.Equal(t, FromSeconds(1), clock.Now())
}

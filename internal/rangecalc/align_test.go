package rangecalc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlignTick(t *testing.T) {
	tests := []struct {
		name    string
		tick    int32
		spacing int32
		want    int32
	}{
		{name: "positive rounds down", tick: 27, spacing: 10, want: 20},
		{name: "negative rounds away from zero", tick: -27, spacing: 10, want: -30},
		{name: "positive multiple", tick: 60, spacing: 60, want: 60},
		{name: "negative multiple", tick: -60, spacing: 60, want: -60},
		{name: "zero", tick: 0, spacing: 200, want: 0},
		{name: "minus one", tick: -1, spacing: 200, want: -200},
		{name: "spacing one", tick: -887272, spacing: 1, want: -887272},
		{name: "min tick spacing 60", tick: -887272, spacing: 60, want: -887280},
		{name: "max tick spacing 60", tick: 887272, spacing: 60, want: 887220},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AlignTick(tt.tick, tt.spacing))
		})
	}
}

func TestAlignTickFloorLaw(t *testing.T) {
	for _, spacing := range []int32{1, 10, 60, 200} {
		for tick := int32(-1000); tick <= 1000; tick++ {
			got := AlignTick(tick, spacing)
			require.LessOrEqual(t, got, tick)
			require.Zero(t, got%spacing, "tick %d spacing %d", tick, spacing)
			require.Greater(t, got+spacing, tick, "not the greatest multiple: tick %d spacing %d", tick, spacing)
		}
	}
}

package valon

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffectivePDF(t *testing.T) {
	cases := []struct {
		name string
		ref  uint32
		opts Options
		want float64
	}{
		{"plain", 10_000_000, Options{Divisor: 1}, 10},
		{"double", 10_000_000, Options{Double: true, Divisor: 1}, 20},
		{"half", 10_000_000, Options{Half: true, Divisor: 1}, 5},
		{"divisor", 10_000_000, Options{Divisor: 4}, 2.5},
		{"zero divisor ignored", 10_000_000, Options{}, 10},
		{"double and half cancel", 10_000_000, Options{Double: true, Half: true, Divisor: 1}, 10},
		{"double, half, divisor", 100_000_000, Options{Double: true, Half: true, Divisor: 8}, 12.5},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, EffectivePDF(c.ref, c.opts))
		})
	}
}

func TestRegistersToFrequency(t *testing.T) {
	assert.Equal(t, 2405.0, RegistersToFrequency(FrequencyRegisters{NCount: 240, Frac: 1, Mod: 2, Divider: 1}, 10))
	assert.Equal(t, 150.0, RegistersToFrequency(FrequencyRegisters{NCount: 240, Frac: 0, Mod: 1, Divider: 16}, 10))
	// mod == 0 и divider == 0 не должны давать NaN/Inf
	assert.Equal(t, 2400.0, RegistersToFrequency(FrequencyRegisters{NCount: 240, Frac: 3}, 10))
}

func TestFrequencyToRegisters_ExactGridPoint(t *testing.T) {
	f := FrequencyToRegisters(2400, 10, VCORange{Min: 2300, Max: 4800}, 100)
	assert.Equal(t, FrequencyRegisters{NCount: 24, Frac: 0, Mod: 1, Divider: 1}, f)
}

func TestFrequencyToRegisters_DividerSelection(t *testing.T) {
	vco := VCORange{Min: 2200, Max: 4400}
	cases := []struct {
		freq float64
		div  uint32
	}{
		{4000, 1},
		{2201, 1},
		{2200, 2},
		{1500, 2},
		{1000, 4},
		{300, 8},
		{150, 16},
	}
	for _, c := range cases {
		f := FrequencyToRegisters(c.freq, 1, vco, 10)
		assert.Equal(t, c.div, f.Divider, "%v МГц", c.freq)
		assert.False(t, f.Clamped)
		assert.Greater(t, f.VCOFrequency(c.freq), float64(vco.Min))
	}
}

func TestFrequencyToRegisters_ClampsDivider(t *testing.T) {
	f := FrequencyToRegisters(100, 10, VCORange{Min: 2300, Max: 4800}, 10)
	assert.Equal(t, uint32(MaxOutputDivider), f.Divider)
	assert.True(t, f.Clamped)
	assert.Equal(t, uint32(160), f.NCount)
	assert.Less(t, f.VCOFrequency(100), 2300.0)
}

func TestFrequencyToRegisters_ReducesFraction(t *testing.T) {
	// остаток 5 МГц при шаге 0.5: 10/20 -> 5/10
	f := FrequencyToRegisters(2405, 0.5, VCORange{Min: 2200, Max: 4400}, 10)
	assert.Equal(t, FrequencyRegisters{NCount: 240, Frac: 5, Mod: 10, Divider: 1}, f)
}

func TestFrequencyToRegisters_CarriesRoundedFraction(t *testing.T) {
	// 9.6 МГц остатка при шаге 1 округляется до frac == mod
	f := FrequencyToRegisters(2409.6, 1, VCORange{Min: 2200, Max: 4400}, 10)
	assert.Equal(t, FrequencyRegisters{NCount: 241, Frac: 0, Mod: 1, Divider: 1}, f)
}

func TestFrequencyToRegisters_RoundTripWithinSpacing(t *testing.T) {
	vco := VCORange{Min: 2200, Max: 4400}
	for _, spacing := range []float64{0.1, 0.25, 1, 10} {
		for _, freq := range []float64{137.3, 500, 999.99, 1234.5678, 2200.05, 3000.3, 4399.9} {
			f := FrequencyToRegisters(freq, spacing, vco, 10)
			require.NoError(t, f.fitsFields())
			got := RegistersToFrequency(f, 10)
			assert.LessOrEqual(t, math.Abs(got-freq), spacing, "%v МГц, шаг %v", freq, spacing)
			assert.Less(t, f.Frac, f.Mod)
		}
	}
}

func TestFrequencyToRegisters_OutOfRangeIsRejected(t *testing.T) {
	vco := VCORange{Min: 2200, Max: 4400}

	// ncount = 2^32+240: при обрезке до uint32 вышло бы 240
	f := FrequencyToRegisters((1<<32+240)*10, 10, vco, 10)
	assert.Greater(t, f.NCount, R0NCount.max())
	assert.ErrorIs(t, f.fitsFields(), ErrInvalidArgument)

	f = FrequencyToRegisters(2400.5, 1e-12, vco, 10)
	assert.Greater(t, f.Mod, R1Mod.max())
	assert.ErrorIs(t, f.fitsFields(), ErrInvalidArgument)

	assert.Equal(t, R0NCount.max()+1, saturate(math.Inf(1), R0NCount))
	assert.Equal(t, R1Mod.max()+1, saturate(math.NaN(), R1Mod))
	assert.Equal(t, uint32(4095), saturate(4095, R1Mod))
}

func TestReduceFraction(t *testing.T) {
	cases := []struct{ frac, mod, wantFrac, wantMod uint32 }{
		{3072, 4096, 3, 4},
		{9, 12, 9, 12},
		{2, 4, 1, 2},
		{6, 10, 3, 5},
		{0, 10, 0, 10},
		{5, 0, 5, 0},
	}
	for _, c := range cases {
		frac, mod := ReduceFraction(c.frac, c.mod)
		assert.Equal(t, c.wantFrac, frac, "%d/%d", c.frac, c.mod)
		assert.Equal(t, c.wantMod, mod, "%d/%d", c.frac, c.mod)
	}
}

func TestFitsFields(t *testing.T) {
	assert.NoError(t, FrequencyRegisters{NCount: 65535, Mod: 4095}.fitsFields())
	assert.ErrorIs(t, FrequencyRegisters{NCount: 65536, Mod: 1}.fitsFields(), ErrInvalidArgument)
	assert.ErrorIs(t, FrequencyRegisters{NCount: 1, Mod: 4096}.fitsFields(), ErrInvalidArgument)
}

func TestOptionsValidate(t *testing.T) {
	assert.NoError(t, Options{Divisor: 1}.Validate())
	assert.NoError(t, Options{Divisor: 1023}.Validate())
	assert.ErrorIs(t, Options{}.Validate(), ErrInvalidArgument)
	assert.ErrorIs(t, Options{Divisor: 1024}.Validate(), ErrInvalidArgument)
}

package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/momentics/valonsynth/internal/config"
	"github.com/momentics/valonsynth/pkg/valon"
	"github.com/momentics/valonsynth/pkg/valon/valontest"
)

// useInstrument подменяет транспорт утилиты программной моделью прибора.
func useInstrument(t *testing.T, in *valontest.Instrument) *config.SynthConfig {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("VALON_CONFIG", "")

	var seen config.SynthConfig
	prev := openSynth
	openSynth = func(cfg config.SynthConfig, logger *zap.Logger) (*valon.Synth, error) {
		seen = cfg
		return valon.New(in.Opener(), valon.WithLogger(logger)), nil
	}
	t.Cleanup(func() { openSynth = prev })
	return &seen
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestFreqCommand(t *testing.T) {
	in := valontest.NewInstrument()
	useInstrument(t, in)

	out, err := run(t, "freq")
	require.NoError(t, err)
	assert.Equal(t, "A: 2400.000000 MHz\n", out)

	out, err = run(t, "freq", "1500", "--spacing", "1", "-c", "B")
	require.NoError(t, err)
	assert.Equal(t, "OK\nB: 1500.000000 MHz\n", out)

	f, _ := in.Registers[1].FrequencyRegisters()
	assert.Equal(t, uint32(2), f.Divider)
	assert.Equal(t, uint32(240), valon.R0NCount.Get(in.Registers[0][0]), "канал A не тронут")
}

func TestFreqCommand_DefaultSpacingFromConfig(t *testing.T) {
	in := valontest.NewInstrument()
	useInstrument(t, in)
	t.Setenv("VALON_SYNTH_CHANNELSPACING", "2.5")

	_, err := run(t, "freq", "2402.5")
	require.NoError(t, err)

	f, _ := in.Registers[0].FrequencyRegisters()
	assert.Equal(t, valon.FrequencyRegisters{NCount: 240, Frac: 1, Mod: 4, Divider: 1}, f)
}

func TestRFLevelCommand(t *testing.T) {
	in := valontest.NewInstrument()
	useInstrument(t, in)

	out, err := run(t, "rflevel", "5")
	require.NoError(t, err)
	assert.Equal(t, "OK\n", out)
	assert.Equal(t, 5, in.Registers[0].RFLevel())

	_, err = run(t, "rflevel", "3")
	assert.ErrorIs(t, err, valon.ErrInvalidArgument)

	out, err = run(t, "rflevel")
	require.NoError(t, err)
	assert.Equal(t, "A: 5 dBm\n", out)
}

func TestOptionsCommand_ChangesOnlyGivenFlags(t *testing.T) {
	in := valontest.NewInstrument()
	in.Registers[0][2] = valon.R2RefDivider.Set(in.Registers[0][2], 5)
	useInstrument(t, in)

	_, err := run(t, "options", "--low-spur")
	require.NoError(t, err)
	assert.Equal(t, valon.Options{Divisor: 5, LowSpur: true}, in.Registers[0].Options())

	out, err := run(t, "options")
	require.NoError(t, err)
	assert.Equal(t, "A: double=false half=false divisor=5 low_spur=true\n", out)
}

func TestLabelCommand_Nack(t *testing.T) {
	in := valontest.NewInstrument()
	in.NackNext = true
	useInstrument(t, in)

	_, err := run(t, "label", "bench")
	assert.ErrorIs(t, err, errNack)
}

func TestReadOnlyCommands(t *testing.T) {
	in := valontest.NewInstrument()
	in.Locked[1] = false
	in.SetLabel(valon.A, "LO1")
	useInstrument(t, in)

	out, err := run(t, "lock", "-c", "B")
	require.NoError(t, err)
	assert.Equal(t, "B: unlocked\n", out)

	out, err = run(t, "label")
	require.NoError(t, err)
	assert.Equal(t, "LO1\n", out)

	out, err = run(t, "ref")
	require.NoError(t, err)
	assert.Equal(t, "10000000 Hz\n", out)

	out, err = run(t, "vco")
	require.NoError(t, err)
	assert.Equal(t, "A: 2200..4400 MHz\n", out)

	out, err = run(t, "registers")
	require.NoError(t, err)
	assert.Contains(t, out, "ncount=240")

	out, err = run(t, "status")
	require.NoError(t, err)
	var st valon.Status
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, "LO1", st.Label)
}

func TestWriteCommands(t *testing.T) {
	in := valontest.NewInstrument()
	useInstrument(t, in)

	_, err := run(t, "refselect", "external")
	require.NoError(t, err)
	assert.True(t, in.External)

	_, err = run(t, "refselect", "sideways")
	assert.Error(t, err)

	_, err = run(t, "vco", "2300", "4800", "-c", "B")
	require.NoError(t, err)
	assert.Equal(t, valon.VCORange{Min: 2300, Max: 4800}, in.VCO[1])

	_, err = run(t, "vco", "2300")
	assert.Error(t, err)

	_, err = run(t, "ref", "100000000")
	require.NoError(t, err)
	assert.Equal(t, uint32(100_000_000), in.Reference)

	_, err = run(t, "flash")
	require.NoError(t, err)
	assert.Equal(t, 1, in.Flashes)
}

func TestConnectionFlags(t *testing.T) {
	in := valontest.NewInstrument()
	seen := useInstrument(t, in)

	_, err := run(t, "ref", "--port", "/dev/ttyACM3", "--baud", "19200")
	require.NoError(t, err)
	assert.Equal(t, config.TransportSerial, seen.Transport)
	assert.Equal(t, "/dev/ttyACM3", seen.Serial.Port)
	assert.Equal(t, 19200, seen.Serial.BaudRate)
	assert.Equal(t, 2*time.Second, seen.Serial.ReadTimeout)

	_, err = run(t, "ref", "--url", "ws://bridge.local/valon", "--timeout", "0")
	require.NoError(t, err)
	assert.Equal(t, config.TransportWebSocket, seen.Transport)
	assert.Equal(t, "ws://bridge.local/valon", seen.WebSocket.URL)
	assert.Zero(t, seen.Serial.ReadTimeout)

	_, err = run(t, "ref", "-c", "C")
	assert.ErrorIs(t, err, valon.ErrInvalidArgument)
}

package valon_test

import (
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/valonsynth/pkg/valon"
	"github.com/momentics/valonsynth/pkg/valon/valontest"
)

func newTestPool(instruments map[string]*valontest.Instrument) *valon.SynthPool {
	return valon.NewSynthPool(func(path string) (valon.Opener, error) {
		if path == "/dev/forbidden" {
			return nil, fmt.Errorf("%w: порт %s", valon.ErrInvalidArgument, path)
		}
		in, ok := instruments[path]
		if !ok {
			in = valontest.NewInstrument()
			in.OpenErr = errors.New("нет устройства " + path)
		}
		return in.Opener(), nil
	})
}

func TestSynthPool_ReusesSynthPerPort(t *testing.T) {
	usb0, usb1 := valontest.NewInstrument(), valontest.NewInstrument()
	pool := newTestPool(map[string]*valontest.Instrument{"/dev/ttyUSB0": usb0, "/dev/ttyUSB1": usb1})
	defer pool.CloseAll()

	a, err := pool.Get("/dev/ttyUSB0")
	require.NoError(t, err)
	again, err := pool.Get("/dev/ttyUSB0")
	require.NoError(t, err)
	assert.Same(t, a, again)
	assert.Equal(t, 1, usb0.Opens, "опознание выполняется один раз")

	b, err := pool.Get("/dev/ttyUSB1")
	require.NoError(t, err)
	assert.NotSame(t, a, b)

	ports := pool.Ports()
	sort.Strings(ports)
	assert.Equal(t, []string{"/dev/ttyUSB0", "/dev/ttyUSB1"}, ports)
}

func TestSynthPool_FailedProbeIsNotCached(t *testing.T) {
	pool := newTestPool(map[string]*valontest.Instrument{})

	_, err := pool.Get("/dev/ttyUSB9")
	require.Error(t, err)
	assert.ErrorIs(t, err, valon.ErrTransport)
	assert.Empty(t, pool.Ports())

	_, err = pool.Get("")
	assert.Error(t, err)
}

func TestSynthPool_RejectedTargetIsNotCached(t *testing.T) {
	pool := newTestPool(map[string]*valontest.Instrument{})

	_, err := pool.Get("/dev/forbidden")
	assert.ErrorIs(t, err, valon.ErrInvalidArgument)
	assert.Empty(t, pool.Ports())
}

func TestSynthPool_CloseAll(t *testing.T) {
	in := valontest.NewInstrument()
	pool := newTestPool(map[string]*valontest.Instrument{"/dev/ttyUSB0": in})

	s, err := pool.Get("/dev/ttyUSB0")
	require.NoError(t, err)
	pool.CloseAll()

	_, err = s.GetReference()
	assert.ErrorIs(t, err, valon.ErrClosed)
	assert.Empty(t, pool.Ports())

	fresh, err := pool.Get("/dev/ttyUSB0")
	require.NoError(t, err)
	assert.NotSame(t, s, fresh)
}

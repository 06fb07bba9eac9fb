package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "valon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, TransportSerial, cfg.Synth.Transport)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Synth.Serial.Port)
	assert.Equal(t, 9600, cfg.Synth.Serial.BaudRate)
	assert.Zero(t, cfg.Synth.Serial.ReadTimeout)
	assert.Equal(t, 10.0, cfg.Synth.ChannelSpacing)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 5*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.True(t, cfg.Metrics.Enable)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.Logging.File.Filename)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
synth:
  transport: websocket
  websocket:
    url: ws://bridge.local/valon
    username: lab
  serial:
    readTimeout: 500ms
  channelSpacing: 0.25
http:
  addr: 127.0.0.1:9090
logging:
  level: debug
  format: console
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, TransportWebSocket, cfg.Synth.Transport)
	assert.Equal(t, "ws://bridge.local/valon", cfg.Synth.WebSocket.URL)
	assert.Equal(t, "lab", cfg.Synth.WebSocket.Username)
	assert.Equal(t, 500*time.Millisecond, cfg.Synth.Serial.ReadTimeout)
	assert.Equal(t, 0.25, cfg.Synth.ChannelSpacing)
	assert.Equal(t, "127.0.0.1:9090", cfg.HTTP.Addr)
	assert.Equal(t, "console", cfg.Logging.Format)
	// значения, не указанные в файле, берутся по умолчанию
	assert.Equal(t, 9600, cfg.Synth.Serial.BaudRate)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "synth:\n  serial:\n    port: /dev/ttyUSB3\n")
	t.Setenv("VALON_SYNTH_SERIAL_PORT", "/dev/ttyACM0")
	t.Setenv("VALON_SYNTH_SERIAL_BAUD", "19200")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM0", cfg.Synth.Serial.Port)
	assert.Equal(t, 19200, cfg.Synth.Serial.BaudRate)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"transport":      "synth:\n  transport: carrier-pigeon\n",
		"websocket url":  "synth:\n  transport: websocket\n",
		"spacing":        "synth:\n  channelSpacing: 0\n",
		"baud":           "synth:\n  serial:\n    baud: -1\n",
		"malformed yaml": "synth: [\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

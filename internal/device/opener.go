// Package device собирает транспорт синтезатора из конфигурации.
package device

import (
	"fmt"

	"github.com/momentics/valonsynth/internal/config"
	"github.com/momentics/valonsynth/internal/util"
	"github.com/momentics/valonsynth/pkg/valon"
)

// NewOpenerFactory возвращает фабрику транспорта для выбранного в cfg способа связи.
// Для serial аргумент фабрики - путь к порту. Для websocket принимается только
// URL моста из cfg: учетные данные моста не уходят на адрес, пришедший извне.
// Пустой аргумент заменяется значением из cfg.
func NewOpenerFactory(cfg config.SynthConfig) (valon.OpenerFactory, error) {
	switch cfg.Transport {
	case config.TransportSerial, "":
		pc := util.PortConfig{BaudRate: cfg.Serial.BaudRate, ReadTimeout: cfg.Serial.ReadTimeout}
		return func(path string) (valon.Opener, error) {
			if path == "" {
				path = cfg.Serial.Port
			}
			return func() (util.SerialPortInterface, error) {
				return util.OpenPort(path, pc)
			}, nil
		}, nil

	case config.TransportWebSocket:
		return func(url string) (valon.Opener, error) {
			if url != "" && url != cfg.WebSocket.URL {
				return nil, fmt.Errorf("%w: мост %q не совпадает с настроенным", valon.ErrInvalidArgument, url)
			}
			wc := util.WebSocketConfig{
				URL:              cfg.WebSocket.URL,
				Username:         cfg.WebSocket.Username,
				Password:         cfg.WebSocket.Password,
				SkipSSLVerify:    cfg.WebSocket.SkipSSLVerify,
				HandshakeTimeout: cfg.WebSocket.Timeout,
				ReadTimeout:      cfg.Serial.ReadTimeout,
			}
			return func() (util.SerialPortInterface, error) {
				return util.DialWebSocket(wc)
			}, nil
		}, nil
	}
	return nil, fmt.Errorf("неизвестный транспорт %q", cfg.Transport)
}

// DefaultTarget - порт или URL, с которым работать, если вызывающий его не указал.
func DefaultTarget(cfg config.SynthConfig) string {
	if cfg.Transport == config.TransportWebSocket {
		return cfg.WebSocket.URL
	}
	return cfg.Serial.Port
}

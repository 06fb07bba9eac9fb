package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Транспорты до прибора.
const (
	TransportSerial    = "serial"
	TransportWebSocket = "websocket"
)

// SerialConfig - параметры последовательного порта. Формат кадра всегда 8N1.
type SerialConfig struct {
	Port        string        `mapstructure:"port"`
	BaudRate    int           `mapstructure:"baud"`
	ReadTimeout time.Duration `mapstructure:"readTimeout"`
}

// WebSocketConfig - мост serial-over-websocket.
type WebSocketConfig struct {
	URL           string        `mapstructure:"url"`
	Username      string        `mapstructure:"username"`
	Password      string        `mapstructure:"password"`
	SkipSSLVerify bool          `mapstructure:"skipSSLVerify"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// SynthConfig - параметры драйвера.
type SynthConfig struct {
	Transport      string          `mapstructure:"transport"`
	Serial         SerialConfig    `mapstructure:"serial"`
	WebSocket      WebSocketConfig `mapstructure:"websocket"`
	ChannelSpacing float64         `mapstructure:"channelSpacing"`
}

// HTTPConfig - HTTP API сервера.
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"readTimeout"`
	WriteTimeout    time.Duration `mapstructure:"writeTimeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
}

type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Path   string `mapstructure:"path"`
}

// LumberjackConfig - ротация файла журнала. Пустое имя файла - только stdout.
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// Config - корневая структура конфигурации.
type Config struct {
	Synth   SynthConfig   `mapstructure:"synth"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// Load читает конфигурацию из файла (YAML/TOML/JSON) и переменных окружения
// с префиксом VALON_ (synth.serial.port -> VALON_SYNTH_SERIAL_PORT).
// Если path пуст, берется VALON_CONFIG, затем ./valon.yaml или ./configs/valon.yaml;
// отсутствие файла не ошибка.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("VALON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = v.GetString("config")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.SetConfigName("valon")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("чтение конфигурации: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("разбор конфигурации: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет согласованность значений после слияния источников.
func (c *Config) Validate() error {
	switch c.Synth.Transport {
	case TransportSerial:
		if c.Synth.Serial.Port == "" {
			return errors.New("config: не задан synth.serial.port")
		}
		if c.Synth.Serial.BaudRate <= 0 {
			return fmt.Errorf("config: некорректная скорость порта %d", c.Synth.Serial.BaudRate)
		}
	case TransportWebSocket:
		if c.Synth.WebSocket.URL == "" {
			return errors.New("config: не задан synth.websocket.url")
		}
	default:
		return fmt.Errorf("config: неизвестный транспорт %q", c.Synth.Transport)
	}
	if !(c.Synth.ChannelSpacing > 0) {
		return fmt.Errorf("config: шаг сетки %v МГц", c.Synth.ChannelSpacing)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("synth.transport", TransportSerial)
	v.SetDefault("synth.serial.port", "/dev/ttyUSB0")
	v.SetDefault("synth.serial.baud", 9600)
	v.SetDefault("synth.serial.readTimeout", "0s")
	v.SetDefault("synth.websocket.url", "")
	v.SetDefault("synth.websocket.username", "")
	v.SetDefault("synth.websocket.password", "")
	v.SetDefault("synth.websocket.skipSSLVerify", false)
	v.SetDefault("synth.websocket.timeout", "10s")
	v.SetDefault("synth.channelSpacing", 10.0)

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.readTimeout", "5s")
	v.SetDefault("http.writeTimeout", "10s")
	v.SetDefault("http.shutdownTimeout", "5s")

	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file.filename", "")
	v.SetDefault("logging.file.maxSize", 50)
	v.SetDefault("logging.file.maxBackups", 5)
	v.SetDefault("logging.file.maxAge", 14)
	v.SetDefault("logging.file.compress", true)
}

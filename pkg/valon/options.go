package valon

import "go.uber.org/zap"

// Config holds the driver configuration.
type Config struct {
	// Logger получает отладочные записи транзакций и предупреждения
	Logger *zap.Logger

	// Observer получает итоги транзакций (optional)
	Observer Observer
}

func defaultConfig() Config {
	return Config{Logger: zap.NewNop()}
}

// Option is a functional option for configuring Conn and Synth.
type Option func(*Config)

// WithLogger задает логгер.
//
// Example:
//
//	synth := valon.New(opener, valon.WithLogger(logger.Named("valon")))
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithObserver подключает сбор метрик по транзакциям.
func WithObserver(o Observer) Option {
	return func(c *Config) {
		c.Observer = o
	}
}

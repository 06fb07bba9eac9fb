package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/momentics/valonsynth/internal/config"
	"github.com/momentics/valonsynth/internal/device"
	"github.com/momentics/valonsynth/internal/logging"
	"github.com/momentics/valonsynth/pkg/valon"
)

// errNack - прибор ответил NACK; команда завершается с ненулевым кодом.
var errNack = errors.New("устройство отклонило команду (NACK)")

// openSynth создает синтезатор по итоговой конфигурации.
var openSynth = func(cfg config.SynthConfig, logger *zap.Logger) (*valon.Synth, error) {
	factory, err := device.NewOpenerFactory(cfg)
	if err != nil {
		return nil, err
	}
	open, err := factory("")
	if err != nil {
		return nil, err
	}
	return valon.New(open, valon.WithLogger(logger.Named("valon"))), nil
}

// cli хранит флаги и состояние одного запуска.
type cli struct {
	configPath string

	// Serial connection flags
	portName    string
	baudRate    int
	readTimeout time.Duration

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	channelName string
	logLevel    string

	cfg     *config.Config
	synth   *valon.Synth
	channel valon.Channel
	logger  *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "valonctl",
		Short: "Управление синтезатором Valon 5007",
		Long: `valonctl - утилита командной строки для двухканального синтезатора Valon 5007.

Без значения команда читает параметр, со значением - записывает его
(чтение-изменение-запись банка регистров канала).

Подключение:
  Serial:    --port /dev/ttyUSB0 [--baud 9600] [--timeout 2s]
  WebSocket: --url ws://host/path [--username user]

Пароль websocket-моста берется из VALON_PASSWORD или запрашивается
интерактивно; флага --password нет, чтобы он не попадал в историю shell.`,
		Version:           "1.0.0",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.connect,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.synth != nil {
				c.synth.Close()
			}
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "Файл конфигурации (YAML/TOML/JSON)")

	pf.StringVarP(&c.portName, "port", "p", "", "Последовательный порт")
	pf.IntVarP(&c.baudRate, "baud", "b", 9600, "Скорость порта (только serial)")
	pf.DurationVar(&c.readTimeout, "timeout", 2*time.Second, "Таймаут ожидания ответа, 0 - без таймаута")

	pf.StringVarP(&c.wsURL, "url", "u", "", "URL websocket-моста (ws:// или wss://)")
	pf.StringVar(&c.wsUsername, "username", "", "Имя пользователя для HTTP Basic auth")
	pf.BoolVar(&c.wsNoSSLVerify, "no-ssl-verify", false, "Не проверять TLS-сертификат (только wss://)")

	pf.StringVarP(&c.channelName, "channel", "c", "A", "Канал: A или B")
	pf.StringVar(&c.logLevel, "log-level", "", "Уровень журнала (debug, info, warn, error)")

	root.AddCommand(
		c.freqCmd(),
		c.refCmd(),
		c.rfLevelCmd(),
		c.optionsCmd(),
		c.refSelectCmd(),
		c.vcoCmd(),
		c.lockCmd(),
		c.labelCmd(),
		c.flashCmd(),
		c.registersCmd(),
		c.statusCmd(),
		portsCmd(),
	)
	return root
}

// connect сливает конфигурацию с явно заданными флагами и создает синтезатор.
func (c *cli) connect(cmd *cobra.Command, args []string) error {
	if cmd.Annotations[annotationOffline] == "true" {
		return nil
	}

	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.Logging.Format == "" || cfg.Logging.Format == "json" {
		cfg.Logging.Format = "console"
	}
	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		return err
	}
	c.logger = logger

	ws := &cfg.Synth.WebSocket
	if cfg.Synth.Transport == config.TransportWebSocket && ws.Username != "" && ws.Password == "" {
		if ws.Password, err = getPassword(); err != nil {
			return err
		}
	}

	if c.channel, err = valon.ParseChannel(c.channelName); err != nil {
		return err
	}
	if c.synth, err = openSynth(cfg.Synth, logger); err != nil {
		return err
	}
	c.cfg = cfg
	logger.Debug("подключение", zap.String("target", device.DefaultTarget(cfg.Synth)), zap.String("transport", cfg.Synth.Transport))
	return nil
}

// applyFlags переносит в cfg только флаги, заданные явно: иначе действуют файл и окружение.
// Таймаут без явного значения в конфигурации берется из флага (2 с).
func (c *cli) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Synth.Transport = config.TransportSerial
		cfg.Synth.Serial.Port = c.portName
	}
	if flags.Changed("baud") {
		cfg.Synth.Serial.BaudRate = c.baudRate
	}
	if flags.Changed("timeout") || cfg.Synth.Serial.ReadTimeout == 0 {
		cfg.Synth.Serial.ReadTimeout = c.readTimeout
	}
	if flags.Changed("url") {
		cfg.Synth.Transport = config.TransportWebSocket
		cfg.Synth.WebSocket.URL = c.wsURL
	}
	if flags.Changed("username") {
		cfg.Synth.WebSocket.Username = c.wsUsername
	}
	if flags.Changed("no-ssl-verify") {
		cfg.Synth.WebSocket.SkipSSLVerify = c.wsNoSSLVerify
	}
	switch {
	case c.logLevel != "":
		cfg.Logging.Level = c.logLevel
	case cfg.Logging.Level == "info":
		cfg.Logging.Level = "warn"
	}
}

// acked переводит результат записи в вывод команды.
func acked(cmd *cobra.Command, ok bool, err error) error {
	if err != nil {
		return err
	}
	if !ok {
		return errNack
	}
	fmt.Fprintln(cmd.OutOrStdout(), "OK")
	return nil
}

// Execute runs the root command
func Execute() error {
	return newRootCmd().Execute()
}

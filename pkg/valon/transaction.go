package valon

import (
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/momentics/valonsynth/internal/util"
)

// Opener открывает транспорт на одну транзакцию.
type Opener func() (util.SerialPortInterface, error)

// Observer получает итог каждой транзакции (метрики).
type Observer interface {
	ObserveTransaction(command, result string, d time.Duration)
}

// Итоги транзакции для Observer.
const (
	ResultOK         = "ok"
	ResultNack       = "nack"
	ResultChecksum   = "checksum"
	ResultTransport  = "transport"
	ResultTimeout    = "timeout"
	ResultUnexpected = "unexpected"
	ResultInvalid    = "invalid"
)

// Conn - транзакционный уровень: один запрос и один ответ на вызов.
// Транспорт открывается в начале каждой транзакции и закрывается на любом пути выхода.
type Conn struct {
	open     Opener
	logger   *zap.Logger
	observer Observer
}

// NewConn создает транзакционный уровень поверх opener.
func NewConn(open Opener, opts ...Option) *Conn {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return &Conn{open: open, logger: cfg.Logger, observer: cfg.Observer}
}

// Read выполняет команду чтения и возвращает проверенную полезную нагрузку.
// При несовпадении контрольной суммы данные не возвращаются.
func (c *Conn) Read(cmd Command, ch Channel) (payload []byte, err error) {
	opcode := cmd.opcode(ch)
	if !cmd.isRead() {
		return nil, c.failed(cmd, opcode, invalidArgument("%s не является командой чтения", cmd.Name))
	}

	start := time.Now()
	defer func() { c.observe(cmd, start, err, true) }()

	port, err := c.acquire(cmd, opcode)
	if err != nil {
		return nil, err
	}
	defer c.release(port, cmd)

	if err := writeFrame(port, []byte{opcode}); err != nil {
		return nil, c.failed(cmd, opcode, err)
	}

	buf := make([]byte, cmd.Response+1)
	if err := readFull(port, buf); err != nil {
		return nil, c.failed(cmd, opcode, err)
	}
	payload, sum := buf[:cmd.Response], buf[cmd.Response]
	if !VerifyChecksum(payload, sum) {
		c.logger.Warn("контрольная сумма ответа не совпадает",
			zap.String("command", cmd.Name),
			zap.Uint8("opcode", opcode),
			zap.Uint8("received", sum),
			zap.Uint8("expected", Checksum(payload)),
		)
		return nil, &ProtocolError{Op: cmd.Name, Opcode: opcode, Err: ErrChecksumMismatch}
	}

	c.logger.Debug("транзакция чтения",
		zap.String("command", cmd.Name),
		zap.Uint8("opcode", opcode),
		zap.Binary("payload", payload),
	)
	return payload, nil
}

// Write выполняет команду записи. NACK - не ошибка: acked=false, err=nil.
func (c *Conn) Write(cmd Command, ch Channel, payload []byte) (acked bool, err error) {
	opcode := cmd.opcode(ch)
	if cmd.isRead() {
		return false, c.failed(cmd, opcode, invalidArgument("%s не является командой записи", cmd.Name))
	}
	if len(payload) != cmd.Request {
		return false, c.failed(cmd, opcode, invalidArgument("%s: ожидалось %d байт, передано %d", cmd.Name, cmd.Request, len(payload)))
	}

	start := time.Now()
	defer func() { c.observe(cmd, start, err, acked) }()

	port, err := c.acquire(cmd, opcode)
	if err != nil {
		return false, err
	}
	defer c.release(port, cmd)

	frame := make([]byte, 0, len(payload)+2)
	frame = append(frame, opcode)
	frame = append(frame, payload...)
	frame = appendChecksum(frame)
	if err := writeFrame(port, frame); err != nil {
		return false, c.failed(cmd, opcode, err)
	}

	var status [1]byte
	if err := readFull(port, status[:]); err != nil {
		return false, c.failed(cmd, opcode, err)
	}

	c.logger.Debug("транзакция записи",
		zap.String("command", cmd.Name),
		zap.Uint8("opcode", opcode),
		zap.Binary("frame", frame),
		zap.Uint8("status", status[0]),
	)

	switch status[0] {
	case ACK:
		return true, nil
	case NACK:
		c.logger.Warn("устройство отклонило команду", zap.String("command", cmd.Name), zap.Uint8("opcode", opcode))
		return false, nil
	}
	return false, &ProtocolError{
		Op:     cmd.Name,
		Opcode: opcode,
		Err:    fmt.Errorf("%w: 0x%02X", ErrUnexpectedResponse, status[0]),
	}
}

func (c *Conn) acquire(cmd Command, opcode byte) (util.SerialPortInterface, error) {
	port, err := c.open()
	if err != nil {
		return nil, c.failed(cmd, opcode, fmt.Errorf("открытие: %w", err))
	}
	return port, nil
}

func (c *Conn) release(port util.SerialPortInterface, cmd Command) {
	if err := port.Close(); err != nil {
		c.logger.Debug("ошибка закрытия транспорта", zap.String("command", cmd.Name), zap.Error(err))
	}
}

// failed заворачивает ошибку транспорта в ProtocolError. Ошибки аргументов не маскируются.
func (c *Conn) failed(cmd Command, opcode byte, err error) error {
	if !errors.Is(err, ErrInvalidArgument) && !errors.Is(err, ErrTransport) {
		err = fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return &ProtocolError{Op: cmd.Name, Opcode: opcode, Err: err}
}

func (c *Conn) observe(cmd Command, start time.Time, err error, acked bool) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveTransaction(cmd.Name, resultOf(err, acked), time.Since(start))
}

func resultOf(err error, acked bool) string {
	switch {
	case err == nil && acked:
		return ResultOK
	case err == nil:
		return ResultNack
	case errors.Is(err, ErrChecksumMismatch):
		return ResultChecksum
	case errors.Is(err, ErrTimeout):
		return ResultTimeout
	case errors.Is(err, ErrUnexpectedResponse):
		return ResultUnexpected
	case errors.Is(err, ErrInvalidArgument):
		return ResultInvalid
	}
	return ResultTransport
}

func writeFrame(port util.SerialPortInterface, frame []byte) error {
	n, err := port.Write(frame)
	if err != nil {
		return err
	}
	if n != len(frame) {
		return fmt.Errorf("записано %d из %d байт", n, len(frame))
	}
	return nil
}

// readFull читает ровно len(buf) байт. Пустое чтение без ошибки - так
// go.bug.st/serial сообщает об истекшем таймауте.
func readFull(port util.SerialPortInterface, buf []byte) error {
	for n := 0; n < len(buf); {
		m, err := port.Read(buf[n:])
		n += m
		if err != nil {
			if errors.Is(err, io.EOF) && n == len(buf) {
				return nil
			}
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("получено %d из %d байт: %w", n, len(buf), io.ErrUnexpectedEOF)
			}
			return err
		}
		if m == 0 {
			return fmt.Errorf("получено %d из %d байт: %w", n, len(buf), ErrTimeout)
		}
	}
	return nil
}

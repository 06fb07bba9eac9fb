package valon

import (
	"errors"
	"fmt"
)

var (
	// ErrChecksumMismatch - контрольная сумма ответа не сошлась, данные ответа отброшены.
	ErrChecksumMismatch = errors.New("контрольная сумма не совпадает")

	// ErrInvalidArgument - недопустимое значение от вызывающего кода; обмен не выполнялся.
	ErrInvalidArgument = errors.New("недопустимый аргумент")

	// ErrTransport - сбой открытия, записи или чтения транспорта. Повторов нет.
	ErrTransport = errors.New("ошибка транспорта")

	// ErrTimeout - истек таймаут чтения, заданный на уровне транспорта.
	ErrTimeout = errors.New("таймаут чтения ответа")

	// ErrUnexpectedResponse - на команду записи пришел байт, не являющийся ни ACK, ни NACK.
	ErrUnexpectedResponse = errors.New("неожиданный ответ устройства")
)

// ProtocolError описывает сбой одной транзакции.
type ProtocolError struct {
	// Op - имя команды, например "read registers"
	Op string

	// Opcode - байт команды вместе с битом канала
	Opcode byte

	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("valon: %s (0x%02X): %v", e.Op, e.Opcode, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// IsProtocolError returns true if the error chain contains a ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("valon: %w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

package valon

import (
	"fmt"
	"strings"
)

// Байты подтверждения команды записи.
const (
	ACK  byte = 0x06
	NACK byte = 0x15
)

// Channel выбирает один из двух синтезаторов. Кодируется битом в байте команды.
type Channel byte

const (
	A Channel = 0x00
	B Channel = 0x08
)

func (c Channel) String() string {
	switch c {
	case A:
		return "A"
	case B:
		return "B"
	}
	return fmt.Sprintf("Channel(0x%02X)", byte(c))
}

func (c Channel) valid() bool { return c == A || c == B }

// ParseChannel принимает "A"/"B" (или "1"/"2", как они подписаны на корпусе).
func ParseChannel(s string) (Channel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "A", "1":
		return A, nil
	case "B", "2":
		return B, nil
	}
	return 0, invalidArgument("неизвестный канал %q", s)
}

// Источник опорного сигнала.
const (
	InternalReference = false
	ExternalReference = true
)

// Маски байта состояния захвата фазы.
const (
	lockMaskA byte = 0x20
	lockMaskB byte = 0x10
)

// labelSize - фиксированная длина поля метки.
const labelSize = 16

// Command описывает одну команду протокола. Размеры ответов фиксированы
// для каждого кода - переменной длины нет.
type Command struct {
	Name       string
	Opcode     byte
	PerChannel bool

	// Request - длина полезной нагрузки запроса (только для записи).
	Request int

	// Response - длина полезной нагрузки ответа без контрольной суммы (только для чтения).
	// Команды записи всегда получают один байт ACK/NACK.
	Response int
}

func (c Command) opcode(ch Channel) byte {
	if c.PerChannel {
		return c.Opcode | byte(ch)
	}
	return c.Opcode
}

func (c Command) isRead() bool { return c.Response > 0 }

// Таблица команд.
var (
	CmdReadRegisters        = Command{Name: "read registers", Opcode: 0x80, PerChannel: true, Response: registersSize}
	CmdWriteRegisters       = Command{Name: "write registers", Opcode: 0x00, PerChannel: true, Request: registersSize}
	CmdReadReference        = Command{Name: "read reference", Opcode: 0x81, Response: 4}
	CmdWriteReference       = Command{Name: "write reference", Opcode: 0x01, Request: 4}
	CmdReadReferenceSelect  = Command{Name: "read reference select", Opcode: 0x86, Response: 1}
	CmdWriteReferenceSelect = Command{Name: "write reference select", Opcode: 0x06, Request: 1}
	CmdReadVCORange         = Command{Name: "read vco range", Opcode: 0x83, PerChannel: true, Response: 4}
	CmdWriteVCORange        = Command{Name: "write vco range", Opcode: 0x03, PerChannel: true, Request: 4}
	CmdReadPhaseLock        = Command{Name: "read phase lock", Opcode: 0x86, PerChannel: true, Response: 1}
	CmdReadLabel            = Command{Name: "read label", Opcode: 0x82, PerChannel: true, Response: labelSize}
	CmdWriteLabel           = Command{Name: "write label", Opcode: 0x02, PerChannel: true, Request: labelSize}
	CmdFlash                = Command{Name: "flash", Opcode: 0x40}
)

// Package valontest содержит программную модель Valon 5007 для тестов.
//
// Instrument отвечает на настоящие коды команд из памяти: банк регистров на канал,
// опорная частота, диапазоны VCO, метки, байт состояния. Каждый вызов Opener
// создает новый "порт", как и реальный транспорт.
package valontest

import (
	"bytes"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/momentics/valonsynth/internal/util"
	"github.com/momentics/valonsynth/pkg/valon"
)

// Instrument - модель прибора. Поля можно менять между операциями, но не во время них.
type Instrument struct {
	mu sync.Mutex

	Registers [2]valon.Registers
	Reference uint32
	VCO       [2]valon.VCORange
	Labels    [2][16]byte
	External  bool
	Locked    [2]bool

	// Внедрение сбоев: действуют на одну следующую транзакцию.
	NackNext    bool
	CorruptNext bool
	SilentNext  bool
	StatusNext  byte
	OpenErr     error

	Opens   int
	Closes  int
	Flashes int
	Frames  [][]byte
}

// NewInstrument возвращает прибор в заводском состоянии: опорная 10 МГц,
// VCO 2200..4400 МГц, оба канала на 2400 МГц в захвате, уровень -4 дБм.
func NewInstrument() *Instrument {
	in := &Instrument{Reference: 10_000_000}
	for i := range in.Registers {
		var r valon.Registers
		r[0] = valon.R0Control.Set(r[0], 0)
		r[0] = valon.R0NCount.Set(r[0], 240)
		r[1] = valon.R1Control.Set(r[1], 1)
		r[1] = valon.R1Mod.Set(r[1], 1)
		r[2] = valon.R2Control.Set(r[2], 2)
		r[2] = valon.R2RefDivider.Set(r[2], 1)
		r[3] = valon.R3Control.Set(r[3], 3)
		r[4] = valon.R4Control.Set(r[4], 4)
		r[4] = valon.R4RFOutputEnable.Set(r[4], 1)
		r[5] = valon.R5Control.Set(r[5], 5)
		in.Registers[i] = r
		in.VCO[i] = valon.VCORange{Min: 2200, Max: 4400}
		in.Locked[i] = true
	}
	return in
}

// Opener возвращает valon.Opener, открывающий новый порт к прибору.
func (in *Instrument) Opener() valon.Opener {
	return func() (util.SerialPortInterface, error) {
		in.mu.Lock()
		defer in.mu.Unlock()
		if in.OpenErr != nil {
			return nil, in.OpenErr
		}
		in.Opens++
		return &port{in: in}, nil
	}
}

// SetLabel задает метку канала как есть.
func (in *Instrument) SetLabel(ch valon.Channel, label string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.Labels[index(ch)] = [16]byte{}
	copy(in.Labels[index(ch)][:], label)
}

// LastFrame возвращает последний принятый кадр запроса.
func (in *Instrument) LastFrame() []byte {
	in.mu.Lock()
	defer in.mu.Unlock()
	if len(in.Frames) == 0 {
		return nil
	}
	return in.Frames[len(in.Frames)-1]
}

func index(ch valon.Channel) int {
	if ch == valon.B {
		return 1
	}
	return 0
}

// requestSize - полная длина кадра запроса для кода команды, 0 - неизвестная команда.
func requestSize(opcode byte) int {
	switch opcode &^ byte(valon.B) {
	case 0x80, 0x81, 0x82, 0x83, 0x86:
		return 1
	case 0x00:
		return 1 + 24 + 1
	case 0x01, 0x03:
		return 1 + 4 + 1
	case 0x02:
		return 1 + 16 + 1
	case 0x06:
		return 1 + 1 + 1
	case 0x40:
		return 1 + 1
	}
	return 0
}

var errUnknownOpcode = errors.New("valontest: неизвестный код команды")

type port struct {
	in     *Instrument
	req    []byte
	resp   bytes.Buffer
	closed bool
}

func (p *port) Write(b []byte) (int, error) {
	if p.closed {
		return 0, util.ErrPortClosed
	}
	p.req = append(p.req, b...)
	for len(p.req) > 0 {
		n := requestSize(p.req[0])
		if n == 0 {
			return 0, errUnknownOpcode
		}
		if len(p.req) < n {
			break
		}
		frame := append([]byte(nil), p.req[:n]...)
		p.req = p.req[n:]
		p.resp.Write(p.in.handle(frame))
	}
	return len(b), nil
}

// Read отдает накопленный ответ; пустой буфер - (0, nil), как таймаут go.bug.st/serial.
func (p *port) Read(b []byte) (int, error) {
	if p.closed {
		return 0, util.ErrPortClosed
	}
	if p.resp.Len() == 0 {
		return 0, nil
	}
	return p.resp.Read(b)
}

func (p *port) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.in.mu.Lock()
	p.in.Closes++
	p.in.mu.Unlock()
	return nil
}

func (p *port) SetReadTimeout(time.Duration) error { return nil }

func (in *Instrument) handle(frame []byte) []byte {
	in.mu.Lock()
	defer in.mu.Unlock()

	in.Frames = append(in.Frames, frame)
	if in.SilentNext {
		in.SilentNext = false
		return nil
	}

	opcode := frame[0]
	ch := valon.Channel(opcode & byte(valon.B))
	i := index(ch)

	if opcode&0x80 != 0 {
		var payload []byte
		switch opcode &^ byte(valon.B) {
		case 0x80:
			payload = in.Registers[i].Bytes()
		case 0x81:
			payload = binary.BigEndian.AppendUint32(nil, in.Reference)
		case 0x82:
			payload = append([]byte(nil), in.Labels[i][:]...)
		case 0x83:
			payload = binary.BigEndian.AppendUint16(nil, in.VCO[i].Min)
			payload = binary.BigEndian.AppendUint16(payload, in.VCO[i].Max)
		case 0x86:
			payload = []byte{in.statusByte()}
		}
		sum := valon.Checksum(payload)
		if in.CorruptNext {
			in.CorruptNext = false
			sum ^= 0x01
		}
		return append(payload, sum)
	}

	if in.StatusNext != 0 {
		st := in.StatusNext
		in.StatusNext = 0
		return []byte{st}
	}
	body, sum := frame[:len(frame)-1], frame[len(frame)-1]
	if in.NackNext || !valon.VerifyChecksum(body, sum) {
		in.NackNext = false
		return []byte{valon.NACK}
	}

	payload := body[1:]
	switch opcode &^ byte(valon.B) {
	case 0x00:
		regs, err := valon.ParseRegisters(payload)
		if err != nil {
			return []byte{valon.NACK}
		}
		in.Registers[i] = regs
	case 0x01:
		in.Reference = binary.BigEndian.Uint32(payload)
	case 0x02:
		copy(in.Labels[i][:], payload)
	case 0x03:
		in.VCO[i] = valon.VCORange{Min: binary.BigEndian.Uint16(payload[0:]), Max: binary.BigEndian.Uint16(payload[2:])}
	case 0x06:
		in.External = payload[0]&1 == 1
	case 0x40:
		in.Flashes++
	}
	return []byte{valon.ACK}
}

// statusByte: бит 0 - внешняя опорная, 0x20 и 0x10 - захват каналов A и B.
func (in *Instrument) statusByte() byte {
	var b byte
	if in.External {
		b |= 0x01
	}
	if in.Locked[0] {
		b |= 0x20
	}
	if in.Locked[1] {
		b |= 0x10
	}
	return b
}

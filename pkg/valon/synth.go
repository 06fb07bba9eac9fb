// Package valon предоставляет API для работы с двухканальным синтезатором Valon 5007.
//
// Каждая операция - законченная транзакция: открыть транспорт, отправить запрос,
// дождаться ответа фиксированной длины, закрыть транспорт. Установка частоты,
// уровня и опций выполняется как чтение всех шести регистров, правка нужных полей
// и запись всех шести обратно; остальные настройки канала при этом не меняются.
//
// Частоты задаются в МГц, опорная частота - в Гц.
package valon

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"
)

// ErrClosed возвращается после Close.
var ErrClosed = errors.New("valon: синтезатор закрыт")

// Synth - фасад прибора. Операции одного экземпляра сериализуются мьютексом,
// так что чтение-изменение-запись из разных горутин не перемешиваются.
// Другие процессы, работающие с тем же портом, остаются на совести вызывающего.
type Synth struct {
	conn   *Conn
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

func New(open Opener, opts ...Option) *Synth {
	conn := NewConn(open, opts...)
	return &Synth{conn: conn, logger: conn.logger}
}

func (s *Synth) lock() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	return nil
}

func checkChannel(ch Channel) error {
	if !ch.valid() {
		return invalidArgument("неизвестный канал 0x%02X", byte(ch))
	}
	return nil
}

// GetFrequency возвращает текущую выходную частоту канала, МГц.
func (s *Synth) GetFrequency(ch Channel) (float64, error) {
	if err := checkChannel(ch); err != nil {
		return 0, err
	}
	if err := s.lock(); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()

	regs, err := s.readRegisters(ch)
	if err != nil {
		return 0, err
	}
	ref, err := s.readReference()
	if err != nil {
		return 0, err
	}
	f := s.frequencyRegisters(ch, regs)
	return RegistersToFrequency(f, EffectivePDF(ref, regs.Options())), nil
}

// SetFrequency настраивает канал на ближайшую к freq частоту сетки с шагом chanSpacing (МГц).
func (s *Synth) SetFrequency(ch Channel, freq, chanSpacing float64) (bool, error) {
	if err := checkChannel(ch); err != nil {
		return false, err
	}
	if !(freq > 0) || math.IsInf(freq, 0) {
		return false, invalidArgument("частота %v МГц", freq)
	}
	if !(chanSpacing > 0) || math.IsInf(chanSpacing, 0) {
		return false, invalidArgument("шаг сетки %v МГц", chanSpacing)
	}
	if err := s.lock(); err != nil {
		return false, err
	}
	defer s.mu.Unlock()

	vco, err := s.readVCORange(ch)
	if err != nil {
		return false, err
	}
	ref, err := s.readReference()
	if err != nil {
		return false, err
	}
	regs, err := s.readRegisters(ch)
	if err != nil {
		return false, err
	}

	epdf := EffectivePDF(ref, regs.Options())
	if !(epdf > 0) {
		return false, fmt.Errorf("valon: эффективная частота фазового детектора равна нулю (опорная %d Гц)", ref)
	}

	f := FrequencyToRegisters(freq, chanSpacing, vco, epdf)
	if f.Clamped {
		s.logger.Warn("выходной делитель ограничен, VCO ниже рабочего диапазона",
			zap.Stringer("channel", ch),
			zap.Float64("freq_mhz", freq),
			zap.Float64("vco_mhz", f.VCOFrequency(freq)),
			zap.Uint16("vco_min", vco.Min),
		)
	}
	if v := f.VCOFrequency(freq); vco.Max > 0 && v > float64(vco.Max) {
		s.logger.Warn("VCO выше рабочего диапазона",
			zap.Stringer("channel", ch),
			zap.Float64("vco_mhz", v),
			zap.Uint16("vco_max", vco.Max),
		)
	}
	if err := f.fitsFields(); err != nil {
		return false, err
	}
	if err := regs.SetFrequencyRegisters(f); err != nil {
		return false, err
	}

	s.logger.Debug("установка частоты",
		zap.Stringer("channel", ch),
		zap.Float64("freq_mhz", freq),
		zap.Float64("epdf_mhz", epdf),
		zap.Uint32("ncount", f.NCount),
		zap.Uint32("frac", f.Frac),
		zap.Uint32("mod", f.Mod),
		zap.Uint32("divider", f.Divider),
	)
	return s.writeRegisters(ch, regs)
}

// GetReference возвращает опорную частоту в Гц. Общая для обоих каналов.
func (s *Synth) GetReference() (uint32, error) {
	if err := s.lock(); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()
	return s.readReference()
}

// SetReference задает опорную частоту в Гц. Сам опорный генератор не перестраивается:
// значение используется прибором как точка отсчета для расчетов.
func (s *Synth) SetReference(hz uint32) (bool, error) {
	if hz == 0 {
		return false, invalidArgument("опорная частота 0 Гц")
	}
	if err := s.lock(); err != nil {
		return false, err
	}
	defer s.mu.Unlock()

	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, hz)
	return s.conn.Write(CmdWriteReference, A, payload)
}

// GetRFLevel возвращает уровень выхода в дБм.
func (s *Synth) GetRFLevel(ch Channel) (int, error) {
	if err := checkChannel(ch); err != nil {
		return 0, err
	}
	if err := s.lock(); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()

	regs, err := s.readRegisters(ch)
	if err != nil {
		return 0, err
	}
	return regs.RFLevel(), nil
}

// SetRFLevel задает уровень выхода: -4, -1, 2 или 5 дБм. Другие значения
// отклоняются до обращения к прибору.
func (s *Synth) SetRFLevel(ch Channel, dbm int) (bool, error) {
	if err := checkChannel(ch); err != nil {
		return false, err
	}
	if _, ok := RFLevelCode(dbm); !ok {
		return false, invalidArgument("уровень %d дБм не входит в %v", dbm, RFLevels)
	}
	if err := s.lock(); err != nil {
		return false, err
	}
	defer s.mu.Unlock()

	regs, err := s.readRegisters(ch)
	if err != nil {
		return false, err
	}
	if err := regs.SetRFLevel(dbm); err != nil {
		return false, err
	}
	return s.writeRegisters(ch, regs)
}

func (s *Synth) GetOptions(ch Channel) (Options, error) {
	if err := checkChannel(ch); err != nil {
		return Options{}, err
	}
	if err := s.lock(); err != nil {
		return Options{}, err
	}
	defer s.mu.Unlock()

	regs, err := s.readRegisters(ch)
	if err != nil {
		return Options{}, err
	}
	return regs.Options(), nil
}

func (s *Synth) SetOptions(ch Channel, o Options) (bool, error) {
	if err := checkChannel(ch); err != nil {
		return false, err
	}
	if err := o.Validate(); err != nil {
		return false, err
	}
	if err := s.lock(); err != nil {
		return false, err
	}
	defer s.mu.Unlock()

	regs, err := s.readRegisters(ch)
	if err != nil {
		return false, err
	}
	if err := regs.SetOptions(o); err != nil {
		return false, err
	}
	return s.writeRegisters(ch, regs)
}

// GetReferenceSelect возвращает true, если выбран внешний опорный сигнал.
func (s *Synth) GetReferenceSelect() (bool, error) {
	if err := s.lock(); err != nil {
		return false, err
	}
	defer s.mu.Unlock()

	b, err := s.conn.Read(CmdReadReferenceSelect, A)
	if err != nil {
		return false, err
	}
	return b[0]&1 == 1, nil
}

func (s *Synth) SetReferenceSelect(external bool) (bool, error) {
	if err := s.lock(); err != nil {
		return false, err
	}
	defer s.mu.Unlock()
	return s.conn.Write(CmdWriteReferenceSelect, A, []byte{byte(boolBit(external))})
}

func (s *Synth) GetVCORange(ch Channel) (VCORange, error) {
	if err := checkChannel(ch); err != nil {
		return VCORange{}, err
	}
	if err := s.lock(); err != nil {
		return VCORange{}, err
	}
	defer s.mu.Unlock()
	return s.readVCORange(ch)
}

// SetVCORange задает диапазон VCO; от него зависит выбор выходного делителя.
func (s *Synth) SetVCORange(ch Channel, r VCORange) (bool, error) {
	if err := checkChannel(ch); err != nil {
		return false, err
	}
	if r.Min >= r.Max {
		return false, invalidArgument("диапазон VCO %d..%d МГц", r.Min, r.Max)
	}
	if err := s.lock(); err != nil {
		return false, err
	}
	defer s.mu.Unlock()

	payload := make([]byte, 4)
	binary.BigEndian.PutUint16(payload[0:], r.Min)
	binary.BigEndian.PutUint16(payload[2:], r.Max)
	return s.conn.Write(CmdWriteVCORange, ch, payload)
}

// GetPhaseLock возвращает true, если ФАПЧ канала в захвате.
func (s *Synth) GetPhaseLock(ch Channel) (bool, error) {
	if err := checkChannel(ch); err != nil {
		return false, err
	}
	if err := s.lock(); err != nil {
		return false, err
	}
	defer s.mu.Unlock()

	return s.readPhaseLock(ch)
}

// GetLabel возвращает метку канала без завершающих нулей.
func (s *Synth) GetLabel(ch Channel) (string, error) {
	if err := checkChannel(ch); err != nil {
		return "", err
	}
	if err := s.lock(); err != nil {
		return "", err
	}
	defer s.mu.Unlock()

	b, err := s.conn.Read(CmdReadLabel, ch)
	if err != nil {
		return "", err
	}
	return trimLabel(b), nil
}

// SetLabel записывает метку; короткая дополняется нулями до 16 байт, длинная отклоняется.
func (s *Synth) SetLabel(ch Channel, label string) (bool, error) {
	if err := checkChannel(ch); err != nil {
		return false, err
	}
	if len(label) > labelSize {
		return false, invalidArgument("метка длиной %d байт, максимум %d", len(label), labelSize)
	}
	if err := s.lock(); err != nil {
		return false, err
	}
	defer s.mu.Unlock()

	payload := make([]byte, labelSize)
	copy(payload, label)
	return s.conn.Write(CmdWriteLabel, ch, payload)
}

// Flash сохраняет текущие настройки обоих каналов в энергонезависимую память.
func (s *Synth) Flash() (bool, error) {
	if err := s.lock(); err != nil {
		return false, err
	}
	defer s.mu.Unlock()
	return s.conn.Write(CmdFlash, A, nil)
}

// GetRegisters возвращает сырой банк регистров канала.
func (s *Synth) GetRegisters(ch Channel) (Registers, error) {
	if err := checkChannel(ch); err != nil {
		return Registers{}, err
	}
	if err := s.lock(); err != nil {
		return Registers{}, err
	}
	defer s.mu.Unlock()
	return s.readRegisters(ch)
}

// Close запрещает дальнейшие операции. Транспорт между транзакциями не удерживается,
// поэтому закрывать нечего.
func (s *Synth) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Synth) readRegisters(ch Channel) (Registers, error) {
	b, err := s.conn.Read(CmdReadRegisters, ch)
	if err != nil {
		return Registers{}, err
	}
	return ParseRegisters(b)
}

func (s *Synth) writeRegisters(ch Channel, r Registers) (bool, error) {
	return s.conn.Write(CmdWriteRegisters, ch, r.Bytes())
}

func (s *Synth) readReference() (uint32, error) {
	b, err := s.conn.Read(CmdReadReference, A)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (s *Synth) readVCORange(ch Channel) (VCORange, error) {
	b, err := s.conn.Read(CmdReadVCORange, ch)
	if err != nil {
		return VCORange{}, err
	}
	return VCORange{Min: binary.BigEndian.Uint16(b[0:]), Max: binary.BigEndian.Uint16(b[2:])}, nil
}

// readPhaseLock: байт состояния общий, у каждого канала свой бит захвата.
func (s *Synth) readPhaseLock(ch Channel) (bool, error) {
	b, err := s.conn.Read(CmdReadPhaseLock, ch)
	if err != nil {
		return false, err
	}
	mask := lockMaskA
	if ch == B {
		mask = lockMaskB
	}
	return b[0]&mask != 0, nil
}

func trimLabel(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func (s *Synth) frequencyRegisters(ch Channel, regs Registers) FrequencyRegisters {
	f, ok := regs.FrequencyRegisters()
	if !ok {
		s.logger.Warn("неизвестный код выходного делителя, принят делитель 1",
			zap.Stringer("channel", ch),
			zap.Uint32("code", R4DividerSelect.Get(regs[4])),
		)
	}
	return f
}

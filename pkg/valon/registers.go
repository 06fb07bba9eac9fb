package valon

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// NumRegisters - число конфигурационных регистров одного синтезатора.
const NumRegisters = 6

// registersSize - размер банка на линии: 6 слов по 4 байта, big-endian.
const registersSize = NumRegisters * 4

// Registers - копия банка регистров одного канала, живущая в пределах одной
// транзакции чтение-изменение-запись. Между вызовами не кэшируется.
type Registers [NumRegisters]uint32

// ParseRegisters разбирает 24 байта ответа.
func ParseRegisters(b []byte) (Registers, error) {
	var r Registers
	if len(b) != registersSize {
		return r, fmt.Errorf("ожидалось %d байт регистров, получено %d", registersSize, len(b))
	}
	for i := range r {
		r[i] = binary.BigEndian.Uint32(b[i*4:])
	}
	return r, nil
}

// Bytes возвращает банк в проводном представлении.
func (r Registers) Bytes() []byte {
	b := make([]byte, registersSize)
	for i, w := range r {
		binary.BigEndian.PutUint32(b[i*4:], w)
	}
	return b
}

// Describe выводит все именованные поля банка, по строке на регистр.
func (r Registers) Describe() string {
	var sb strings.Builder
	for i, w := range r {
		fmt.Fprintf(&sb, "R%d 0x%08X", i, w)
		for _, f := range Layout[i] {
			fmt.Fprintf(&sb, " %s=%d", f.Name, f.Get(w))
		}
		if res := w & ReservedMask(i); res != 0 {
			fmt.Fprintf(&sb, " reserved=0x%08X", res)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Таблица кодов выходного делителя: поле divider_select хранит код, а не значение.
var (
	dividerToCode = map[uint32]uint32{1: 0, 2: 1, 4: 2, 8: 3, 16: 4}
	codeToDivider = map[uint32]uint32{0: 1, 1: 2, 2: 4, 3: 8, 4: 16}
)

// DividerCode переводит значение делителя в код поля. ok=false для значений вне {1,2,4,8,16}.
func DividerCode(divider uint32) (code uint32, ok bool) {
	code, ok = dividerToCode[divider]
	return code, ok
}

// DividerFromCode переводит код поля в делитель. Для неизвестного кода
// возвращает 1 и ok=false - вызывающий обязан предупредить об этом.
func DividerFromCode(code uint32) (divider uint32, ok bool) {
	if d, found := codeToDivider[code]; found {
		return d, true
	}
	return 1, false
}

// Таблица уровней RF-выхода, поле output_power регистра 4.
var (
	rfLevelToCode = map[int]uint32{-4: 0, -1: 1, 2: 2, 5: 3}
	codeToRFLevel = [4]int{-4, -1, 2, 5}
)

// RFLevels - допустимые уровни выхода в дБм.
var RFLevels = []int{-4, -1, 2, 5}

// RFLevelCode переводит дБм в код поля output_power.
func RFLevelCode(dbm int) (uint32, bool) {
	code, ok := rfLevelToCode[dbm]
	return code, ok
}

// Reg0 - целая и дробная части делителя обратной связи.
type Reg0 struct {
	Control uint32
	Frac    uint32
	NCount  uint32
}

func DecodeReg0(w uint32) Reg0 {
	return Reg0{Control: R0Control.Get(w), Frac: R0Frac.Get(w), NCount: R0NCount.Get(w)}
}

// Encode записывает поля поверх previous; бит 31 (резерв) сохраняется.
func (r Reg0) Encode(previous uint32) uint32 {
	w := R0Control.Set(previous, r.Control)
	w = R0Frac.Set(w, r.Frac)
	return R0NCount.Set(w, r.NCount)
}

// Reg1 - модуль дробного делителя, фаза, прескалер.
type Reg1 struct {
	Control   uint32
	Mod       uint32
	Phase     uint32
	Prescaler uint32
}

func DecodeReg1(w uint32) Reg1 {
	return Reg1{
		Control:   R1Control.Get(w),
		Mod:       R1Mod.Get(w),
		Phase:     R1Phase.Get(w),
		Prescaler: R1Prescaler.Get(w),
	}
}

func (r Reg1) Encode(previous uint32) uint32 {
	w := R1Control.Set(previous, r.Control)
	w = R1Mod.Set(w, r.Mod)
	w = R1Phase.Set(w, r.Phase)
	return R1Prescaler.Set(w, r.Prescaler)
}

// Reg2 - опорный тракт и зарядовый насос.
type Reg2 struct {
	Control      uint32
	CounterReset uint32
	CPThreeState uint32
	PowerDown    uint32
	PDPolarity   uint32
	LDP          uint32
	LDF          uint32
	ChargePump   uint32
	DoubleBuffer uint32
	RefDivider   uint32
	HalfRef      uint32
	DoubleRef    uint32
	MuxOut       uint32
	LowSpur      uint32
}

func DecodeReg2(w uint32) Reg2 {
	return Reg2{
		Control:      R2Control.Get(w),
		CounterReset: R2CounterReset.Get(w),
		CPThreeState: R2CPThreeState.Get(w),
		PowerDown:    R2PowerDown.Get(w),
		PDPolarity:   R2PDPolarity.Get(w),
		LDP:          R2LDP.Get(w),
		LDF:          R2LDF.Get(w),
		ChargePump:   R2ChargePump.Get(w),
		DoubleBuffer: R2DoubleBuffer.Get(w),
		RefDivider:   R2RefDivider.Get(w),
		HalfRef:      R2HalfRef.Get(w),
		DoubleRef:    R2DoubleRef.Get(w),
		MuxOut:       R2MuxOut.Get(w),
		LowSpur:      R2LowSpur.Get(w),
	}
}

func (r Reg2) Encode(previous uint32) uint32 {
	w := R2Control.Set(previous, r.Control)
	w = R2CounterReset.Set(w, r.CounterReset)
	w = R2CPThreeState.Set(w, r.CPThreeState)
	w = R2PowerDown.Set(w, r.PowerDown)
	w = R2PDPolarity.Set(w, r.PDPolarity)
	w = R2LDP.Set(w, r.LDP)
	w = R2LDF.Set(w, r.LDF)
	w = R2ChargePump.Set(w, r.ChargePump)
	w = R2DoubleBuffer.Set(w, r.DoubleBuffer)
	w = R2RefDivider.Set(w, r.RefDivider)
	w = R2HalfRef.Set(w, r.HalfRef)
	w = R2DoubleRef.Set(w, r.DoubleRef)
	w = R2MuxOut.Set(w, r.MuxOut)
	return R2LowSpur.Set(w, r.LowSpur)
}

type Reg3 struct {
	Control      uint32
	ClockDiv     uint32
	ClockDivMode uint32
	CSR          uint32
}

func DecodeReg3(w uint32) Reg3 {
	return Reg3{
		Control:      R3Control.Get(w),
		ClockDiv:     R3ClockDiv.Get(w),
		ClockDivMode: R3ClockDivMode.Get(w),
		CSR:          R3CSR.Get(w),
	}
}

func (r Reg3) Encode(previous uint32) uint32 {
	w := R3Control.Set(previous, r.Control)
	w = R3ClockDiv.Set(w, r.ClockDiv)
	w = R3ClockDivMode.Set(w, r.ClockDivMode)
	return R3CSR.Set(w, r.CSR)
}

// Reg4 - выходной каскад: мощность, вспомогательный выход, выходной делитель.
type Reg4 struct {
	Control            uint32
	OutputPower        uint32
	RFOutputEnable     uint32
	AuxOutputPower     uint32
	AuxOutputEnable    uint32
	AuxOutputSelect    uint32
	MTLD               uint32
	VCOPowerDown       uint32
	BandSelectClockDiv uint32
	DividerSelect      uint32
	FeedbackSelect     uint32
}

func DecodeReg4(w uint32) Reg4 {
	return Reg4{
		Control:            R4Control.Get(w),
		OutputPower:        R4OutputPower.Get(w),
		RFOutputEnable:     R4RFOutputEnable.Get(w),
		AuxOutputPower:     R4AuxOutputPower.Get(w),
		AuxOutputEnable:    R4AuxOutputEnable.Get(w),
		AuxOutputSelect:    R4AuxOutputSelect.Get(w),
		MTLD:               R4MTLD.Get(w),
		VCOPowerDown:       R4VCOPowerDown.Get(w),
		BandSelectClockDiv: R4BandSelectClockDiv.Get(w),
		DividerSelect:      R4DividerSelect.Get(w),
		FeedbackSelect:     R4FeedbackSelect.Get(w),
	}
}

func (r Reg4) Encode(previous uint32) uint32 {
	w := R4Control.Set(previous, r.Control)
	w = R4OutputPower.Set(w, r.OutputPower)
	w = R4RFOutputEnable.Set(w, r.RFOutputEnable)
	w = R4AuxOutputPower.Set(w, r.AuxOutputPower)
	w = R4AuxOutputEnable.Set(w, r.AuxOutputEnable)
	w = R4AuxOutputSelect.Set(w, r.AuxOutputSelect)
	w = R4MTLD.Set(w, r.MTLD)
	w = R4VCOPowerDown.Set(w, r.VCOPowerDown)
	w = R4BandSelectClockDiv.Set(w, r.BandSelectClockDiv)
	w = R4DividerSelect.Set(w, r.DividerSelect)
	return R4FeedbackSelect.Set(w, r.FeedbackSelect)
}

type Reg5 struct {
	Control   uint32
	LDPinMode uint32
}

func DecodeReg5(w uint32) Reg5 {
	return Reg5{Control: R5Control.Get(w), LDPinMode: R5LDPinMode.Get(w)}
}

func (r Reg5) Encode(previous uint32) uint32 {
	w := R5Control.Set(previous, r.Control)
	return R5LDPinMode.Set(w, r.LDPinMode)
}

// FrequencyRegisters извлекает из банка четверку частоты. dividerOK=false,
// если в divider_select лежит неизвестный код (делитель тогда принят за 1).
func (r Registers) FrequencyRegisters() (f FrequencyRegisters, dividerOK bool) {
	r0 := DecodeReg0(r[0])
	f.NCount = r0.NCount
	f.Frac = r0.Frac
	f.Mod = DecodeReg1(r[1]).Mod
	f.Divider, dividerOK = DividerFromCode(DecodeReg4(r[4]).DividerSelect)
	return f, dividerOK
}

// SetFrequencyRegisters патчит ncount/frac/mod/divider_select, не трогая остальные биты.
func (r *Registers) SetFrequencyRegisters(f FrequencyRegisters) error {
	code, ok := DividerCode(f.Divider)
	if !ok {
		return invalidArgument("выходной делитель %d не входит в {1,2,4,8,16}", f.Divider)
	}
	r0 := DecodeReg0(r[0])
	r0.NCount, r0.Frac = f.NCount, f.Frac
	r[0] = r0.Encode(r[0])

	r1 := DecodeReg1(r[1])
	r1.Mod = f.Mod
	r[1] = r1.Encode(r[1])

	r[4] = R4DividerSelect.Set(r[4], code)
	return nil
}

// RFLevel возвращает уровень выхода в дБм. Поле двухбитное, так что любой код валиден.
func (r Registers) RFLevel() int {
	return codeToRFLevel[R4OutputPower.Get(r[4])]
}

func (r *Registers) SetRFLevel(dbm int) error {
	code, ok := RFLevelCode(dbm)
	if !ok {
		return invalidArgument("уровень %d дБм не входит в %v", dbm, RFLevels)
	}
	r[4] = R4OutputPower.Set(r[4], code)
	return nil
}

// Options возвращает опции опорного тракта. LowSpur истинен, только если оба бита поля установлены.
func (r Registers) Options() Options {
	r2 := DecodeReg2(r[2])
	return Options{
		Double:  r2.DoubleRef == 1,
		Half:    r2.HalfRef == 1,
		Divisor: r2.RefDivider,
		LowSpur: r2.LowSpur == 0x3,
	}
}

func (r *Registers) SetOptions(o Options) error {
	if err := o.Validate(); err != nil {
		return err
	}
	r2 := DecodeReg2(r[2])
	r2.DoubleRef = boolBit(o.Double)
	r2.HalfRef = boolBit(o.Half)
	r2.RefDivider = o.Divisor
	// Оба бита low_spur пишутся только одинаковыми: 0b00 или 0b11.
	if o.LowSpur {
		r2.LowSpur = 0x3
	} else {
		r2.LowSpur = 0
	}
	r[2] = r2.Encode(r[2])
	return nil
}

func boolBit(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

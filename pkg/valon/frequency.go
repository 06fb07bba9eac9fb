package valon

import "math"

// DefaultChannelSpacing - шаг сетки частот по умолчанию, МГц.
const DefaultChannelSpacing = 10.0

// MaxOutputDivider - аппаратный потолок выходного делителя.
const MaxOutputDivider = 16

// FrequencyRegisters - четверка (ncount, frac, mod, divider), задающая выходную частоту.
// Вычисляется, не хранится.
type FrequencyRegisters struct {
	NCount  uint32
	Frac    uint32
	Mod     uint32
	Divider uint32

	// Clamped - делитель уперся в MaxOutputDivider, и VCO может оказаться ниже
	// нижней границы. Результат в таком случае носит рекомендательный характер.
	Clamped bool
}

// VCORange - рабочий диапазон генератора, МГц.
type VCORange struct {
	Min uint16 `json:"min"`
	Max uint16 `json:"max"`
}

// Options - опции опорного тракта, регистр 2.
// Double и Half одновременно прошивка трактует как отсутствие обоих.
type Options struct {
	Double  bool   `json:"double"`
	Half    bool   `json:"half"`
	Divisor uint32 `json:"divisor"`
	LowSpur bool   `json:"low_spur"`
}

// Validate проверяет, что делитель опорной частоты помещается в 10-битное поле.
func (o Options) Validate() error {
	if o.Divisor < 1 || o.Divisor > R2RefDivider.max() {
		return invalidArgument("делитель опорной частоты %d вне диапазона 1..%d", o.Divisor, R2RefDivider.max())
	}
	return nil
}

// EffectivePDF возвращает эффективную частоту фазового детектора в МГц.
// Удвоение и деление пополам применяются буквально и в этом порядке, даже если
// включены оба: так округление совпадает с прошивкой.
func EffectivePDF(referenceHz uint32, o Options) float64 {
	r := float64(referenceHz) / 1e6
	if o.Double {
		r *= 2
	}
	if o.Half {
		r /= 2
	}
	if o.Divisor > 1 {
		r /= float64(o.Divisor)
	}
	return r
}

// RegistersToFrequency: freq = (ncount + frac/mod) * epdf / divider.
func RegistersToFrequency(f FrequencyRegisters, epdf float64) float64 {
	n := float64(f.NCount)
	if f.Mod != 0 {
		n += float64(f.Frac) / float64(f.Mod)
	}
	div := f.Divider
	if div == 0 {
		div = 1
	}
	return n * epdf / float64(div)
}

// FrequencyToRegisters подбирает регистры под частоту freq (МГц) с шагом chanSpacing.
//
// Выходной делитель - наименьшая степень двойки, при которой freq*divider
// превышает vco.Min; если такой нет до 16, делитель ограничивается 16 и
// выставляется Clamped.
func FrequencyToRegisters(freq, chanSpacing float64, vco VCORange, epdf float64) FrequencyRegisters {
	var f FrequencyRegisters

	div := uint32(1)
	for freq*float64(div) <= float64(vco.Min) && div <= MaxOutputDivider {
		div *= 2
	}
	if div > MaxOutputDivider {
		div = MaxOutputDivider
		f.Clamped = true
	}
	f.Divider = div

	v := freq * float64(div)
	ncount := math.Floor(v / epdf)
	frac := saturate(math.Floor((v-ncount*epdf)/chanSpacing+0.5), R0Frac)
	mod := saturate(math.Floor(epdf/chanSpacing+0.5), R1Mod)
	f.NCount = saturate(ncount, R0NCount)

	// Сетка мельче, чем вмещает поле mod: значение остается для fitsFields.
	if mod > R1Mod.max() && frac != 0 {
		f.Mod = mod
		return f
	}

	// Округление остатка вверх может дать frac == mod: переносим в ncount.
	if mod != 0 && frac >= mod {
		f.NCount += frac / mod
		frac %= mod
	}

	if frac != 0 && mod != 0 {
		f.Frac, f.Mod = ReduceFraction(frac, mod)
	} else {
		f.Frac, f.Mod = 0, 1
	}
	return f
}

// saturate переводит x в uint32. Значение вне поля f (и NaN) становится
// f.max()+1, чтобы fitsFields его отверг, а не получил обрезанные биты.
func saturate(x float64, f Field) uint32 {
	if !(x <= float64(f.max())) {
		return f.max() + 1
	}
	if x < 0 {
		return 0
	}
	return uint32(x)
}

// ReduceFraction делит frac и mod пополам, пока оба четные. Это не полное
// сокращение по НОД: 9/12 остается 9/12.
func ReduceFraction(frac, mod uint32) (uint32, uint32) {
	if frac == 0 || mod == 0 {
		return frac, mod
	}
	for frac&1 == 0 && mod&1 == 0 {
		frac /= 2
		mod /= 2
	}
	return frac, mod
}

// VCOFrequency возвращает частоту генератора для выбранного делителя.
func (f FrequencyRegisters) VCOFrequency(freq float64) float64 {
	return freq * float64(f.Divider)
}

// fitsFields проверяет, что значения помещаются в поля регистров 0 и 1.
func (f FrequencyRegisters) fitsFields() error {
	if f.NCount > R0NCount.max() {
		return invalidArgument("ncount %d не помещается в %d бит", f.NCount, R0NCount.Width)
	}
	if f.Mod > R1Mod.max() {
		return invalidArgument("mod %d не помещается в %d бит: слишком мелкий шаг сетки", f.Mod, R1Mod.Width)
	}
	return nil
}

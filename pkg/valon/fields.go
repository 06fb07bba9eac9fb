package valon

// Field - битовое поле 32-битного регистра. Бит 0 - младший бит слова.
type Field struct {
	Name   string
	Offset uint
	Width  uint
}

func (f Field) max() uint32 { return 1<<f.Width - 1 }

// Mask возвращает маску поля в позиции внутри слова.
func (f Field) Mask() uint32 { return f.max() << f.Offset }

// Get извлекает значение поля.
func (f Field) Get(word uint32) uint32 { return (word >> f.Offset) & f.max() }

// Set заменяет биты поля на v (лишние старшие биты v отбрасываются), остальные биты слова не трогает.
func (f Field) Set(word, v uint32) uint32 {
	return word&^f.Mask() | (v&f.max())<<f.Offset
}

// Регистр 0.
var (
	R0Control = Field{"control", 0, 3}
	R0Frac    = Field{"frac", 3, 12}
	R0NCount  = Field{"ncount", 15, 16}
)

// Регистр 1.
var (
	R1Control   = Field{"control", 0, 3}
	R1Mod       = Field{"mod", 3, 12}
	R1Phase     = Field{"phase", 15, 12}
	R1Prescaler = Field{"prescaler", 27, 1}
)

// Регистр 2: делитель опорной частоты и опции.
var (
	R2Control      = Field{"control", 0, 3}
	R2CounterReset = Field{"counter_reset", 3, 1}
	R2CPThreeState = Field{"cp_three_state", 4, 1}
	R2PowerDown    = Field{"pd", 5, 1}
	R2PDPolarity   = Field{"pd_polarity", 6, 1}
	R2LDP          = Field{"ldp", 7, 1}
	R2LDF          = Field{"ldf", 8, 1}
	R2ChargePump   = Field{"charge_pump", 9, 4}
	R2DoubleBuffer = Field{"double_buff", 13, 1}
	R2RefDivider   = Field{"r", 14, 10}
	R2HalfRef      = Field{"half_r", 24, 1}
	R2DoubleRef    = Field{"double_r", 25, 1}
	R2MuxOut       = Field{"muxout", 26, 3}
	R2LowSpur      = Field{"low_spur", 29, 2}
)

// Регистр 3.
var (
	R3Control      = Field{"control", 0, 3}
	R3ClockDiv     = Field{"clock_div", 3, 12}
	R3ClockDivMode = Field{"clock_div_mode", 15, 2}
	R3CSR          = Field{"csr", 18, 1}
)

// Регистр 4: выходной каскад.
var (
	R4Control            = Field{"control", 0, 3}
	R4OutputPower        = Field{"output_power", 3, 2}
	R4RFOutputEnable     = Field{"rf_output_enable", 5, 1}
	R4AuxOutputPower     = Field{"aux_output_power", 6, 2}
	R4AuxOutputEnable    = Field{"aux_output_enable", 8, 1}
	R4AuxOutputSelect    = Field{"aux_output_select", 9, 1}
	R4MTLD               = Field{"mtld", 10, 1}
	R4VCOPowerDown       = Field{"vco_power_down", 11, 1}
	R4BandSelectClockDiv = Field{"band_select_clock_div", 12, 8}
	R4DividerSelect      = Field{"divider_select", 20, 3}
	R4FeedbackSelect     = Field{"feedback_select", 23, 1}
)

// Регистр 5.
var (
	R5Control   = Field{"control", 0, 3}
	R5LDPinMode = Field{"ld_pin_mode", 22, 2}
)

// Layout перечисляет именованные поля каждого регистра. Биты, не покрытые
// ни одним полем, зарезервированы и всегда сохраняются при записи.
var Layout = [NumRegisters][]Field{
	{R0Control, R0Frac, R0NCount},
	{R1Control, R1Mod, R1Phase, R1Prescaler},
	{R2Control, R2CounterReset, R2CPThreeState, R2PowerDown, R2PDPolarity, R2LDP, R2LDF,
		R2ChargePump, R2DoubleBuffer, R2RefDivider, R2HalfRef, R2DoubleRef, R2MuxOut, R2LowSpur},
	{R3Control, R3ClockDiv, R3ClockDivMode, R3CSR},
	{R4Control, R4OutputPower, R4RFOutputEnable, R4AuxOutputPower, R4AuxOutputEnable,
		R4AuxOutputSelect, R4MTLD, R4VCOPowerDown, R4BandSelectClockDiv, R4DividerSelect, R4FeedbackSelect},
	{R5Control, R5LDPinMode},
}

// ReservedMask возвращает биты регистра idx, не принадлежащие ни одному полю.
func ReservedMask(idx int) uint32 {
	var used uint32
	for _, f := range Layout[idx] {
		used |= f.Mask()
	}
	return ^used
}

package valon

// Status - сводка состояния одного канала.
type Status struct {
	Channel      string   `json:"channel"`
	FrequencyMHz float64  `json:"frequency_mhz"`
	RFLevelDBm   int      `json:"rf_level_dbm"`
	Options      Options  `json:"options"`
	VCO          VCORange `json:"vco"`
	Locked       bool     `json:"locked"`
	Label        string   `json:"label"`
	ReferenceHz  uint32   `json:"reference_hz"`
	External     bool     `json:"external_reference"`
}

// Status читает состояние канала под одной блокировкой. Каждое поле - отдельная
// транзакция; при первой ошибке возвращается то, что успели прочитать.
func (s *Synth) Status(ch Channel) (Status, error) {
	st := Status{Channel: ch.String()}
	if err := checkChannel(ch); err != nil {
		return st, err
	}
	if err := s.lock(); err != nil {
		return st, err
	}
	defer s.mu.Unlock()

	regs, err := s.readRegisters(ch)
	if err != nil {
		return st, err
	}
	st.ReferenceHz, err = s.readReference()
	if err != nil {
		return st, err
	}
	st.Options = regs.Options()
	st.RFLevelDBm = regs.RFLevel()
	st.FrequencyMHz = RegistersToFrequency(s.frequencyRegisters(ch, regs), EffectivePDF(st.ReferenceHz, st.Options))

	if st.VCO, err = s.readVCORange(ch); err != nil {
		return st, err
	}

	if st.Locked, err = s.readPhaseLock(ch); err != nil {
		return st, err
	}

	b, err := s.conn.Read(CmdReadReferenceSelect, A)
	if err != nil {
		return st, err
	}
	st.External = b[0]&1 == 1

	if b, err = s.conn.Read(CmdReadLabel, ch); err != nil {
		return st, err
	}
	st.Label = trimLabel(b)
	return st, nil
}

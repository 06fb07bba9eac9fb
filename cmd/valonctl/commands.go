package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/momentics/valonsynth/internal/util"
	"github.com/momentics/valonsynth/pkg/valon"
)

// annotationOffline помечает команды, которым прибор не нужен.
const annotationOffline = "offline"

func (c *cli) freqCmd() *cobra.Command {
	var spacing float64
	cmd := &cobra.Command{
		Use:   "freq [MHz]",
		Short: "Прочитать или установить частоту канала",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				freq, err := strconv.ParseFloat(args[0], 64)
				if err != nil {
					return fmt.Errorf("частота %q: %w", args[0], err)
				}
				if !cmd.Flags().Changed("spacing") {
					spacing = c.cfg.Synth.ChannelSpacing
				}
				ok, err := c.synth.SetFrequency(c.channel, freq, spacing)
				if err := acked(cmd, ok, err); err != nil {
					return err
				}
			}
			freq, err := c.synth.GetFrequency(c.channel)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %.6f MHz\n", c.channel, freq)
			return nil
		},
	}
	cmd.Flags().Float64VarP(&spacing, "spacing", "s", valon.DefaultChannelSpacing, "Шаг сетки частот, МГц")
	return cmd
}

func (c *cli) refCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ref [Hz]",
		Short: "Прочитать или задать опорную частоту (общая для каналов)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				hz, err := strconv.ParseUint(args[0], 10, 32)
				if err != nil {
					return fmt.Errorf("опорная частота %q: %w", args[0], err)
				}
				ok, err := c.synth.SetReference(uint32(hz))
				return acked(cmd, ok, err)
			}
			hz, err := c.synth.GetReference()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d Hz\n", hz)
			return nil
		},
	}
}

func (c *cli) rfLevelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rflevel [dBm]",
		Short: "Прочитать или задать уровень выхода: -4, -1, 2, 5 дБм",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				dbm, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("уровень %q: %w", args[0], err)
				}
				ok, err := c.synth.SetRFLevel(c.channel, dbm)
				return acked(cmd, ok, err)
			}
			dbm, err := c.synth.GetRFLevel(c.channel)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d dBm\n", c.channel, dbm)
			return nil
		},
	}
}

func (c *cli) optionsCmd() *cobra.Command {
	var set valon.Options
	cmd := &cobra.Command{
		Use:   "options",
		Short: "Прочитать или изменить опции опорного тракта",
		Long: `Без флагов печатает опции канала. Флаги меняют только указанные опции,
остальные берутся из прибора.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := c.synth.GetOptions(c.channel)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if !flags.Changed("double") && !flags.Changed("half") && !flags.Changed("divisor") && !flags.Changed("low-spur") {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: double=%t half=%t divisor=%d low_spur=%t\n",
					c.channel, o.Double, o.Half, o.Divisor, o.LowSpur)
				return nil
			}
			if flags.Changed("double") {
				o.Double = set.Double
			}
			if flags.Changed("half") {
				o.Half = set.Half
			}
			if flags.Changed("divisor") {
				o.Divisor = set.Divisor
			}
			if flags.Changed("low-spur") {
				o.LowSpur = set.LowSpur
			}
			ok, err := c.synth.SetOptions(c.channel, o)
			return acked(cmd, ok, err)
		},
	}
	cmd.Flags().BoolVar(&set.Double, "double", false, "Удвоение опорной частоты")
	cmd.Flags().BoolVar(&set.Half, "half", false, "Деление опорной частоты пополам")
	cmd.Flags().Uint32Var(&set.Divisor, "divisor", 1, "Делитель опорной частоты, 1..1023")
	cmd.Flags().BoolVar(&set.LowSpur, "low-spur", false, "Режим низких побочных составляющих")
	return cmd
}

func (c *cli) refSelectCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "refselect [internal|external]",
		Short:     "Прочитать или выбрать источник опорного сигнала",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"internal", "external"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				ok, err := c.synth.SetReferenceSelect(args[0] == "external")
				return acked(cmd, ok, err)
			}
			external, err := c.synth.GetReferenceSelect()
			if err != nil {
				return err
			}
			if external == valon.ExternalReference {
				fmt.Fprintln(cmd.OutOrStdout(), "external")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "internal")
			}
			return nil
		},
	}
}

func (c *cli) vcoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vco [min max]",
		Short: "Прочитать или задать рабочий диапазон VCO, МГц",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return fmt.Errorf("нужно 0 или 2 аргумента, передано %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 2 {
				lo, err := strconv.ParseUint(args[0], 10, 16)
				if err != nil {
					return fmt.Errorf("min %q: %w", args[0], err)
				}
				hi, err := strconv.ParseUint(args[1], 10, 16)
				if err != nil {
					return fmt.Errorf("max %q: %w", args[1], err)
				}
				ok, err := c.synth.SetVCORange(c.channel, valon.VCORange{Min: uint16(lo), Max: uint16(hi)})
				return acked(cmd, ok, err)
			}
			r, err := c.synth.GetVCORange(c.channel)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d..%d MHz\n", c.channel, r.Min, r.Max)
			return nil
		},
	}
}

func (c *cli) lockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lock",
		Short: "Состояние захвата ФАПЧ канала",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			locked, err := c.synth.GetPhaseLock(c.channel)
			if err != nil {
				return err
			}
			state := "unlocked"
			if locked {
				state = "locked"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", c.channel, state)
			return nil
		},
	}
}

func (c *cli) labelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "label [text]",
		Short: "Прочитать или записать метку канала (до 16 байт)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				ok, err := c.synth.SetLabel(c.channel, args[0])
				return acked(cmd, ok, err)
			}
			label, err := c.synth.GetLabel(c.channel)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), label)
			return nil
		},
	}
}

func (c *cli) flashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flash",
		Short: "Сохранить настройки обоих каналов в энергонезависимую память",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := c.synth.Flash()
			return acked(cmd, ok, err)
		},
	}
}

func (c *cli) registersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "registers",
		Short: "Вывести банк регистров канала по полям",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			regs, err := c.synth.GetRegisters(c.channel)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), regs.Describe())
			return nil
		},
	}
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Сводка состояния канала в JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := c.synth.Status(c.channel)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		},
	}
}

func portsCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "ports",
		Short:       "Список последовательных портов",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationOffline: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := util.ListPorts()
			if err != nil {
				return err
			}
			if len(ports) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "порты не найдены")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(ports, "\n"))
			return nil
		},
	}
}

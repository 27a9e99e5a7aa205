package cmd

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ChrisMcGann/pepmass/pkg/core"
	"github.com/ChrisMcGann/pepmass/pkg/precursor"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var summarizeIsotope bool

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(22)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("241")).
			Padding(0, 1)
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize [file]",
	Short: "Summarize a precursor table",
	Long: `Print summary statistics about a precursor table including precursor count,
length and charge distributions, m/z range, modification usage and invalid rows.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		reg, err := cfg.Registry()
		if err != nil {
			return err
		}

		table, err := readPrecursors(args[0], reg)
		if err != nil {
			return err
		}

		if table.Has(core.ColCharge) && !table.Has(core.ColPrecursorMZ) {
			if err := precursor.UpdatePrecursorMZ(reg, table, cfg.BatchSize); err != nil {
				return err
			}
		}
		if summarizeIsotope {
			if err := precursor.CalcPrecursorIsotope(reg, table); err != nil {
				return err
			}
		}

		fmt.Println(renderSummary(args[0], summarize(table)))
		return nil
	},
}

func init() {
	summarizeCmd.Flags().BoolVar(&summarizeIsotope, "isotope", false, "Also summarize isotope envelope apexes")
}

// tableSummary holds the statistics shown by summarize
type tableSummary struct {
	precursors  int
	invalid     int
	minLen      int
	maxLen      int
	charges     map[int]int
	minMZ       float64
	maxMZ       float64
	hasMZ       bool
	mods        map[string]int
	unmodified  int
	hasIsotope  bool
	apexPastM0  int
	isotopeRows int
}

func summarize(t *core.PrecursorTable) tableSummary {
	s := tableSummary{
		precursors: t.Len(),
		invalid:    t.InvalidCount(),
		charges:    make(map[int]int),
		mods:       make(map[string]int),
		minMZ:      math.Inf(1),
		maxMZ:      math.Inf(-1),
		hasIsotope: t.Has(core.ColIsotope),
	}

	for i := range t.Rows {
		p := &t.Rows[i]
		n := len(p.Sequence)
		if i == 0 || n < s.minLen {
			s.minLen = n
		}
		if n > s.maxLen {
			s.maxLen = n
		}
		if t.Has(core.ColCharge) {
			s.charges[p.Charge]++
		}
		if t.Has(core.ColPrecursorMZ) && !math.IsNaN(p.PrecursorMZ) {
			s.hasMZ = true
			s.minMZ = math.Min(s.minMZ, p.PrecursorMZ)
			s.maxMZ = math.Max(s.maxMZ, p.PrecursorMZ)
		}
		if len(p.Mods) == 0 {
			s.unmodified++
		}
		for _, mod := range p.Mods {
			s.mods[mod]++
		}
		if s.hasIsotope && precursor.IsotopeFinite(p.Isotope) {
			s.isotopeRows++
			if p.Isotope.ApexIndex > 0 {
				s.apexPastM0++
			}
		}
	}
	return s
}

func renderSummary(name string, s tableSummary) string {
	row := func(label, value string) string {
		return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), valueStyle.Render(value))
	}

	lines := []string{
		titleStyle.Render(name),
		"",
		row("Precursors", fmt.Sprintf("%d", s.precursors)),
	}
	if s.precursors > 0 {
		lines = append(lines, row("Length (nAA)", fmt.Sprintf("%d - %d", s.minLen, s.maxLen)))
	}

	if len(s.charges) > 0 {
		charges := make([]int, 0, len(s.charges))
		for c := range s.charges {
			charges = append(charges, c)
		}
		sort.Ints(charges)
		parts := make([]string, len(charges))
		for i, c := range charges {
			parts[i] = fmt.Sprintf("%d+: %d", c, s.charges[c])
		}
		lines = append(lines, row("Charges", strings.Join(parts, "  ")))
	}

	if s.hasMZ {
		lines = append(lines, row("Precursor m/z", fmt.Sprintf("%.4f - %.4f", s.minMZ, s.maxMZ)))
	}

	lines = append(lines, row("Unmodified", fmt.Sprintf("%d", s.unmodified)))
	if len(s.mods) > 0 {
		mods := make([]string, 0, len(s.mods))
		for mod := range s.mods {
			mods = append(mods, mod)
		}
		sort.Slice(mods, func(i, j int) bool {
			if s.mods[mods[i]] != s.mods[mods[j]] {
				return s.mods[mods[i]] > s.mods[mods[j]]
			}
			return mods[i] < mods[j]
		})
		if len(mods) > 10 {
			mods = mods[:10]
		}
		for i, mod := range mods {
			label := ""
			if i == 0 {
				label = "Modifications"
			}
			lines = append(lines, row(label, fmt.Sprintf("%s (%d)", mod, s.mods[mod])))
		}
	}

	if s.hasIsotope {
		lines = append(lines, row("Apex past M0", fmt.Sprintf("%d of %d", s.apexPastM0, s.isotopeRows)))
	}

	if s.invalid > 0 {
		lines = append(lines, "", warnStyle.Render(fmt.Sprintf("%d precursors could not be computed", s.invalid)))
	}

	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

package commands

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/medwave/breathscan/pkg/predict"
	"github.com/medwave/breathscan/pkg/risk"
)

var analyzeJSON bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Run the bronchitis risk pipeline on an audio file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := setupLogger(cfg); err != nil {
			return err
		}

		p, cleanup, err := buildPredictor(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		res, err := p.PredictFile(cmd.Context(), args[0])
		if err != nil {
			// The boundary renders the sentinel so the output shape is
			// stable even on failure, then reports the error upward.
			printResult(cmd, predict.ResultFromError(err))
			return err
		}
		printResult(cmd, res)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "machine-readable JSON output")
	rootCmd.AddCommand(analyzeCmd)
}

func printResult(cmd *cobra.Command, res *predict.Result) {
	if analyzeJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		_ = enc.Encode(res)
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderResult(res))
}

var tierColors = map[risk.Tier]lipgloss.Color{
	risk.TierLow:    lipgloss.Color("#2e7d32"),
	risk.TierMedium: lipgloss.Color("#ef6c00"),
	risk.TierHigh:   lipgloss.Color("#c62828"),
}

// renderResult draws the styled risk panel with per-tier advice.
func renderResult(res *predict.Result) string {
	color := tierColors[res.Tier]

	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(0, 2)
	title := lipgloss.NewStyle().Bold(true).Foreground(color)
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681"))

	var b strings.Builder
	b.WriteString(title.Render(strings.ToUpper(res.Tier.String()) + " RISK"))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Prediction   %s\n", res.Label)
	if res.Confidence > 0 {
		fmt.Fprintf(&b, "Confidence   %.1f%%\n", res.Confidence*100)
	}
	fmt.Fprintf(&b, "Risk score   %.1f%%", res.Risk*100)

	if len(res.Probabilities) > 0 {
		b.WriteString("\n\n")
		b.WriteString(dim.Render("Class probabilities"))
		for _, label := range sortedLabels(res.Probabilities) {
			fmt.Fprintf(&b, "\n  %-16s %5.1f%%", label, res.Probabilities[label]*100)
		}
	}

	out := panel.Render(b.String())
	advice := risk.Advice(res.Tier)
	var a strings.Builder
	a.WriteString(dim.Render("Recommendations"))
	for _, line := range advice {
		a.WriteString("\n  • " + line)
	}
	return out + "\n" + a.String() + "\n" +
		dim.Render("Screening aid only; not a medical diagnosis.")
}

func sortedLabels(probs map[string]float64) []string {
	labels := make([]string, 0, len(probs))
	for label := range probs {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

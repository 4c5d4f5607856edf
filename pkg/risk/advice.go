package risk

// Advice returns the recommendation lines for a tier, shown by the CLI
// under the result panel.
func Advice(t Tier) []string {
	switch t {
	case TierHigh:
		return []string{
			"Consult a respiratory physician promptly",
			"Arrange a detailed medical examination",
			"Follow the prescribed treatment plan",
			"Rest and limit exposure to others",
		}
	case TierMedium:
		return []string{
			"Monitor respiratory symptoms closely",
			"Avoid smoking and polluted air",
			"Consider booking a medical consultation",
			"Support immunity with rest and nutrition",
		}
	default:
		return []string{
			"Maintain healthy daily habits",
			"Exercise regularly to build resilience",
			"Take seasonal precautions",
			"Keep a balanced diet and sufficient sleep",
		}
	}
}

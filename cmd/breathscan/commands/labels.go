package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/medwave/breathscan/pkg/classify"
)

var labelsCmd = &cobra.Command{
	Use:   "labels",
	Short: "Print the loaded label taxonomy",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		taxonomy, err := classify.LoadTaxonomy(cfg.Model.LabelsPath)
		if err != nil {
			return err
		}
		for i, label := range taxonomy.Labels() {
			fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", i, label)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(labelsCmd)
}

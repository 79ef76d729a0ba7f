package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List interview categories",
	Run: func(cmd *cobra.Command, _ []string) {
		logger := newLogger()

		config, err := getConfig()
		if err != nil {
			logger.Fatal("getting a config", zap.Error(err))
		}

		bank, err := loadBank(config.Interview)
		if err != nil {
			logger.Fatal("loading the question bank", zap.Error(err))
		}

		out := cmd.OutOrStdout()
		for _, name := range bank.Categories() {
			fmt.Fprintf(out, "%s (%d questions)\n", name, bank.Len(name))
		}
	},
}

func init() {
	rootCmd.AddCommand(categoriesCmd)
}

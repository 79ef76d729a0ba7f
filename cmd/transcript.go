package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var transcriptCmd = &cobra.Command{
	Use:   "transcript [session-id]",
	Short: "Print a saved interview, or list saved interviews without an id",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		logger := newLogger()

		config, err := getConfig()
		if err != nil {
			logger.Fatal("getting a config", zap.Error(err))
		}

		store, err := newStore(config.Storage)
		if err != nil {
			logger.Fatal("opening the session store", zap.Error(err))
		}
		if store == nil {
			logger.Fatal("no session store configured", zap.String("hint", "set storage.driver to file or sqlite"))
		}
		defer store.Close()

		out := cmd.OutOrStdout()

		if len(args) == 0 {
			ids, err := store.List(ctx)
			if err != nil {
				logger.Fatal("listing saved interviews", zap.Error(err))
			}
			for _, id := range ids {
				fmt.Fprintln(out, id)
			}
			return
		}

		rec, err := store.Load(ctx, args[0])
		if err != nil {
			logger.Fatal("loading the interview", zap.String("session_id", args[0]), zap.Error(err))
		}

		// do not bother error since the record was just decoded
		pretty, _ := json.MarshalIndent(rec, "", "  ")
		fmt.Fprintln(out, string(pretty))
	},
}

func init() {
	rootCmd.AddCommand(transcriptCmd)
}

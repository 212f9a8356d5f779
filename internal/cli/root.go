package cli

import (
	"log"
	"os"

	"github.com/spf13/cobra"
)

const defaultDBPath = "gblink.sqlite3"

var dbPath string

var rootCmd = &cobra.Command{
	Use:  `gblink`,
	Long: `gblink opens a Game Boy link cable over TCP and hands the raw socket to the emulator side`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", defaultDBPath, "path of the settings and history database")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(historyCmd)
}

package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rudransh-shrivastava/gblink/internal/db"
	"github.com/rudransh-shrivastava/gblink/internal/logger"
	"github.com/rudransh-shrivastava/gblink/internal/store"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "show the saved link defaults",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.NewLogger()
		if err := showConfig(cmd.Context(), dbPath, cmd.OutOrStdout()); err != nil {
			log.Fatal(err)
		}
	},
}

var (
	setHost    string
	setPort    string
	setTimeout time.Duration
)

var configSetCmd = &cobra.Command{
	Use:   "set",
	Short: "update the saved link defaults",
	Long:  `updates the host, port and connect timeout used when serve or connect are run without arguments`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.NewLogger()
		err := updateConfig(cmd.Context(), dbPath, func(s *db.Settings) {
			if cmd.Flags().Changed("host") {
				s.Host = setHost
			}
			if cmd.Flags().Changed("port") {
				s.Port = setPort
			}
			if cmd.Flags().Changed("timeout") {
				s.ConnectTimeoutMs = setTimeout.Milliseconds()
			}
		})
		if err != nil {
			log.Fatal(err)
			return
		}
		log.Info("Link defaults saved")
	},
}

func showConfig(ctx context.Context, path string, w io.Writer) error {
	gdb, err := db.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(gdb) }()

	s, err := store.NewSettingsStore(gdb).Get(ctx)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "host:    %s\n", s.Host)
	_, _ = fmt.Fprintf(w, "port:    %s\n", s.Port)
	_, _ = fmt.Fprintf(w, "timeout: %s\n", time.Duration(s.ConnectTimeoutMs)*time.Millisecond)
	return nil
}

func updateConfig(ctx context.Context, path string, mutate func(*db.Settings)) error {
	gdb, err := db.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(gdb) }()

	ss := store.NewSettingsStore(gdb)
	s, err := ss.Get(ctx)
	if err != nil {
		return err
	}
	mutate(&s)
	return ss.Save(ctx, s)
}

func init() {
	configSetCmd.Flags().StringVar(&setHost, "host", "", "default peer host for connect")
	configSetCmd.Flags().StringVar(&setPort, "port", "", "default link port")
	configSetCmd.Flags().DurationVar(&setTimeout, "timeout", 0, "default connect timeout")

	configCmd.AddCommand(configSetCmd)
}

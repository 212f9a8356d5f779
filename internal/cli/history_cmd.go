package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rudransh-shrivastava/gblink/internal/db"
	"github.com/rudransh-shrivastava/gblink/internal/logger"
	"github.com/rudransh-shrivastava/gblink/internal/store"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "list recent link attempts",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.NewLogger()
		if err := showHistory(cmd.Context(), dbPath, historyLimit, cmd.OutOrStdout()); err != nil {
			log.Fatal(err)
		}
	},
}

func showHistory(ctx context.Context, path string, limit int, w io.Writer) error {
	gdb, err := db.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(gdb) }()

	rows, err := store.NewAttemptStore(gdb).Recent(ctx, limit)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "no link attempts yet")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TIME\tROLE\tPEER\tSTATE\tERROR")
	for _, r := range rows {
		peer := fmt.Sprintf(":%d", r.Port)
		if r.Host != "" {
			peer = fmt.Sprintf("%s:%d", r.Host, r.Port)
		}
		errText := r.ErrorKind
		if r.Error != "" {
			errText = fmt.Sprintf("%s: %s", r.ErrorKind, r.Error)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			time.UnixMilli(r.CreatedAt).Format(time.DateTime), r.Role, peer, r.State, errText)
	}
	return tw.Flush()
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of attempts to show")
}

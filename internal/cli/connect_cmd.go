package cli

import (
	"time"

	"github.com/rudransh-shrivastava/gblink/internal/link"
	"github.com/spf13/cobra"
)

var (
	connectTimeout time.Duration
	connectQuiet   bool
)

var connectCmd = &cobra.Command{
	Use:   "connect [host] [port]",
	Short: "connect to a link cable peer",
	Long:  `dials a waiting gblink server; host and port fall back to the saved defaults`,
	Args:  cobra.MaximumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		req := linkRequest{
			role:    link.RoleClient,
			timeout: connectTimeout,
			quiet:   connectQuiet,
		}
		if len(args) > 0 {
			req.host = args[0]
		}
		if len(args) > 1 {
			req.port = args[1]
		}
		runLink(req)
	},
}

func init() {
	connectCmd.Flags().DurationVarP(&connectTimeout, "timeout", "t", 0, "connect timeout (defaults to the saved setting)")
	connectCmd.Flags().BoolVarP(&connectQuiet, "quiet", "q", false, "do not show the connecting spinner")
}

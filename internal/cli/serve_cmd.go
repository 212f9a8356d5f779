package cli

import (
	"github.com/rudransh-shrivastava/gblink/internal/link"
	"github.com/spf13/cobra"
)

var serveQuiet bool

var serveCmd = &cobra.Command{
	Use:   "serve [port]",
	Short: "wait for a link cable peer",
	Long:  `listens on the given port (or the saved default) and accepts exactly one link cable peer`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		req := linkRequest{role: link.RoleServer, quiet: serveQuiet}
		if len(args) == 1 {
			req.port = args[0]
		}
		runLink(req)
	},
}

func init() {
	serveCmd.Flags().BoolVarP(&serveQuiet, "quiet", "q", false, "do not show the waiting spinner")
}

package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/fortiblox/x1-tokenledger/pkg/log"
	"github.com/fortiblox/x1-tokenledger/pkg/rpc"
)

func newServeCmd(a *app) *cobra.Command {
	var origins []string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the ledger over JSON-RPC until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			config := rpc.DefaultServerConfig()
			config.AllowedOrigins = origins
			config.Logger = log.WithComponent("rpc")
			config.Metrics = a.metrics

			server := rpc.NewServer(a.bank, config)
			if err := server.Serve(cmd.Context(), a.cfg.RPC.Listen); err != nil {
				return errors.Wrap(err, "rpc server")
			}
			return nil
		},
	}
	cmd.Flags().String("listen", "", "listen address (default: rpc.listen from config, :8899)")
	cmd.Flags().StringSliceVar(&origins, "cors-origin", nil, "allowed CORS origins (default: any)")
	return cmd
}

package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/fortiblox/x1-tokenledger/pkg/snapshot"
)

func newSnapshotCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Export or import the account store",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "export <file>",
			Short: "Write every account to a compressed snapshot file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				f, err := os.Create(args[0])
				if err != nil {
					return errors.Wrap(err, "create snapshot file")
				}
				w := bufio.NewWriter(f)
				manifest, err := snapshot.Write(cmd.Context(), a.db, w)
				if err == nil {
					err = w.Flush()
				}
				if closeErr := f.Close(); err == nil {
					err = closeErr
				}
				if err != nil {
					_ = os.Remove(args[0])
					return errors.Wrapf(err, "export snapshot to %s", args[0])
				}
				a.logger.Info().
					Uint64("accounts", manifest.AccountsCount).
					Str("state_root", manifest.StateRoot.String()).
					Str("file", args[0]).
					Msg("snapshot exported")
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d accounts, state root %s\n", manifest.AccountsCount, manifest.StateRoot)
				return nil
			},
		},
		&cobra.Command{
			Use:   "import <file>",
			Short: "Load a snapshot file into the account store",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				f, err := os.Open(args[0])
				if err != nil {
					return errors.Wrap(err, "open snapshot file")
				}
				defer f.Close()

				result, err := snapshot.Load(cmd.Context(), bufio.NewReader(f), a.db)
				if err != nil {
					return errors.Wrapf(err, "import snapshot %s", args[0])
				}
				root, err := a.bank.StateRoot()
				if err != nil {
					return errors.Wrap(err, "compute state root")
				}
				if root != result.Manifest.StateRoot {
					return errors.Errorf("imported state root %s does not match snapshot root %s", root, result.Manifest.StateRoot)
				}
				a.logger.Info().
					Uint64("accounts", result.AccountsLoaded).
					Str("snapshot_root", result.Manifest.StateRoot.String()).
					Str("ledger_root", root.String()).
					Msg("snapshot imported")
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d accounts, state root %s\n", result.AccountsLoaded, root)
				return nil
			},
		},
	)
	return cmd
}

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/fortiblox/x1-tokenledger/pkg/crypto"
	"github.com/fortiblox/x1-tokenledger/pkg/types"
)

func (a *app) keyPath(name string) string {
	return filepath.Join(a.cfg.KeysDir, name+".json")
}

// signer loads the keypair stored under name.
func (a *app) signer(name string) (*crypto.Keypair, error) {
	kp, err := crypto.ReadKeypairFile(a.keyPath(name))
	if err != nil {
		return nil, errors.Wrapf(err, "load key %q", name)
	}
	return kp, nil
}

func (a *app) payer() (*crypto.Keypair, error) {
	return a.signer(a.payerName)
}

// pubkey resolves a key name from the keys directory, falling back to a
// base58 address.
func (a *app) pubkey(arg string) (types.Pubkey, error) {
	if _, err := os.Stat(a.keyPath(arg)); err == nil {
		kp, err := a.signer(arg)
		if err != nil {
			return types.Pubkey{}, err
		}
		return kp.Pubkey(), nil
	}
	pk, err := types.PubkeyFromBase58(arg)
	if err != nil {
		return types.Pubkey{}, errors.Errorf("%q is neither a key name nor a base58 address", arg)
	}
	return pk, nil
}

func parseAmount(arg string) (uint64, error) {
	v, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid amount %q", arg)
	}
	return v, nil
}

func newKeygenCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:         "keygen <name>",
		Short:       "Generate a keypair and store it in the keys directory",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{skipLedger: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.keyPath(args[0])
			if _, err := os.Stat(path); err == nil && !force {
				return errors.Errorf("key %q already exists at %s (use --force to overwrite)", args[0], path)
			}
			kp, err := crypto.GenerateKeypair()
			if err != nil {
				return errors.Wrap(err, "generate keypair")
			}
			if err := crypto.WriteKeypairFile(path, kp); err != nil {
				return errors.Wrapf(err, "write key %q", args[0])
			}
			a.logger.Info().Str("name", args[0]).Str("path", path).Msg("key generated")
			fmt.Fprintln(cmd.OutOrStdout(), kp.Pubkey())
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing key")
	return cmd
}

func newAirdropCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "airdrop <recipient> <lamports>",
		Short: "Credit lamports to a system account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			recipient, err := a.pubkey(args[0])
			if err != nil {
				return err
			}
			lamports, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			account, err := a.bank.Airdrop(cmd.Context(), recipient, lamports)
			if err != nil {
				return errors.Wrapf(err, "airdrop to %s", recipient)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s balance: %d lamports\n", recipient, account.Lamports)
			return nil
		},
	}
}

// process signs ixs with the payer and signers, runs them and reports the
// outcome. A failed transaction is returned as an error.
func (a *app) process(cmd *cobra.Command, signers []*crypto.Keypair, ixs ...*types.Instruction) error {
	payer, err := a.payer()
	if err != nil {
		return err
	}
	result, err := a.bank.ProcessInstructions(cmd.Context(), payer, signers, ixs...)
	if err != nil {
		return errors.Wrap(err, "process transaction")
	}
	for _, line := range result.Logs {
		a.logger.Debug().Str("signature", result.Signature.String()).Msg(line)
	}
	if result.Err != nil {
		if result.ErrorCode != nil {
			return errors.Wrapf(result.Err, "transaction failed (code %d)", *result.ErrorCode)
		}
		return errors.Wrap(result.Err, "transaction failed")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Signature: %s\n", result.Signature)
	return nil
}

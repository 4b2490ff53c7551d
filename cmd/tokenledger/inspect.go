package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/fortiblox/x1-tokenledger/pkg/svm/programs/token"
	"github.com/fortiblox/x1-tokenledger/pkg/types"
)

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <address>",
		Short: "Print an account, decoding mints and token accounts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pk, err := a.pubkey(args[0])
			if err != nil {
				return err
			}
			account, err := a.bank.GetAccount(pk)
			if err != nil {
				return errors.Wrapf(err, "read %s", pk)
			}
			if account == nil {
				return errors.Errorf("account %s not found", pk)
			}
			renderAccount(cmd.OutOrStdout(), pk, account)
			return nil
		},
	}
}

func renderAccount(w io.Writer, pk types.Pubkey, account *types.Account) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRows([]table.Row{
		{"Address", pk},
		{"Owner", account.Owner},
		{"Lamports", uint64(account.Lamports)},
		{"Data Length", len(account.Data)},
		{"Executable", account.Executable},
	})

	if account.Owner == types.TokenProgramID {
		switch len(account.Data) {
		case token.MintSize:
			if mint, err := token.DeserializeMintUnchecked(account.Data); err == nil {
				t.AppendSeparator()
				t.AppendRows([]table.Row{
					{"Kind", "Mint"},
					{"Initialized", mint.IsInitialized},
					{"Supply", mint.Supply},
					{"Decimals", mint.Decimals},
					{"Mint Authority", optionString(mint.MintAuthority)},
					{"Freeze Authority", optionString(mint.FreezeAuthority)},
				})
			}
		case token.AccountSize:
			if holding, err := token.DeserializeAccountUnchecked(account.Data); err == nil {
				native := "no"
				if holding.IsNativeAccount() {
					native = fmt.Sprintf("reserve %d", holding.IsNative.Value)
				}
				delegate := optionString(holding.Delegate)
				if holding.Delegate.IsSome {
					delegate = fmt.Sprintf("%s (%d)", delegate, holding.DelegatedAmount)
				}
				t.AppendSeparator()
				t.AppendRows([]table.Row{
					{"Kind", "Token Account"},
					{"Initialized", holding.IsInitialized},
					{"Mint", holding.Mint},
					{"Token Owner", holding.Owner},
					{"Amount", holding.Amount},
					{"Native", native},
					{"Delegate", delegate},
					{"Frozen", holding.IsFrozen},
				})
			}
		}
	}
	t.Render()
}

func optionString(o token.COption) string {
	if !o.IsSome {
		return "none"
	}
	return o.Value.String()
}

func newStateHashCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "state-hash",
		Short: "Print the Merkle root over all accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, err := a.bank.StateRoot()
			if err != nil {
				return errors.Wrap(err, "compute state root")
			}
			fmt.Fprintln(cmd.OutOrStdout(), root)
			return nil
		},
	}
}

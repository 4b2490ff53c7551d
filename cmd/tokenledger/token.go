package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/fortiblox/x1-tokenledger/pkg/crypto"
	"github.com/fortiblox/x1-tokenledger/pkg/svm/programs/system"
	"github.com/fortiblox/x1-tokenledger/pkg/svm/programs/token"
	"github.com/fortiblox/x1-tokenledger/pkg/types"
)

func newCreateMintCmd(a *app) *cobra.Command {
	var (
		decimals        uint8
		authority       string
		freezeAuthority string
	)
	cmd := &cobra.Command{
		Use:   "create-mint <mint-key>",
		Short: "Allocate and initialize a mint at a stored keypair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mint, err := a.signer(args[0])
			if err != nil {
				return err
			}
			payer, err := a.payer()
			if err != nil {
				return err
			}
			mintAuthority := payer.Pubkey()
			if authority != "" {
				if mintAuthority, err = a.pubkey(authority); err != nil {
					return err
				}
			}
			var freeze token.COption
			if freezeAuthority != "" {
				pk, err := a.pubkey(freezeAuthority)
				if err != nil {
					return err
				}
				freeze = token.Some(pk)
			}

			lamports := a.bank.Rent().MinimumBalance(token.MintSize)
			return a.process(cmd, []*crypto.Keypair{mint},
				system.NewCreateAccountInstruction(payer.Pubkey(), mint.Pubkey(), lamports, token.MintSize, types.TokenProgramID),
				token.NewInitializeMintInstruction(mint.Pubkey(), decimals, mintAuthority, freeze),
			)
		},
	}
	cmd.Flags().Uint8Var(&decimals, "decimals", token.NativeDecimals, "decimal places of the token")
	cmd.Flags().StringVar(&authority, "authority", "", "mint authority (default: payer)")
	cmd.Flags().StringVar(&freezeAuthority, "freeze-authority", "", "freeze authority (default: none)")
	return cmd
}

// createTokenAccount allocates account and initializes it for mint,
// funding extra lamports above the rent-exempt minimum.
func (a *app) createTokenAccount(cmd *cobra.Command, accountKey, mintArg, ownerArg string, extra uint64) error {
	account, err := a.signer(accountKey)
	if err != nil {
		return err
	}
	payer, err := a.payer()
	if err != nil {
		return err
	}
	owner := payer.Pubkey()
	if ownerArg != "" {
		if owner, err = a.pubkey(ownerArg); err != nil {
			return err
		}
	}
	mint := types.NativeMintID
	if mintArg != "" {
		if mint, err = a.pubkey(mintArg); err != nil {
			return err
		}
	}

	lamports := a.bank.Rent().MinimumBalance(token.AccountSize) + extra
	return a.process(cmd, []*crypto.Keypair{account},
		system.NewCreateAccountInstruction(payer.Pubkey(), account.Pubkey(), lamports, token.AccountSize, types.TokenProgramID),
		token.NewInitializeAccountInstruction(account.Pubkey(), mint, owner),
	)
}

func newCreateAccountCmd(a *app) *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "create-account <account-key> <mint>",
		Short: "Allocate and initialize a token account at a stored keypair",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.createTokenAccount(cmd, args[0], args[1], owner, 0)
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "account owner (default: payer)")
	return cmd
}

func newWrapCmd(a *app) *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "wrap <account-key> <lamports>",
		Short: "Create a wrapped native account holding lamports above rent",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lamports, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			return a.createTokenAccount(cmd, args[0], "", owner, lamports)
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "account owner (default: payer)")
	return cmd
}

// authority resolves the signing authority named by flag, defaulting to
// the payer.
func (a *app) authority(name string) (*crypto.Keypair, error) {
	if name == "" {
		name = a.payerName
	}
	return a.signer(name)
}

func newMintToCmd(a *app) *cobra.Command {
	var authority string
	cmd := &cobra.Command{
		Use:   "mint-to <mint> <destination> <amount>",
		Short: "Mint new tokens into an account",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			mint, err := a.pubkey(args[0])
			if err != nil {
				return err
			}
			dest, err := a.pubkey(args[1])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[2])
			if err != nil {
				return err
			}
			auth, err := a.authority(authority)
			if err != nil {
				return err
			}
			return a.process(cmd, []*crypto.Keypair{auth},
				token.NewMintToInstruction(mint, dest, auth.Pubkey(), amount))
		},
	}
	cmd.Flags().StringVar(&authority, "authority", "", "mint authority key (default: payer)")
	return cmd
}

func newTransferCmd(a *app) *cobra.Command {
	var authority string
	cmd := &cobra.Command{
		Use:   "transfer <source> <destination> <amount>",
		Short: "Move tokens between accounts of the same mint",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := a.pubkey(args[0])
			if err != nil {
				return err
			}
			dst, err := a.pubkey(args[1])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[2])
			if err != nil {
				return err
			}
			auth, err := a.authority(authority)
			if err != nil {
				return err
			}
			return a.process(cmd, []*crypto.Keypair{auth},
				token.NewTransferInstruction(src, dst, auth.Pubkey(), amount))
		},
	}
	cmd.Flags().StringVar(&authority, "authority", "", "owner or delegate key (default: payer)")
	return cmd
}

func newTransferCheckedCmd(a *app) *cobra.Command {
	var authority string
	cmd := &cobra.Command{
		Use:   "transfer-checked <source> <destination> <amount> <decimals>",
		Short: "Transfer, asserting the mint and its decimals",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := a.pubkey(args[0])
			if err != nil {
				return err
			}
			dst, err := a.pubkey(args[1])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[2])
			if err != nil {
				return err
			}
			decimals, err := parseAmount(args[3])
			if err != nil || decimals > 255 {
				return errors.Errorf("invalid decimals %q", args[3])
			}
			source, err := a.bank.GetTokenAccount(src)
			if err != nil {
				return errors.Wrapf(err, "read source %s", src)
			}
			auth, err := a.authority(authority)
			if err != nil {
				return err
			}
			return a.process(cmd, []*crypto.Keypair{auth},
				token.NewTransferCheckedInstruction(src, source.Mint, dst, auth.Pubkey(), amount, uint8(decimals)))
		},
	}
	cmd.Flags().StringVar(&authority, "authority", "", "owner or delegate key (default: payer)")
	return cmd
}

func newBurnCmd(a *app) *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "burn <account> <amount>",
		Short: "Destroy tokens held by an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			acct, err := a.pubkey(args[0])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			holding, err := a.bank.GetTokenAccount(acct)
			if err != nil {
				return errors.Wrapf(err, "read account %s", acct)
			}
			auth, err := a.authority(owner)
			if err != nil {
				return err
			}
			return a.process(cmd, []*crypto.Keypair{auth},
				token.NewBurnInstruction(acct, holding.Mint, auth.Pubkey(), amount))
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "account owner key (default: payer)")
	return cmd
}

func newSyncNativeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync-native <account>",
		Short: "Set a wrapped native balance from its lamports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			acct, err := a.pubkey(args[0])
			if err != nil {
				return err
			}
			return a.process(cmd, nil, token.NewSyncNativeInstruction(acct))
		},
	}
}

func newApproveCmd(a *app) *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "approve <source> <delegate> <amount>",
		Short: "Allow a delegate to transfer up to amount",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := a.pubkey(args[0])
			if err != nil {
				return err
			}
			delegate, err := a.pubkey(args[1])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[2])
			if err != nil {
				return err
			}
			auth, err := a.authority(owner)
			if err != nil {
				return err
			}
			return a.process(cmd, []*crypto.Keypair{auth},
				token.NewApproveInstruction(src, delegate, auth.Pubkey(), amount))
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "account owner key (default: payer)")
	return cmd
}

func newRevokeCmd(a *app) *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "revoke <source>",
		Short: "Clear the delegate of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := a.pubkey(args[0])
			if err != nil {
				return err
			}
			auth, err := a.authority(owner)
			if err != nil {
				return err
			}
			return a.process(cmd, []*crypto.Keypair{auth}, token.NewRevokeInstruction(src, auth.Pubkey()))
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "account owner key (default: payer)")
	return cmd
}

// newFreezeCmd builds freeze, or thaw when thaw is set.
func newFreezeCmd(a *app, thaw bool) *cobra.Command {
	use, short := "freeze <account>", "Freeze a token account"
	if thaw {
		use, short = "thaw <account>", "Thaw a frozen token account"
	}
	var authority string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			acct, err := a.pubkey(args[0])
			if err != nil {
				return err
			}
			holding, err := a.bank.GetTokenAccount(acct)
			if err != nil {
				return errors.Wrapf(err, "read account %s", acct)
			}
			auth, err := a.authority(authority)
			if err != nil {
				return err
			}
			ix := token.NewFreezeAccountInstruction(acct, holding.Mint, auth.Pubkey())
			if thaw {
				ix = token.NewThawAccountInstruction(acct, holding.Mint, auth.Pubkey())
			}
			return a.process(cmd, []*crypto.Keypair{auth}, ix)
		},
	}
	cmd.Flags().StringVar(&authority, "authority", "", "freeze authority key (default: payer)")
	return cmd
}

func newSetAuthorityCmd(a *app) *cobra.Command {
	var authority string
	cmd := &cobra.Command{
		Use:   "set-authority <owned> <MintTokens|FreezeAccount|AccountOwner> <new-authority|none>",
		Short: "Change or clear an authority of a mint or account",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			owned, err := a.pubkey(args[0])
			if err != nil {
				return err
			}
			kind, err := token.ParseAuthorityType(args[1])
			if err != nil {
				return err
			}
			var next token.COption
			if args[2] != "none" {
				pk, err := a.pubkey(args[2])
				if err != nil {
					return err
				}
				next = token.Some(pk)
			}
			auth, err := a.authority(authority)
			if err != nil {
				return err
			}
			return a.process(cmd, []*crypto.Keypair{auth},
				token.NewSetAuthorityInstruction(owned, auth.Pubkey(), kind, next))
		},
	}
	cmd.Flags().StringVar(&authority, "authority", "", "current authority key (default: payer)")
	return cmd
}

func newCloseCmd(a *app) *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "close <account> <destination>",
		Short: "Close a token account and reclaim its lamports",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			acct, err := a.pubkey(args[0])
			if err != nil {
				return err
			}
			dest, err := a.pubkey(args[1])
			if err != nil {
				return err
			}
			auth, err := a.authority(owner)
			if err != nil {
				return err
			}
			if err := a.process(cmd, []*crypto.Keypair{auth}, token.NewCloseAccountInstruction(acct, dest, auth.Pubkey())); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Closed %s\n", acct)
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "account owner key (default: payer)")
	return cmd
}

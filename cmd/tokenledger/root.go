package main

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/fortiblox/x1-tokenledger/pkg/accounts"
	"github.com/fortiblox/x1-tokenledger/pkg/bank"
	"github.com/fortiblox/x1-tokenledger/pkg/config"
	"github.com/fortiblox/x1-tokenledger/pkg/log"
	"github.com/fortiblox/x1-tokenledger/pkg/metrics"
)

// skipLedger marks commands that run without opening the account store.
const skipLedger = "skip-ledger"

// app is the state shared by every subcommand of one invocation.
type app struct {
	configPath string
	payerName  string

	cfg     *config.Config
	logger  zerolog.Logger
	db      accounts.AccountsDB
	bank    *bank.Bank
	metrics *metrics.Metrics
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{}

	root := &cobra.Command{
		Use:           "tokenledger",
		Short:         "Local token ledger",
		Long:          "tokenledger runs token program instructions against a persistent local account store.",
		Version:       Version + " (" + GitCommit + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			return a.setup(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.close()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default: ./"+config.DefaultConfigFile+" if present)")
	flags.StringVar(&a.payerName, "payer", "payer", "key name that pays fees and funds new accounts")
	flags.String("data-dir", "", "ledger directory")
	flags.String("keys-dir", "", "keypair directory")
	flags.String("storage", "", "account store: badger or memory")
	flags.String("log-level", "", "log level: trace, debug, info, warn, error")
	flags.String("log-format", "", "log format: console or json")
	flags.Bool("verify-signatures", true, "verify transaction signatures")

	root.AddCommand(
		newKeygenCmd(a),
		newAirdropCmd(a),
		newCreateMintCmd(a),
		newCreateAccountCmd(a),
		newWrapCmd(a),
		newMintToCmd(a),
		newTransferCmd(a),
		newTransferCheckedCmd(a),
		newBurnCmd(a),
		newSyncNativeCmd(a),
		newApproveCmd(a),
		newRevokeCmd(a),
		newFreezeCmd(a, false),
		newFreezeCmd(a, true),
		newSetAuthorityCmd(a),
		newCloseCmd(a),
		newShowCmd(a),
		newStateHashCmd(a),
		newSnapshotCmd(a),
		newServeCmd(a),
	)
	return root, a
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath, cmd.Flags())
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	a.cfg = cfg

	log.Init(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	a.logger = log.WithComponent("cli")

	if cmd.Annotations[skipLedger] != "" {
		return nil
	}
	return a.open()
}

func (a *app) open() error {
	switch a.cfg.Storage {
	case config.StorageMemory:
		a.db = accounts.NewMemoryDB()
	default:
		db, err := accounts.NewBadgerDB(a.cfg.DataDir, log.WithComponent("badger"))
		if err != nil {
			return errors.Wrapf(err, "open ledger at %s", a.cfg.DataDir)
		}
		a.db = db
	}

	a.metrics = metrics.New()
	b, err := bank.New(a.db,
		bank.WithMetrics(a.metrics),
		bank.WithRent(a.cfg.Rent.Sysvar()),
		bank.WithSignatureVerification(a.cfg.Bank.VerifySignatures),
		bank.WithLogger(log.WithComponent("bank")),
	)
	if err != nil {
		_ = a.db.Close()
		a.db = nil
		return errors.Wrap(err, "initialize bank")
	}
	a.bank = b
	a.logger.Debug().Str("storage", a.cfg.Storage).Str("data_dir", a.cfg.DataDir).Msg("ledger opened")
	return nil
}

func (a *app) close() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db, a.bank = nil, nil
	return errors.Wrap(err, "close ledger")
}

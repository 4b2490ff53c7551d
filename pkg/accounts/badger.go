package accounts

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/fortiblox/x1-tokenledger/pkg/types"
)

const (
	// accountKeyPrefix is the prefix for account keys in BadgerDB.
	accountKeyPrefix = "account:"
)

// BadgerDB is a persistent AccountsDB backed by BadgerDB.
type BadgerDB struct {
	db    *badger.DB
	count atomic.Uint64
}

// badgerLogger forwards badger's internal logging to zerolog. Badger is
// chatty at info, so info is demoted to debug.
type badgerLogger struct {
	log zerolog.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.log.Error().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.log.Warn().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.log.Debug().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.log.Trace().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// NewBadgerDB opens (or creates) a BadgerDB account database at path.
func NewBadgerDB(path string, logger zerolog.Logger) (*BadgerDB, error) {
	return openBadger(badger.DefaultOptions(path), logger)
}

// NewInMemoryBadgerDB opens a BadgerDB that keeps everything in memory.
func NewInMemoryBadgerDB(logger zerolog.Logger) (*BadgerDB, error) {
	return openBadger(badger.DefaultOptions("").WithInMemory(true), logger)
}

func openBadger(opts badger.Options, logger zerolog.Logger) (*BadgerDB, error) {
	opts.Logger = badgerLogger{log: logger.With().Str("component", "badger").Logger()}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	bdb := &BadgerDB{db: db}

	count, err := bdb.countAccounts()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to count accounts: %w", err)
	}
	bdb.count.Store(count)

	return bdb, nil
}

// makeAccountKey creates the key for an account.
func makeAccountKey(pubkey types.Pubkey) []byte {
	key := make([]byte, len(accountKeyPrefix)+len(pubkey))
	copy(key, accountKeyPrefix)
	copy(key[len(accountKeyPrefix):], pubkey[:])
	return key
}

// GetAccount retrieves an account by pubkey.
// Returns nil, nil if account does not exist.
func (db *BadgerDB) GetAccount(pubkey types.Pubkey) (*types.Account, error) {
	var account *types.Account

	err := db.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(makeAccountKey(pubkey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var deserErr error
			account, deserErr = DeserializeAccount(val)
			return deserErr
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", pubkey, err)
	}
	return account, nil
}

// SetAccount stores an account.
func (db *BadgerDB) SetAccount(pubkey types.Pubkey, account *types.Account) error {
	return db.Apply([]types.AccountDelta{{Pubkey: pubkey, NewAccount: account}})
}

// DeleteAccount removes an account.
func (db *BadgerDB) DeleteAccount(pubkey types.Pubkey) error {
	return db.Apply([]types.AccountDelta{{Pubkey: pubkey}})
}

// Apply writes every delta in one badger transaction. The account count
// is adjusted only after the transaction commits.
func (db *BadgerDB) Apply(deltas []types.AccountDelta) error {
	var added, removed uint64

	err := db.db.Update(func(txn *badger.Txn) error {
		added, removed = 0, 0
		for i := range deltas {
			d := &deltas[i]
			key := makeAccountKey(d.Pubkey)

			_, err := txn.Get(key)
			exists := err == nil
			if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}

			if isRemoval(d) {
				if !exists {
					continue
				}
				if err := txn.Delete(key); err != nil {
					return err
				}
				removed++
				continue
			}

			data, err := SerializeAccount(d.NewAccount)
			if err != nil {
				return err
			}
			if err := txn.Set(key, data); err != nil {
				return err
			}
			if !exists {
				added++
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to apply %d account deltas: %w", len(deltas), err)
	}

	db.count.Add(added)
	db.count.Add(-removed)
	return nil
}

// HasAccount returns true if the account exists.
func (db *BadgerDB) HasAccount(pubkey types.Pubkey) bool {
	var exists bool
	_ = db.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(makeAccountKey(pubkey))
		exists = err == nil
		return nil
	})
	return exists
}

// GetAccountsCount returns the total number of accounts.
func (db *BadgerDB) GetAccountsCount() uint64 {
	return db.count.Load()
}

// ForEach iterates accounts in key order, which is pubkey order.
func (db *BadgerDB) ForEach(fn func(pubkey types.Pubkey, account *types.Account) error) error {
	prefix := []byte(accountKeyPrefix)

	err := db.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var pubkey types.Pubkey
			copy(pubkey[:], item.Key()[len(prefix):])

			err := item.Value(func(val []byte) error {
				account, err := DeserializeAccount(val)
				if err != nil {
					return fmt.Errorf("account %s: %w", pubkey, err)
				}
				return fn(pubkey, account)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, ErrStopIteration) {
		return nil
	}
	return err
}

// Close closes the database.
func (db *BadgerDB) Close() error {
	return db.db.Close()
}

// countAccounts counts all accounts in the database.
func (db *BadgerDB) countAccounts() (uint64, error) {
	var count uint64
	prefix := []byte(accountKeyPrefix)

	err := db.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})

	return count, err
}

// Ensure BadgerDB implements AccountsDB.
var _ AccountsDB = (*BadgerDB)(nil)

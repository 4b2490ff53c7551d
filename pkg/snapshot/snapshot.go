// Package snapshot exports and imports the full account set as a single
// zstd-compressed stream.
//
// Stream layout, before compression:
//
//	magic:8 "TLSNAP01" | account_count:8 | state_root:32
//	account_count x (pubkey:32 | len:4 | stored account:len)
//
// Integers are little-endian and records are in ascending pubkey order.
package snapshot

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/bits"

	"github.com/klauspost/compress/zstd"

	"github.com/fortiblox/x1-tokenledger/pkg/accounts"
	"github.com/fortiblox/x1-tokenledger/pkg/types"
)

// Magic identifies a snapshot stream.
const Magic = "TLSNAP01"

const (
	headerSize = len(Magic) + 8 + 32

	// maxRecordSize bounds a single stored account.
	maxRecordSize = 10*1024*1024 + 64

	// DefaultBatchSize is the number of accounts written per Apply during Load.
	DefaultBatchSize = 1024
)

var (
	// ErrInvalidSnapshot is returned when the stream is malformed or truncated.
	ErrInvalidSnapshot = errors.New("invalid snapshot")

	// ErrStateRootMismatch is returned when the decoded accounts do not hash
	// to the root recorded in the header.
	ErrStateRootMismatch = errors.New("snapshot state root mismatch")

	// ErrTargetNotEmpty is returned when the target store holds accounts
	// other than the native mint.
	ErrTargetNotEmpty = errors.New("snapshot target store is not empty")
)

// Manifest is the snapshot header.
type Manifest struct {
	AccountsCount uint64
	StateRoot     types.Hash
}

// LoadResult summarizes an import.
type LoadResult struct {
	Manifest       Manifest
	AccountsLoaded uint64
	LamportsTotal  uint64
}

// Write streams every account of db to w. The caller must not modify db
// concurrently.
func Write(ctx context.Context, db accounts.AccountsDB, w io.Writer) (*Manifest, error) {
	root, err := accounts.StateRoot(db)
	if err != nil {
		return nil, fmt.Errorf("compute state root: %w", err)
	}
	manifest := &Manifest{AccountsCount: db.GetAccountsCount(), StateRoot: root}

	encoder, err := zstd.NewWriter(w)
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	buf := bufio.NewWriter(encoder)

	header := make([]byte, 0, headerSize)
	header = append(header, Magic...)
	header = binary.LittleEndian.AppendUint64(header, manifest.AccountsCount)
	header = append(header, root[:]...)
	if _, err := buf.Write(header); err != nil {
		encoder.Close()
		return nil, err
	}

	var written uint64
	err = db.ForEach(func(pubkey types.Pubkey, account *types.Account) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		record, err := accounts.SerializeAccount(account)
		if err != nil {
			return err
		}
		var prefix [36]byte
		copy(prefix[:32], pubkey[:])
		binary.LittleEndian.PutUint32(prefix[32:], uint32(len(record)))
		if _, err := buf.Write(prefix[:]); err != nil {
			return err
		}
		if _, err := buf.Write(record); err != nil {
			return err
		}
		written++
		return nil
	})
	if err == nil && written != manifest.AccountsCount {
		err = fmt.Errorf("store reported %d accounts but iterated %d", manifest.AccountsCount, written)
	}
	if err == nil {
		err = buf.Flush()
	}
	if closeErr := encoder.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("write snapshot: %w", err)
	}
	return manifest, nil
}

// Load decodes a snapshot from r, verifies its state root and writes its
// accounts into db. The target may hold nothing but the native mint, which
// the snapshot replaces, so db ends up with exactly the snapshot's state
// root. Nothing is written when decoding or verification fails.
func Load(ctx context.Context, r io.Reader, db accounts.AccountsDB) (*LoadResult, error) {
	if err := checkTarget(db); err != nil {
		return nil, err
	}

	decoder, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	defer decoder.Close()
	in := bufio.NewReader(decoder)

	manifest, err := readHeader(in)
	if err != nil {
		return nil, err
	}

	staged := accounts.NewMemoryDB()
	result := &LoadResult{Manifest: *manifest}
	for i := uint64(0); i < manifest.AccountsCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pubkey, account, err := readRecord(in)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrInvalidSnapshot, i, err)
		}
		if staged.HasAccount(pubkey) {
			return nil, fmt.Errorf("%w: duplicate account %s", ErrInvalidSnapshot, pubkey)
		}
		if err := staged.SetAccount(pubkey, account); err != nil {
			return nil, err
		}
		result.AccountsLoaded++
		total, carry := bits.Add64(result.LamportsTotal, uint64(account.Lamports), 0)
		if carry != 0 {
			return nil, fmt.Errorf("%w: lamport total overflows at record %d", ErrInvalidSnapshot, i)
		}
		result.LamportsTotal = total
	}
	if _, err := in.ReadByte(); !errors.Is(err, io.EOF) {
		if err == nil {
			return nil, fmt.Errorf("%w: trailing data after %d records", ErrInvalidSnapshot, manifest.AccountsCount)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}

	root, err := accounts.StateRoot(staged)
	if err != nil {
		return nil, err
	}
	if root != manifest.StateRoot {
		return nil, fmt.Errorf("%w: header %s, computed %s", ErrStateRootMismatch, manifest.StateRoot, root)
	}

	batch := make([]types.AccountDelta, 0, DefaultBatchSize)
	if !staged.HasAccount(types.NativeMintID) && db.HasAccount(types.NativeMintID) {
		batch = append(batch, types.AccountDelta{Pubkey: types.NativeMintID})
	}
	err = staged.ForEach(func(pubkey types.Pubkey, account *types.Account) error {
		batch = append(batch, types.AccountDelta{Pubkey: pubkey, NewAccount: account})
		if len(batch) < DefaultBatchSize {
			return nil
		}
		err := db.Apply(batch)
		batch = batch[:0]
		return err
	})
	if err == nil && len(batch) > 0 {
		err = db.Apply(batch)
	}
	if err != nil {
		return nil, fmt.Errorf("store accounts: %w", err)
	}
	return result, nil
}

func checkTarget(db accounts.AccountsDB) error {
	var stray types.Pubkey
	found := false
	err := db.ForEach(func(pubkey types.Pubkey, _ *types.Account) error {
		if pubkey == types.NativeMintID {
			return nil
		}
		stray, found = pubkey, true
		return accounts.ErrStopIteration
	})
	if err != nil {
		return fmt.Errorf("scan target store: %w", err)
	}
	if found {
		return fmt.Errorf("%w: holds %d accounts, including %s", ErrTargetNotEmpty, db.GetAccountsCount(), stray)
	}
	return nil
}

func readHeader(r io.Reader) (*Manifest, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrInvalidSnapshot, err)
	}
	if string(header[:len(Magic)]) != Magic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrInvalidSnapshot, header[:len(Magic)])
	}
	manifest := &Manifest{
		AccountsCount: binary.LittleEndian.Uint64(header[len(Magic):]),
	}
	copy(manifest.StateRoot[:], header[len(Magic)+8:])
	return manifest, nil
}

func readRecord(r io.Reader) (types.Pubkey, *types.Account, error) {
	var prefix [36]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return types.Pubkey{}, nil, err
	}
	var pubkey types.Pubkey
	copy(pubkey[:], prefix[:32])

	size := binary.LittleEndian.Uint32(prefix[32:])
	if size > maxRecordSize {
		return types.Pubkey{}, nil, fmt.Errorf("record of %d bytes exceeds limit", size)
	}
	record := make([]byte, size)
	if _, err := io.ReadFull(r, record); err != nil {
		return types.Pubkey{}, nil, err
	}
	account, err := accounts.DeserializeAccount(record)
	if err != nil {
		return types.Pubkey{}, nil, err
	}
	return pubkey, account, nil
}

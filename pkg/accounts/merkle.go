package accounts

import (
	"bytes"
	"sort"

	"github.com/fortiblox/x1-tokenledger/pkg/crypto"
	"github.com/fortiblox/x1-tokenledger/pkg/types"
)

const (
	// merkleArity is the number of children per node in the Merkle tree.
	merkleArity = 16
)

// StateRoot computes the 16-ary blake3 Merkle root over every account in
// db. Leaves are Account.Hash values in pubkey order; an empty store has
// the zero root.
func StateRoot(db AccountsDB) (types.Hash, error) {
	hashes := make([]types.Hash, 0, db.GetAccountsCount())
	err := db.ForEach(func(pubkey types.Pubkey, account *types.Account) error {
		hashes = append(hashes, account.Hash(pubkey))
		return nil
	})
	if err != nil {
		return types.ZeroHash, err
	}
	return computeMerkleRoot(hashes), nil
}

// DeltaRoot computes the same tree over a set of deltas, hashing deletions
// as an empty account. It summarizes what one transaction changed.
func DeltaRoot(deltas []types.AccountDelta) types.Hash {
	if len(deltas) == 0 {
		return types.ZeroHash
	}

	sorted := make([]types.AccountDelta, len(deltas))
	copy(sorted, deltas)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].Pubkey[:], sorted[j].Pubkey[:]) < 0
	})

	hashes := make([]types.Hash, len(sorted))
	for i := range sorted {
		account := sorted[i].NewAccount
		if account == nil {
			account = &types.Account{}
		}
		hashes[i] = account.Hash(sorted[i].Pubkey)
	}
	return computeMerkleRoot(hashes)
}

// computeMerkleRoot folds hashes level by level until one remains.
func computeMerkleRoot(hashes []types.Hash) types.Hash {
	if len(hashes) == 0 {
		return types.ZeroHash
	}
	for len(hashes) > 1 {
		hashes = computeNextLevel(hashes)
	}
	return hashes[0]
}

func computeNextLevel(hashes []types.Hash) []types.Hash {
	numParents := (len(hashes) + merkleArity - 1) / merkleArity
	parents := make([]types.Hash, numParents)

	for i := range numParents {
		start := i * merkleArity
		end := min(start+merkleArity, len(hashes))
		parents[i] = hashChildren(hashes[start:end])
	}
	return parents
}

// hashChildren hashes the concatenation of a node's children. A lone child
// is promoted unchanged.
func hashChildren(children []types.Hash) types.Hash {
	if len(children) == 1 {
		return children[0]
	}
	data := make([]byte, 0, len(children)*len(types.Hash{}))
	for _, child := range children {
		data = append(data, child[:]...)
	}
	return crypto.Hash(data)
}

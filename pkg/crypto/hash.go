package crypto

import (
	"github.com/zeebo/blake3"

	"github.com/fortiblox/x1-tokenledger/pkg/types"
)

// Hash computes the BLAKE3-256 digest of data.
func Hash(data []byte) types.Hash {
	return blake3.Sum256(data)
}

// HashMulti computes the BLAKE3-256 digest of the concatenation of slices.
func HashMulti(data ...[]byte) types.Hash {
	h := blake3.New()
	for _, d := range data {
		h.Write(d)
	}
	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}

package contentstore

import (
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// CID computes the CIDv1 (raw multicodec, sha2-256 multihash) string for
// data. Every store implementation adheres to this contract so identical
// bytes map to the identical identifier everywhere.
func CID(data []byte) (string, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return "", err
	}
	return cid.NewCidV1(cid.Raw, sum).String(), nil
}

// VerifyCID reports whether data hashes to the given identifier.
func VerifyCID(id string, data []byte) bool {
	want, err := cid.Decode(id)
	if err != nil {
		return false
	}
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return false
	}
	return cid.NewCidV1(cid.Raw, sum).Equals(want)
}

package ir

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/cockroachdb/errors"
)

// Domain prefixes for content digests. The version suffix allows the
// encoding to change without colliding with old digests.
const (
	DomainModel = "fpgalower/model/v1"
	DomainLayer = "fpgalower/layer/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Digest returns the content digest of the lowered model. The stamp is
// excluded so two lowerings of the same graph and config agree.
func Digest(m *Model) (string, error) {
	enc, err := EncodeModel(m)
	if err != nil {
		return "", errors.Wrap(err, "digest")
	}
	delete(enc, "stamp")
	canonical, err := MarshalCanonical(enc)
	if err != nil {
		return "", errors.Wrap(err, "digest")
	}
	return hashWithDomain(DomainModel, canonical), nil
}

// LayerDigest returns the content digest of a single node.
func LayerDigest(n *LayerNode) (string, error) {
	enc, err := EncodeNode(n)
	if err != nil {
		return "", errors.Wrap(err, "layer digest")
	}
	canonical, err := MarshalCanonical(enc)
	if err != nil {
		return "", errors.Wrap(err, "layer digest")
	}
	return hashWithDomain(DomainLayer, canonical), nil
}

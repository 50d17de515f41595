package hive

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	"golang.org/x/crypto/ripemd160"
)

// PublicKeyPrefix is the address prefix of Hive public keys.
const PublicKeyPrefix = "STM"

const checksumLen = 4

// ErrInvalidPublicKey is returned for keys that are not STM-encoded
// compressed secp256k1 points.
var ErrInvalidPublicKey = errors.New("invalid public key")

// KeyDeriver derives the public key implied by a private key.
type KeyDeriver interface {
	PublicKey(secret string) (string, error)
}

// WIFDeriver derives STM public keys from WIF-encoded private keys.
type WIFDeriver struct{}

// PublicKey decodes the WIF secret and returns its STM public key.
func (WIFDeriver) PublicKey(secret string) (string, error) {
	wif, err := btcutil.DecodeWIF(secret)
	if err != nil {
		return "", fmt.Errorf("failed to decode private key: %w", err)
	}
	return EncodePublicKey(wif.PrivKey.PubKey()), nil
}

// EncodePublicKey renders a public key as STM + base58(key || ripemd160(key)[:4]).
func EncodePublicKey(pub *btcec.PublicKey) string {
	key := pub.SerializeCompressed()
	return PublicKeyPrefix + base58.Encode(append(key, keyChecksum(key)...))
}

// ParsePublicKey decodes an STM public key and checks that it is on the curve.
func ParsePublicKey(s string) (*btcec.PublicKey, error) {
	if !strings.HasPrefix(s, PublicKeyPrefix) {
		return nil, fmt.Errorf("%w: missing %s prefix", ErrInvalidPublicKey, PublicKeyPrefix)
	}
	raw := base58.Decode(strings.TrimPrefix(s, PublicKeyPrefix))
	if len(raw) != btcec.PubKeyBytesLenCompressed+checksumLen {
		return nil, fmt.Errorf("%w: unexpected length %d", ErrInvalidPublicKey, len(raw))
	}

	key, sum := raw[:btcec.PubKeyBytesLenCompressed], raw[btcec.PubKeyBytesLenCompressed:]
	if !bytes.Equal(keyChecksum(key), sum) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrInvalidPublicKey)
	}

	pub, err := btcec.ParsePubKey(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return pub, nil
}

// SamePublicKey reports whether two STM keys encode the same point.
func SamePublicKey(a, b string) bool {
	if a == b {
		return true
	}
	pa, err := ParsePublicKey(a)
	if err != nil {
		return false
	}
	pb, err := ParsePublicKey(b)
	if err != nil {
		return false
	}
	return pa.IsEqual(pb)
}

func keyChecksum(key []byte) []byte {
	h := ripemd160.New()
	h.Write(key)
	return h.Sum(nil)[:checksumLen]
}

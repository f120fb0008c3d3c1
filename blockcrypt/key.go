package blockcrypt

import (
	"encoding/hex"

	"github.com/crooks/chatvault/crandom"
	"github.com/dchest/blake2s"
)

// KeySize is the length of the shared secret in Bytes.
const KeySize = 32

// Domain separation labels.  The seed and keystream derivations must never
// produce related output.
const (
	seedLabel      = "chatvault layout seed"
	keystreamLabel = "chatvault private keystream"
)

// Key is the long-lived symmetric secret.  It is read-only once constructed
// and may be shared between goroutines.
type Key struct {
	secret [KeySize]byte
}

// GenerateKey returns a new random Key.
func GenerateKey() (*Key, error) {
	k := new(Key)
	if err := crandom.Read(k.secret[:]); err != nil {
		return nil, err
	}
	return k, nil
}

// NewKey copies b into a new Key.
func NewKey(b []byte) (*Key, error) {
	if len(b) != KeySize {
		return nil, validationErr(
			"invalid key length. Expected=%d, Got=%d", KeySize, len(b),
		)
	}
	k := new(Key)
	copy(k.secret[:], b)
	return k, nil
}

// KeyFromHex decodes a 64 char hex string into a Key.
func KeyFromHex(s string) (*Key, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, validationErr("key is not valid hex")
	}
	return NewKey(b)
}

// ExportHex returns the secret as lowercase hex.  It exists for operators
// writing key files; nothing else should serialize the secret.
func (k *Key) ExportHex() string {
	return hex.EncodeToString(k.secret[:])
}

// Seed returns the 32 Byte seed for the layout generator.
func (k *Key) Seed() [32]byte {
	return digest([]byte(seedLabel), k.secret[:])
}

// Keystream returns length Bytes of private keystream.  The stream is a chain
// of digests: d0 = H(label || secret), d1 = H(d0), ...  Output for a shorter
// length is always a prefix of output for a longer one.
func (k *Key) Keystream(length int) []byte {
	if length <= 0 {
		return []byte{}
	}
	ks := make([]byte, 0, length+32)
	d := digest([]byte(keystreamLabel), k.secret[:])
	for len(ks) < length {
		ks = append(ks, d[:]...)
		d = digest(d[:])
	}
	return ks[:length]
}

// obscure is the private layer.  It XORs data with the keystream and is its
// own inverse.
func (k *Key) obscure(data []byte) []byte {
	ks := k.Keystream(len(data))
	out := make([]byte, len(data))
	for i := range data {
		out[i] = data[i] ^ ks[i]
	}
	return out
}

// digest returns the unkeyed BLAKE2s-256 of the concatenated parts.
func digest(parts ...[]byte) (d [32]byte) {
	h, err := blake2s.New(nil)
	if err != nil {
		// A nil config can't be rejected
		panic(err)
	}
	for _, p := range parts {
		h.Write(p)
	}
	copy(d[:], h.Sum(nil))
	return
}

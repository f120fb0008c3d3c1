package blockcrypt

import (
	"crypto/aes"
	"crypto/cipher"

	"github.com/crooks/chatvault/crandom"
)

// NonceSize is the AES-GCM nonce length prepended to every sealed blob.
const NonceSize = 12

// newGCM returns AES-256-GCM keyed with the raw secret.  A GCM instance holds
// no per-call state so one can be shared by concurrent callers.
func newGCM(k *Key) cipher.AEAD {
	block, err := aes.NewCipher(k.secret[:])
	if err != nil {
		// Only reachable with a bad key length, which Key prevents
		panic(err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		panic(err)
	}
	return gcm
}

// seal encrypts plain under a fresh random nonce and returns
// nonce || ciphertext+tag.
func seal(gcm cipher.AEAD, plain []byte) ([]byte, error) {
	out := make([]byte, NonceSize, NonceSize+len(plain)+gcm.Overhead())
	if err := crandom.Read(out); err != nil {
		return nil, &Error{Kind: Crypto, Msg: "nonce generation: " + err.Error()}
	}
	return gcm.Seal(out, out[:NonceSize], plain, nil), nil
}

// open reverses seal.  Every failure, including a blob too short to hold a
// nonce, is reported as the same Crypto error.
func open(gcm cipher.AEAD, blob []byte) ([]byte, error) {
	if len(blob) < NonceSize {
		return nil, authFailed()
	}
	plain, err := gcm.Open(nil, blob[:NonceSize], blob[NonceSize:], nil)
	if err != nil {
		return nil, authFailed()
	}
	return plain, nil
}

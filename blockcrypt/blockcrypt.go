// Package blockcrypt protects chat message bodies.  A plaintext passes through
// a private keystream layer, AES-256-GCM, a key-derived block shuffle and
// decoy block injection before being framed with its own sealed metadata.
//
// Shuffle and padding layout are a function of the key and the block count
// only; two messages of equal length under one key share a layout.
package blockcrypt

import "crypto/cipher"

// Cipher runs the protection pipeline under a single Key.  It holds no
// mutable state and is safe for concurrent use.
type Cipher struct {
	key *Key
	gcm cipher.AEAD
}

// New returns a Cipher for k.
func New(k *Key) *Cipher {
	return &Cipher{key: k, gcm: newGCM(k)}
}

// layout draws the permutation and padding for n real blocks and returns the
// padded, shuffled list along with the metadata needed to undo it.
func (c *Cipher) layout(blocks []Block) ([]Block, []int, []int) {
	g := newGenerator(c.key.Seed())
	perm := derivePermutation(len(blocks), g)
	shuffled, err := applyPermutation(blocks, perm)
	if err != nil {
		// perm was derived for exactly len(blocks)
		panic(err)
	}
	padded, positions := injectPadding(shuffled, g)
	return padded, perm, positions
}

// Encrypt protects plaintext and returns a self-describing frame.  Errors are
// limited to entropy failure and metadata too large for the frame header.
func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	sealed, err := seal(c.gcm, c.key.obscure(plaintext))
	if err != nil {
		return nil, err
	}
	padded, perm, positions := c.layout(split(sealed))
	meta := &metadata{
		originalLen: len(sealed),
		permutation: perm,
		padding:     positions,
	}
	sealedMeta, err := seal(c.gcm, meta.encode())
	if err != nil {
		return nil, err
	}
	return encodeFrame(sealedMeta, padded)
}

// Decrypt reverses Encrypt.  A tampered frame or one sealed under another key
// fails with ErrCrypto or ErrValidation; no partial plaintext is returned.
func (c *Cipher) Decrypt(frame []byte) ([]byte, error) {
	sealedMeta, blockBytes, err := decodeFrame(frame)
	if err != nil {
		return nil, err
	}
	metaBytes, err := open(c.gcm, sealedMeta)
	if err != nil {
		return nil, err
	}
	meta, err := decodeMetadata(metaBytes)
	if err != nil {
		return nil, err
	}
	blocks, err := splitExact(blockBytes)
	if err != nil {
		return nil, err
	}
	unpadded, err := removePadding(blocks, meta.padding)
	if err != nil {
		return nil, err
	}
	unshuffled, err := invertPermutation(unpadded, meta.permutation)
	if err != nil {
		return nil, err
	}
	sealed := merge(unshuffled)
	if len(sealed) < meta.originalLen {
		return nil, validationErr(
			"merged blocks too short. Expected>=%d, Got=%d",
			meta.originalLen,
			len(sealed),
		)
	}
	obscured, err := open(c.gcm, sealed[:meta.originalLen])
	if err != nil {
		return nil, err
	}
	return c.key.obscure(obscured), nil
}

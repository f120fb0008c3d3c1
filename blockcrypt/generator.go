package blockcrypt

import (
	"encoding/binary"

	"golang.org/x/crypto/chacha20"
)

// generator is a deterministic byte source: the raw ChaCha20 keystream under
// the layout seed and an all-zero nonce.  Every Encrypt and Decrypt builds its
// own, so no generator state is ever shared.
type generator struct {
	c *chacha20.Cipher
}

func newGenerator(seed [32]byte) *generator {
	var nonce [chacha20.NonceSize]byte
	c, err := chacha20.NewUnauthenticatedCipher(seed[:], nonce[:])
	if err != nil {
		// Key and nonce sizes are fixed above
		panic(err)
	}
	return &generator{c: c}
}

// fill overwrites b with the next len(b) Bytes of the stream.
func (g *generator) fill(b []byte) {
	for i := range b {
		b[i] = 0
	}
	g.c.XORKeyStream(b, b)
}

func (g *generator) uint32() uint32 {
	var b [4]byte
	g.fill(b[:])
	return binary.LittleEndian.Uint32(b[:])
}

// intn returns a value in [0, n).  The plain modulo reduction carries a small
// bias for n that don't divide 2^32; layouts depend on it staying this way.
func (g *generator) intn(n int) int {
	return int(g.uint32() % uint32(n))
}

func (g *generator) block() (b Block) {
	g.fill(b[:])
	return
}

package blockcrypt

// BlockSize is the size of every block in a frame.
const BlockSize = 16

// Block is one fixed-size unit of the shuffled payload.
type Block [BlockSize]byte

// split chunks b into Blocks, zero padding the last one.
func split(b []byte) []Block {
	blocks := make([]Block, (len(b)+BlockSize-1)/BlockSize)
	for i := range blocks {
		copy(blocks[i][:], b[i*BlockSize:])
	}
	return blocks
}

// splitExact is split for input that must already be block aligned.
func splitExact(b []byte) ([]Block, error) {
	if len(b)%BlockSize != 0 {
		return nil, validationErr(
			"block region (%d Bytes) is not a multiple of %d", len(b), BlockSize,
		)
	}
	return split(b), nil
}

// merge concatenates blocks.  Trailing zero padding is left in place; the
// caller truncates to the known length.
func merge(blocks []Block) []byte {
	out := make([]byte, 0, len(blocks)*BlockSize)
	for i := range blocks {
		out = append(out, blocks[i][:]...)
	}
	return out
}

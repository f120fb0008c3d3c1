package blockcrypt

import (
	"encoding/binary"
	"fmt"
)

/*
Frame
[ Metadata length	  2 Bytes ] (big endian)
[ Sealed metadata	  n Bytes ] (12 Byte nonce + ciphertext + 16 Byte tag)
[ Blocks		16 Bytes * count ]
*/

const (
	frameHeaderBytes = 2
	maxMetaBytes     = 1<<16 - 1
)

// encodeFrame assembles the wire frame.
func encodeFrame(sealedMeta []byte, blocks []Block) ([]byte, error) {
	if len(sealedMeta) > maxMetaBytes {
		return nil, &Error{
			Kind: Encoding,
			Msg: fmt.Sprintf(
				"sealed metadata (%d Bytes) exceeds maximum (%d Bytes)",
				len(sealedMeta),
				maxMetaBytes,
			),
		}
	}
	frame := make([]byte, frameHeaderBytes, frameHeaderBytes+len(sealedMeta)+len(blocks)*BlockSize)
	binary.BigEndian.PutUint16(frame, uint16(len(sealedMeta)))
	frame = append(frame, sealedMeta...)
	for i := range blocks {
		frame = append(frame, blocks[i][:]...)
	}
	return frame, nil
}

// decodeFrame splits a frame into its sealed metadata and block region.  The
// returned slices alias frame.
func decodeFrame(frame []byte) (sealedMeta, blockBytes []byte, err error) {
	if len(frame) < frameHeaderBytes {
		err = validationErr(
			"frame too short. Expected>=%d, Got=%d", frameHeaderBytes, len(frame),
		)
		return
	}
	metaLen := int(binary.BigEndian.Uint16(frame))
	rest := frame[frameHeaderBytes:]
	if metaLen > len(rest) {
		err = validationErr(
			"metadata length %d exceeds remaining %d Bytes", metaLen, len(rest),
		)
		return
	}
	sealedMeta = rest[:metaLen]
	blockBytes = rest[metaLen:]
	if len(blockBytes)%BlockSize != 0 {
		err = validationErr(
			"block region (%d Bytes) is not a multiple of %d",
			len(blockBytes),
			BlockSize,
		)
		sealedMeta, blockBytes = nil, nil
	}
	return
}

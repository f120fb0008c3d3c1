package blockcrypt

import (
	"bytes"
	"encoding/binary"
	"math"
)

/*
Metadata (before sealing)
[ Original length	uvarint ]
[ Permutation count	uvarint ]
[ Permutation		uvarint * count ]
[ Padding count		uvarint ]
[ Padding positions	uvarint * count ]
*/
type metadata struct {
	originalLen int
	permutation []int
	padding     []int
}

func (m *metadata) encode() []byte {
	buf := new(bytes.Buffer)
	tmp := make([]byte, binary.MaxVarintLen64)
	put := func(v int) {
		n := binary.PutUvarint(tmp, uint64(v))
		buf.Write(tmp[:n])
	}
	put(m.originalLen)
	put(len(m.permutation))
	for _, v := range m.permutation {
		put(v)
	}
	put(len(m.padding))
	for _, v := range m.padding {
		put(v)
	}
	return buf.Bytes()
}

// metaReader walks an encoded metadata record.  Every value occupies at least
// one Byte, which bounds list counts by what's left in the buffer.
type metaReader struct {
	b []byte
}

func (r *metaReader) int() (int, error) {
	v, n := binary.Uvarint(r.b)
	if n <= 0 {
		return 0, validationErr("truncated metadata")
	}
	if v > math.MaxInt32 {
		return 0, validationErr("metadata value %d out of range", v)
	}
	r.b = r.b[n:]
	return int(v), nil
}

func (r *metaReader) list() ([]int, error) {
	count, err := r.int()
	if err != nil {
		return nil, err
	}
	if count > len(r.b) {
		return nil, validationErr(
			"metadata list of %d exceeds remaining %d Bytes", count, len(r.b),
		)
	}
	l := make([]int, count)
	for i := range l {
		l[i], err = r.int()
		if err != nil {
			return nil, err
		}
	}
	return l, nil
}

func decodeMetadata(b []byte) (m *metadata, err error) {
	r := &metaReader{b: b}
	m = new(metadata)
	if m.originalLen, err = r.int(); err != nil {
		return nil, err
	}
	if m.permutation, err = r.list(); err != nil {
		return nil, err
	}
	if m.padding, err = r.list(); err != nil {
		return nil, err
	}
	if len(r.b) != 0 {
		return nil, validationErr("%d trailing Bytes after metadata", len(r.b))
	}
	return m, nil
}

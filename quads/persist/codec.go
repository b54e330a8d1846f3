package persist

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/quadmill/quadmill/quads"
)

// Binary tuple encoding: four values back to back, each a 1-byte kind tag
// followed by its payload. Symbols and text carry a uvarint length and raw
// bytes; numbers are 8 fixed bytes of big-endian IEEE 754 bits. The encoding
// is canonical (equal tuples encode to equal bytes), which the journal's
// dedup index relies on.

// EncodeTuple renders t in the binary form.
func EncodeTuple(t quads.Tuple) []byte {
	buf := make([]byte, 0, 64)
	for i := 0; i < quads.NumSlots; i++ {
		buf = appendValue(buf, t.Slot(i))
	}
	return buf
}

// DecodeTuple parses a binary tuple, rejecting trailing bytes.
func DecodeTuple(data []byte) (quads.Tuple, error) {
	var vals [quads.NumSlots]quads.Value
	rest := data
	for i := 0; i < quads.NumSlots; i++ {
		var err error
		vals[i], rest, err = decodeValue(rest)
		if err != nil {
			return quads.Tuple{}, fmt.Errorf("slot %d: %w", i, err)
		}
	}
	if len(rest) != 0 {
		return quads.Tuple{}, fmt.Errorf("%d trailing bytes after tuple", len(rest))
	}
	return quads.NewTuple(vals[0], vals[1], vals[2], vals[3])
}

func appendValue(buf []byte, v quads.Value) []byte {
	buf = append(buf, byte(v.Kind()))
	switch v.Kind() {
	case quads.KindSymbol:
		s, _ := v.Symbol()
		buf = binary.AppendUvarint(buf, uint64(len(s)))
		return append(buf, s...)
	case quads.KindText:
		s, _ := v.Text()
		buf = binary.AppendUvarint(buf, uint64(len(s)))
		return append(buf, s...)
	case quads.KindNumber:
		n, _ := v.Number()
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], math.Float64bits(n))
		return append(buf, b[:]...)
	default:
		// Zero values never reach the journal; NewTuple rejects them
		return buf
	}
}

func decodeValue(data []byte) (quads.Value, []byte, error) {
	if len(data) < 1 {
		return quads.Value{}, nil, fmt.Errorf("value bytes too short")
	}
	kind := quads.Kind(data[0])
	data = data[1:]

	switch kind {
	case quads.KindSymbol, quads.KindText:
		n, read := binary.Uvarint(data)
		if read <= 0 {
			return quads.Value{}, nil, fmt.Errorf("bad length prefix")
		}
		data = data[read:]
		if uint64(len(data)) < n {
			return quads.Value{}, nil, fmt.Errorf("truncated payload: want %d bytes, have %d", n, len(data))
		}
		s := string(data[:n])
		if kind == quads.KindSymbol {
			return quads.Sym(s), data[n:], nil
		}
		return quads.Text(s), data[n:], nil

	case quads.KindNumber:
		if len(data) < 8 {
			return quads.Value{}, nil, fmt.Errorf("truncated number")
		}
		bits := binary.BigEndian.Uint64(data[:8])
		return quads.Num(math.Float64frombits(bits)), data[8:], nil

	default:
		return quads.Value{}, nil, fmt.Errorf("unknown value kind %d", kind)
	}
}

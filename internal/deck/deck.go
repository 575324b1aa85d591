package deck

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
)

const (
	MinMain  = 40
	MaxMain  = 60
	MaxExtra = 15
	MaxSide  = 15
)

var ErrMalformed = errors.New("malformed deck blob")

type Deck struct {
	Main  []uint32 `json:"main"`
	Extra []uint32 `json:"extra"`
	Side  []uint32 `json:"side"`
}

func (d Deck) Clone() Deck {
	return Deck{
		Main:  slices.Clone(d.Main),
		Extra: slices.Clone(d.Extra),
		Side:  slices.Clone(d.Side),
	}
}

func (d Deck) Len() int { return len(d.Main) + len(d.Extra) + len(d.Side) }

// Marshal writes the three section counts followed by every code, little endian.
// Card order is kept so Unmarshal returns the exact same deck.
func (d Deck) Marshal() []byte {
	buf := make([]byte, 0, 12+4*d.Len())
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(d.Main)))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(d.Extra)))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(d.Side)))
	for _, section := range [][]uint32{d.Main, d.Extra, d.Side} {
		for _, code := range section {
			buf = binary.LittleEndian.AppendUint32(buf, code)
		}
	}
	return buf
}

func Unmarshal(b []byte) (Deck, error) {
	if len(b) < 12 {
		return Deck{}, ErrMalformed
	}
	mainc := binary.LittleEndian.Uint32(b[0:4])
	extrac := binary.LittleEndian.Uint32(b[4:8])
	sidec := binary.LittleEndian.Uint32(b[8:12])
	total := uint64(mainc) + uint64(extrac) + uint64(sidec)
	if uint64(len(b)-12) != total*4 {
		return Deck{}, fmt.Errorf("%w: want %d codes, have %d bytes", ErrMalformed, total, len(b)-12)
	}
	off := 12
	read := func(n uint32) []uint32 {
		out := make([]uint32, n)
		for i := range out {
			out[i] = binary.LittleEndian.Uint32(b[off : off+4])
			off += 4
		}
		return out
	}
	return Deck{Main: read(mainc), Extra: read(extrac), Side: read(sidec)}, nil
}

// Fingerprint is the order-independent serialization: two decks have equal
// fingerprints iff every section holds the same multiset of codes.
func (d Deck) Fingerprint() []byte {
	sorted := Deck{
		Main:  sortedCopy(d.Main),
		Extra: sortedCopy(d.Extra),
		Side:  sortedCopy(d.Side),
	}
	return sorted.Marshal()
}

func SameCards(a, b Deck) bool {
	return bytes.Equal(a.Fingerprint(), b.Fingerprint())
}

// SideCompatible reports whether next is a legal between-games rearrangement of
// start: main and extra keep their sizes and the combined multiset is unchanged.
func SideCompatible(start, next Deck) bool {
	if len(start.Main) != len(next.Main) || len(start.Extra) != len(next.Extra) || len(start.Side) != len(next.Side) {
		return false
	}
	counts := make(map[uint32]int, start.Len())
	for _, section := range [][]uint32{start.Main, start.Extra, start.Side} {
		for _, code := range section {
			counts[code]++
		}
	}
	for _, section := range [][]uint32{next.Main, next.Extra, next.Side} {
		for _, code := range section {
			counts[code]--
			if counts[code] < 0 {
				return false
			}
		}
	}
	return true
}

func sortedCopy(in []uint32) []uint32 {
	out := slices.Clone(in)
	slices.Sort(out)
	return out
}

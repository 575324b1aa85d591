package deck

const (
	TypeMonster uint32 = 0x1
	TypeFusion  uint32 = 0x40
	TypeSynchro uint32 = 0x2000
	TypeXyz     uint32 = 0x800000
	TypeLink    uint32 = 0x4000000
)

// CardReader resolves a card code to its type bits.
type CardReader interface {
	CardType(code uint32) (uint32, bool)
}

func IsExtraType(t uint32) bool {
	return t&(TypeFusion|TypeSynchro|TypeXyz|TypeLink) != 0
}

// Split rebuilds a deck from a submission, moving every extra-deck card type out of
// the main section. Without a reader the client's own split is trusted.
func Split(main, extra, side []uint32, cards CardReader) Deck {
	if cards == nil {
		return Deck{Main: clone(main), Extra: clone(extra), Side: clone(side)}
	}
	d := Deck{
		Main:  make([]uint32, 0, len(main)+len(extra)),
		Extra: make([]uint32, 0, len(extra)),
		Side:  clone(side),
	}
	for _, section := range [][]uint32{main, extra} {
		for _, code := range section {
			if t, ok := cards.CardType(code); ok && IsExtraType(t) {
				d.Extra = append(d.Extra, code)
				continue
			}
			d.Main = append(d.Main, code)
		}
	}
	return d
}

func clone(in []uint32) []uint32 {
	if in == nil {
		return []uint32{}
	}
	return append([]uint32(nil), in...)
}

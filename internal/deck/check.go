package deck

import (
	"errors"
	"fmt"
)

var ErrInvalidDeck = errors.New("invalid deck")

type Reason string

const (
	ReasonMainCount   Reason = "main_count"
	ReasonExtraCount  Reason = "extra_count"
	ReasonSideCount   Reason = "side_count"
	ReasonTooMany     Reason = "too_many_copies"
	ReasonUnknownCard Reason = "unknown_card"
)

// CheckError names the first rule a deck broke and, when relevant, the card.
type CheckError struct {
	Reason Reason
	Code   uint32
}

func (e *CheckError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: %s (card %d)", ErrInvalidDeck, e.Reason, e.Code)
	}
	return fmt.Sprintf("%s: %s", ErrInvalidDeck, e.Reason)
}

func (e *CheckError) Unwrap() error { return ErrInvalidDeck }

// Checker decides whether a deck may be used in a room.
type Checker interface {
	Check(d Deck) error
}

type CheckerFunc func(d Deck) error

func (f CheckerFunc) Check(d Deck) error { return f(d) }

// NoCheck accepts every deck.
var NoCheck Checker = CheckerFunc(func(Deck) error { return nil })

// DefaultChecker enforces section sizes and the copy limit. With Cards set it
// also rejects codes the card database does not know.
type DefaultChecker struct {
	Cards     CardReader
	MaxCopies int
}

func (c DefaultChecker) Check(d Deck) error {
	if len(d.Main) < MinMain || len(d.Main) > MaxMain {
		return &CheckError{Reason: ReasonMainCount}
	}
	if len(d.Extra) > MaxExtra {
		return &CheckError{Reason: ReasonExtraCount}
	}
	if len(d.Side) > MaxSide {
		return &CheckError{Reason: ReasonSideCount}
	}
	limit := c.MaxCopies
	if limit <= 0 {
		limit = 3
	}
	counts := make(map[uint32]int, d.Len())
	for _, section := range [][]uint32{d.Main, d.Extra, d.Side} {
		for _, code := range section {
			if c.Cards != nil {
				if _, ok := c.Cards.CardType(code); !ok {
					return &CheckError{Reason: ReasonUnknownCard, Code: code}
				}
			}
			counts[code]++
			if counts[code] > limit {
				return &CheckError{Reason: ReasonTooMany, Code: code}
			}
		}
	}
	return nil
}

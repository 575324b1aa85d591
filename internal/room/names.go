package room

import (
	"strconv"
	"strings"
	"time"

	"duel-server/internal/protocol"
)

// ParseRoomName reads host options from a room name of the form
// "OPT,OPT,...#title". Names without '#' use the defaults unchanged.
// Unknown options are ignored.
//
//	M, MATCH   match mode (first to two wins)
//	T, TAG     tag duel, four seats
//	S, SINGLE  single game
//	NC         skip deck legality checks
//	LP<n>      starting life points
//	ST<n>      starting hand size
//	DR<n>      cards drawn per turn
//	TM<n>      time bank in seconds, 0 disables it
//	BO<n>      best-of-n match
//	R<n>       rule set
func ParseRoomName(name string, defaults protocol.HostInfo) protocol.HostInfo {
	host := defaults
	head, _, ok := strings.Cut(name, "#")
	if !ok {
		return host
	}
	for _, raw := range strings.Split(head, ",") {
		opt := strings.ToUpper(strings.TrimSpace(raw))
		switch opt {
		case "":
			continue
		case "M", "MATCH":
			host.Mode = protocol.ModeMatch
			continue
		case "T", "TAG":
			host.Mode = protocol.ModeTag
			continue
		case "S", "SINGLE":
			host.Mode = protocol.ModeSingle
			continue
		case "NC", "NOCHECK":
			host.NoCheckDeck = true
			continue
		}
		for _, prefix := range []string{"LP", "ST", "DR", "TM", "BO", "R"} {
			rest, found := strings.CutPrefix(opt, prefix)
			if !found {
				continue
			}
			n, err := strconv.Atoi(rest)
			if err != nil || n < 0 {
				break
			}
			switch prefix {
			case "LP":
				if n > 0 && n <= 99999 {
					host.StartLP = int32(n)
				}
			case "ST":
				if n > 0 && n <= 40 {
					host.StartHand = n
				}
			case "DR":
				if n > 0 && n <= 35 {
					host.DrawCount = n
				}
			case "TM":
				host.TimeLimit = time.Duration(n) * time.Second
			case "BO":
				if n%2 == 1 {
					host.BestOf = n
				}
			case "R":
				host.Rule = n
			}
			break
		}
	}
	return host
}

package room

import (
	"strconv"
	"testing"

	"duel-server/internal/deck"
	"duel-server/internal/protocol"
)

func TestJoinSeatsPlayersThenObservers(t *testing.T) {
	h := newHarness(t, singleHost(), nil)
	alice, ac := h.connect("alice", "10.0.0.1:4000")
	h.join(alice, "lobby")
	bob, _ := h.connect("bob", "10.0.0.2:4000")
	h.join(bob, "lobby")
	carol, cc := h.connect("carol", "10.0.0.3:4000")
	h.join(carol, "lobby")

	h.inspect("lobby", func(r *Room) {
		if r.seats[0] != alice || r.seats[1] != bob {
			t.Errorf("seats = %v, want alice and bob", r.seats)
		}
		if len(r.observers) != 1 || r.observers[0] != carol {
			t.Errorf("observers = %v, want carol", r.observers)
		}
		if !alice.host || bob.host || carol.host {
			t.Errorf("host flags = %v %v %v, want only alice", alice.host, bob.host, carol.host)
		}
	})

	h.flush(alice, carol)
	tc := cc.ofType(t, "type_change")
	if len(tc) != 1 || tc[0].Pos != protocol.ObserverPos {
		t.Fatalf("observer type_change = %+v", tc)
	}
	if enters := cc.ofType(t, "player_enter"); len(enters) != 2 {
		t.Fatalf("observer saw %d player_enter, want 2", len(enters))
	}
	counts := ac.ofType(t, "watcher_count")
	if len(counts) == 0 || counts[len(counts)-1].Count != 1 {
		t.Fatalf("host watcher_count = %+v, want last count 1", counts)
	}
}

func TestLobbyLeaveFreesSeatAndMovesHost(t *testing.T) {
	h := newHarness(t, singleHost(), nil)
	alice, _ := h.connect("alice", "10.0.0.1:4000")
	h.join(alice, "lobby")
	bob, bc := h.connect("bob", "10.0.0.2:4000")
	h.join(bob, "lobby")

	h.send(alice, protocol.Disconnect{})
	h.inspect("lobby", func(r *Room) {
		if r.seats[0] != nil {
			t.Errorf("seat 0 still taken after leaving in the lobby")
		}
		if r.tickets.len() != 0 {
			t.Errorf("lobby leave created %d tickets", r.tickets.len())
		}
		if !bob.host {
			t.Errorf("host did not move to bob")
		}
	})

	h.flush(bob)
	leaves := bc.ofType(t, "player_change")
	if len(leaves) != 1 || leaves[0].State != string(protocol.StateLeave) || leaves[0].Pos != 0 {
		t.Fatalf("player_change = %+v, want leave of seat 0", leaves)
	}
	var promoted bool
	for _, fr := range bc.ofType(t, "type_change") {
		if string(fr.Host) == "true" {
			promoted = true
		}
	}
	if !promoted {
		t.Fatal("bob was not told he is host")
	}

	carol, _ := h.connect("carol", "10.0.0.3:4000")
	h.join(carol, "lobby")
	h.inspect("lobby", func(r *Room) {
		if r.seats[0] != carol {
			t.Errorf("carol should take the freed seat 0")
		}
	})
}

func TestLastLeaveFinalizesRoom(t *testing.T) {
	h := newHarness(t, singleHost(), nil)
	alice, ac := h.connect("alice", "10.0.0.1:4000")
	h.join(alice, "lobby")
	r := h.reg.Get("lobby")

	h.send(alice, protocol.Disconnect{})
	waitDone(t, r)
	waitClosed(t, ac)
	if h.reg.Get("lobby") != nil {
		t.Fatal("empty room still registered")
	}
}

func TestWrongPasswordRejected(t *testing.T) {
	h := newHarness(t, singleHost(), nil)
	alice, _ := h.connect("alice", "10.0.0.1:4000")
	h.send(alice, protocol.Join{Room: "locked", Pass: "s3cret"})
	bob, bc := h.connect("bob", "10.0.0.2:4000")
	h.send(bob, protocol.Join{Room: "locked", Pass: "guess"})

	waitClosed(t, bc)
	errs := bc.ofType(t, "error")
	if len(errs) != 1 || errs[0].Code != protocol.ErrJoin {
		t.Fatalf("errors = %+v, want one join_error", errs)
	}
	if bob.RoomName() != "" {
		t.Fatalf("bob joined %q with a wrong password", bob.RoomName())
	}
}

func TestIngamePosIsInvolution(t *testing.T) {
	for _, swapped := range []bool{false, true} {
		r := newRoom("positions", singleHost(), Options{}.withDefaults(), nil)
		r.swapped = swapped
		for dp := 0; dp < 2; dp++ {
			if got := r.duelPosOfIngame(r.ingamePos(dp)); got != dp {
				t.Fatalf("swapped=%v: ingame(ingame(%d)) = %d", swapped, dp, got)
			}
		}
		want := 0
		if swapped {
			want = 1
		}
		if got := r.ingamePos(0); got != want {
			t.Fatalf("swapped=%v: ingamePos(0) = %d, want %d", swapped, got, want)
		}
		r.cancel()
	}
}

func TestTagDuelPositions(t *testing.T) {
	r := newRoom("tag", protocol.HostInfo{Mode: protocol.ModeTag}, Options{}.withDefaults(), nil)
	defer r.cancel()
	wantDP := []int{0, 0, 1, 1}
	for seat, want := range wantDP {
		if got := r.duelPos(seat); got != want {
			t.Fatalf("duelPos(%d) = %d, want %d", seat, got, want)
		}
	}
	if got := r.teamSeats(1); len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Fatalf("teamSeats(1) = %v, want [2 3]", got)
	}
	if got := r.firstSeat(1); got != 2 {
		t.Fatalf("firstSeat(1) = %d, want 2", got)
	}
}

func TestOperatingIndex(t *testing.T) {
	cases := []struct {
		turn int
		ip0  int
		ip1  int
	}{
		{0, 0, 0},
		{1, 0, 0},
		{2, 0, 1},
		{3, 1, 1},
		{4, 1, 0},
		{5, 0, 0},
		{6, 0, 1},
	}
	for _, tc := range cases {
		if got := operatingIndex(0, tc.turn); got != tc.ip0 {
			t.Errorf("operatingIndex(0, %d) = %d, want %d", tc.turn, got, tc.ip0)
		}
		if got := operatingIndex(1, tc.turn); got != tc.ip1 {
			t.Errorf("operatingIndex(1, %d) = %d, want %d", tc.turn, got, tc.ip1)
		}
	}
}

func TestDeckRejectedByChecker(t *testing.T) {
	h := newHarness(t, singleHost(), nil)
	alice, ac := h.connect("alice", "10.0.0.1:4000")
	h.join(alice, "lobby")

	h.send(alice, protocol.ReadyDeck{Main: []uint32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}})
	h.flush(alice)
	errs := ac.ofType(t, "error")
	if len(errs) != 1 || errs[0].Code != protocol.ErrDeck || errs[0].Detail != "main_count" {
		t.Fatalf("errors = %+v, want deck_error main_count", errs)
	}
	h.inspect("lobby", func(r *Room) {
		if alice.ready {
			t.Errorf("alice is ready with an illegal deck")
		}
	})

	h.send(alice, readyMsg(testDeck(100)))
	h.inspect("lobby", func(r *Room) {
		if !alice.ready {
			t.Errorf("alice not ready with a legal deck")
		}
	})
}

func TestNoCheckRoomSkipsChecker(t *testing.T) {
	rejectAll := deck.CheckerFunc(func(deck.Deck) error { return deck.ErrInvalidDeck })
	h := newHarness(t, singleHost(), func(o *Options) { o.Checker = rejectAll })
	alice, _ := h.connect("alice", "10.0.0.1:4000")
	h.join(alice, "NC#free")
	h.send(alice, protocol.ReadyDeck{Main: []uint32{1, 1, 1, 1, 1}})
	h.inspect("NC#free", func(r *Room) {
		if !alice.ready {
			t.Errorf("no-check room rejected a deck")
		}
	})
}

func TestStartNeedsHostAndReadySeats(t *testing.T) {
	h := newHarness(t, singleHost(), nil)
	alice, ac := h.connect("alice", "10.0.0.1:4000")
	h.join(alice, "lobby")
	bob, bc := h.connect("bob", "10.0.0.2:4000")
	h.join(bob, "lobby")

	h.send(alice, readyMsg(testDeck(100)))
	h.send(alice, protocol.Start{})
	h.inspect("lobby", func(r *Room) {
		if r.stage != StageBegin {
			t.Errorf("started with bob unready: %s", r.stage)
		}
	})

	h.send(bob, readyMsg(testDeck(200)))
	h.send(bob, protocol.Start{})
	h.inspect("lobby", func(r *Room) {
		if r.stage != StageBegin {
			t.Errorf("non-host started the match")
		}
	})

	h.send(alice, protocol.Start{})
	h.inspect("lobby", func(r *Room) {
		if r.stage != StageFinger {
			t.Errorf("stage = %s, want finger", r.stage)
		}
	})
	h.flush(alice, bob)
	if n := len(ac.ofType(t, "select_hand")); n != 1 {
		t.Fatalf("alice got %d select_hand, want 1", n)
	}
	if n := len(bc.ofType(t, "select_hand")); n != 1 {
		t.Fatalf("bob got %d select_hand, want 1", n)
	}
}

func TestHandsTieRepromptsAndWinnerDecides(t *testing.T) {
	h := newHarness(t, singleHost(), nil)
	alice, ac := h.connect("alice", "10.0.0.1:4000")
	h.join(alice, "lobby")
	bob, bc := h.connect("bob", "10.0.0.2:4000")
	h.join(bob, "lobby")
	h.send(alice, readyMsg(testDeck(100)))
	h.send(bob, readyMsg(testDeck(200)))
	h.send(alice, protocol.Start{})

	h.send(alice, protocol.HandChoice{Hand: protocol.HandRock})
	h.send(bob, protocol.HandChoice{Hand: protocol.HandRock})
	h.flush(alice, bob)
	if n := len(ac.ofType(t, "select_hand")); n != 2 {
		t.Fatalf("alice got %d select_hand after a tie, want 2", n)
	}

	h.send(alice, protocol.HandChoice{Hand: protocol.HandRock})
	h.send(bob, protocol.HandChoice{Hand: protocol.HandPaper})
	h.flush(alice, bob)
	res := bc.ofType(t, "hand_result")
	if len(res) != 2 || string(res[1].Self) != strconv.Itoa(protocol.HandPaper) {
		t.Fatalf("bob hand_result = %+v", res)
	}
	if n := len(bc.ofType(t, "select_turn_order")); n != 1 {
		t.Fatalf("hand winner got %d select_turn_order, want 1", n)
	}
	if n := len(ac.ofType(t, "select_turn_order")); n != 0 {
		t.Fatalf("hand loser got %d select_turn_order", n)
	}

	// Only the decider may choose.
	h.send(alice, protocol.TurnOrderChoice{First: true})
	h.inspect("lobby", func(r *Room) {
		if r.stage != StageFirstGo {
			t.Errorf("stage = %s after a non-decider choice", r.stage)
		}
	})

	h.send(bob, protocol.TurnOrderChoice{First: true})
	h.inspect("lobby", func(r *Room) {
		if r.stage != StageDueling {
			t.Errorf("stage = %s, want dueling", r.stage)
		}
		if !r.swapped {
			t.Errorf("bob chose to go first from duel position 1, want swapped")
		}
		if got := r.clientIngame(bob); got != 0 {
			t.Errorf("bob ingame = %d, want 0", got)
		}
	})
}

func TestKickInLobby(t *testing.T) {
	h := newHarness(t, singleHost(), nil)
	alice, _ := h.connect("alice", "10.0.0.1:4000")
	h.join(alice, "lobby")
	bob, bc := h.connect("bob", "10.0.0.2:4000")
	h.join(bob, "lobby")

	h.send(bob, protocol.Kick{Pos: 0})
	h.send(alice, protocol.Kick{Pos: 1})
	waitClosed(t, bc)
	errs := bc.ofType(t, "error")
	if len(errs) != 1 || errs[0].Code != protocol.ErrKicked {
		t.Fatalf("bob errors = %+v, want kicked", errs)
	}
	h.inspect("lobby", func(r *Room) {
		if r.seats[0] != alice || r.seats[1] != nil {
			t.Errorf("seats after kick = %v", r.seats)
		}
	})
}

func TestObserverAndDuelistMoves(t *testing.T) {
	h := newHarness(t, singleHost(), nil)
	alice, _ := h.connect("alice", "10.0.0.1:4000")
	h.join(alice, "lobby")
	bob, _ := h.connect("bob", "10.0.0.2:4000")
	h.join(bob, "lobby")

	h.send(bob, protocol.ToObserver{})
	h.inspect("lobby", func(r *Room) {
		if r.seats[1] != nil || len(r.observers) != 1 {
			t.Errorf("bob did not move to the watchers")
		}
	})
	h.send(bob, protocol.ToDuelist{})
	h.inspect("lobby", func(r *Room) {
		if r.seats[1] != bob || len(r.observers) != 0 {
			t.Errorf("bob did not take the free seat back")
		}
	})
}

func TestTagPlayerMovesToNextFreeSeat(t *testing.T) {
	h := newHarness(t, singleHost(), nil)
	alice, _ := h.connect("alice", "10.0.0.1:4000")
	h.join(alice, "T#tag")
	h.send(alice, protocol.ToDuelist{})
	h.inspect("T#tag", func(r *Room) {
		if r.seats[1] != alice || r.seats[0] != nil {
			t.Errorf("tag move: seats = %v", r.seats)
		}
	})
}

func TestHookCanDropMessages(t *testing.T) {
	spam := func(c *Client, msg protocol.Inbound, next func()) {
		if m, ok := msg.(protocol.Chat); ok && m.Text == "spam" {
			return
		}
		next()
	}
	h := newHarness(t, singleHost(), func(o *Options) { o.Hooks = []Hook{spam} })
	alice, _ := h.connect("alice", "10.0.0.1:4000")
	h.join(alice, "lobby")
	bob, bc := h.connect("bob", "10.0.0.2:4000")
	h.join(bob, "lobby")

	h.send(alice, protocol.Chat{Text: "spam"})
	h.send(alice, protocol.Chat{Text: "hello"})
	h.flush(bob)
	chats := bc.ofType(t, "chat")
	if len(chats) != 1 || chats[0].Text != "hello" {
		t.Fatalf("chats = %+v, want only hello", chats)
	}
}

func TestGameOpensWithDeckCounts(t *testing.T) {
	h := newHarness(t, singleHost(), nil)
	alice, ac := h.connect("alice", "10.0.0.1:4000")
	h.join(alice, "duel")
	bob, bc := h.connect("bob", "10.0.0.2:4000")
	h.join(bob, "duel")
	carol, cc := h.connect("carol", "10.0.0.3:4000")
	h.join(carol, "duel")

	bobDeck := testDeck(200)
	bobDeck.Extra = []uint32{900, 901}
	bobDeck.Side = []uint32{902}
	h.send(alice, readyMsg(testDeck(100)))
	h.send(bob, readyMsg(bobDeck))
	h.send(alice, protocol.Start{})
	h.flush(alice, bob, carol)

	small := protocol.DeckCounts{Main: 40}
	big := protocol.DeckCounts{Main: 40, Extra: 2, Side: 1}
	cases := []struct {
		who       string
		conn      *fakeConn
		self, opp protocol.DeckCounts
	}{
		{"alice", ac, small, big},
		{"bob", bc, big, small},
		{"observer", cc, small, big},
	}
	for _, tc := range cases {
		counts := tc.conn.ofType(t, "deck_count")
		if len(counts) != 1 {
			t.Fatalf("%s got %d deck_count, want 1", tc.who, len(counts))
		}
		self, opp := counts[0].deckCounts(t)
		if self != tc.self || opp != tc.opp {
			t.Fatalf("%s deck_count = %+v / %+v, want %+v / %+v", tc.who, self, opp, tc.self, tc.opp)
		}
	}
}

package room

import "duel-server/internal/protocol"

type stageSet uint8

func stages(list ...Stage) stageSet {
	var s stageSet
	for _, st := range list {
		s |= 1 << st
	}
	return s
}

func (s stageSet) has(st Stage) bool { return s == 0 || s&(1<<st) != 0 }

// middleware runs before a handler; returning without calling next drops
// the message.
type middleware func(r *Room, c *Client, msg protocol.Inbound, next func())

type handler func(r *Room, c *Client, msg protocol.Inbound)

type route struct {
	stages stageSet
	chain  []middleware
	handle handler
}

func requirePlayer(r *Room, c *Client, msg protocol.Inbound, next func()) {
	if c.isPlayer() {
		next()
	}
}

func requireHost(r *Room, c *Client, msg protocol.Inbound, next func()) {
	if c.host {
		next()
	}
}

// gateClaims lets a pre-reconnecting client send nothing but its deck.
func gateClaims(r *Room, c *Client, msg protocol.Inbound, next func()) {
	if c.claim == nil || msg.InboundType() == protocol.TypeReadyDeck || msg.InboundType() == protocol.TypeDisconnect {
		next()
	}
}

var routes = map[protocol.InboundType]route{
	protocol.TypeJoin: {
		handle: func(r *Room, c *Client, msg protocol.Inbound) { r.join(c, msg.(protocol.Join)) },
	},
	protocol.TypeReadyDeck: {
		stages: stages(StageBegin, StageSiding, StageFinger, StageFirstGo, StageDueling),
		handle: func(r *Room, c *Client, msg protocol.Inbound) { r.readyDeck(c, msg.(protocol.ReadyDeck)) },
	},
	protocol.TypeUnready: {
		stages: stages(StageBegin),
		chain:  []middleware{requirePlayer},
		handle: func(r *Room, c *Client, msg protocol.Inbound) { r.unready(c) },
	},
	protocol.TypeStart: {
		stages: stages(StageBegin),
		chain:  []middleware{requireHost},
		handle: func(r *Room, c *Client, msg protocol.Inbound) { r.start(c) },
	},
	protocol.TypeKick: {
		stages: stages(StageBegin),
		chain:  []middleware{requireHost},
		handle: func(r *Room, c *Client, msg protocol.Inbound) { r.kick(c, msg.(protocol.Kick)) },
	},
	protocol.TypeToObserver: {
		stages: stages(StageBegin),
		chain:  []middleware{requirePlayer},
		handle: func(r *Room, c *Client, msg protocol.Inbound) { r.toObserver(c) },
	},
	protocol.TypeToDuelist: {
		stages: stages(StageBegin),
		handle: func(r *Room, c *Client, msg protocol.Inbound) { r.toDuelist(c) },
	},
	protocol.TypeHandChoice: {
		stages: stages(StageFinger),
		chain:  []middleware{requirePlayer},
		handle: func(r *Room, c *Client, msg protocol.Inbound) { r.handChoice(c, msg.(protocol.HandChoice)) },
	},
	protocol.TypeTurnOrder: {
		stages: stages(StageFirstGo),
		chain:  []middleware{requirePlayer},
		handle: func(r *Room, c *Client, msg protocol.Inbound) { r.turnOrder(c, msg.(protocol.TurnOrderChoice)) },
	},
	protocol.TypeResponse: {
		stages: stages(StageDueling),
		chain:  []middleware{requirePlayer},
		handle: func(r *Room, c *Client, msg protocol.Inbound) { r.response(c, msg.(protocol.Response)) },
	},
	protocol.TypeSurrender: {
		stages: stages(StageDueling),
		chain:  []middleware{requirePlayer},
		handle: func(r *Room, c *Client, msg protocol.Inbound) { r.surrender(c) },
	},
	protocol.TypeChat: {
		handle: func(r *Room, c *Client, msg protocol.Inbound) { r.chat(c, msg.(protocol.Chat)) },
	},
	protocol.TypeDisconnect: {
		handle: func(r *Room, c *Client, msg protocol.Inbound) { r.disconnect(c, msg.(protocol.Disconnect).System) },
	},
}

// dispatch runs msg through the client gate, the configured hooks, the
// route's middleware and finally its handler, all on the room goroutine.
func (r *Room) dispatch(c *Client, msg protocol.Inbound) {
	if r.closed || c.left {
		return
	}
	rt, ok := routes[msg.InboundType()]
	if !ok {
		r.logger.Debug().Str("type", string(msg.InboundType())).Msg("unroutable_message")
		return
	}
	if !rt.stages.has(r.stage) {
		r.logger.Debug().Str("type", string(msg.InboundType())).Str("stage", r.stage.String()).Msg("message_wrong_stage")
		return
	}

	chain := make([]middleware, 0, 1+len(r.opts.Hooks)+len(rt.chain))
	chain = append(chain, gateClaims)
	for _, h := range r.opts.Hooks {
		chain = append(chain, func(r *Room, c *Client, msg protocol.Inbound, next func()) { h(c, msg, next) })
	}
	chain = append(chain, rt.chain...)

	i := 0
	var next func()
	next = func() {
		if i < len(chain) {
			mw := chain[i]
			i++
			mw(r, c, msg, next)
			return
		}
		rt.handle(r, c, msg)
	}
	next()
}

package room

import "expvar"

var (
	metricRoomsCreated = expvar.NewInt("rooms_created_total")
	metricRoomsActive  = expvar.NewInt("rooms_active")

	metricDuelsStarted  = expvar.NewInt("duels_started_total")
	metricDuelsFinished = expvar.NewInt("duels_finished_total")
	metricTimeouts      = expvar.NewInt("duel_action_timeouts_total")
	metricDeckRejected  = expvar.NewInt("deck_rejected_total")

	metricTicketsCreated = expvar.NewInt("reconnect_tickets_total")
	metricTicketsExpired = expvar.NewInt("reconnect_tickets_expired_total")
	metricReconnects     = expvar.NewInt("reconnects_total")

	metricEngineErrors   = expvar.NewInt("engine_errors_total")
	metricMessagesRouted = expvar.NewInt("engine_messages_routed_total")
	metricSendErrors     = expvar.NewInt("client_send_errors_total")

	metricPersisted     = expvar.NewInt("duel_records_persisted_total")
	metricPersistErrors = expvar.NewInt("duel_records_persist_errors_total")
)

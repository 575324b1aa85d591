package httptransport

import "expvar"

var (
	replayQueryTotal       = expvar.NewInt("replay_query_total")
	replayQueryErrorsTotal = expvar.NewInt("replay_query_errors_total")
	replayNotFoundTotal    = expvar.NewInt("replay_not_found_total")
	healthDownTotal        = expvar.NewInt("health_down_total")
)

package httptransport

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"duel-server/internal/logging"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog/v3"
)

// accessLog writes one JSON line per request to the shared log sink. Bodies
// and headers stay out of it; replay payloads are large.
func accessLog() func(http.Handler) http.Handler {
	logger := slog.New(slog.NewJSONHandler(logging.Writer(), nil))
	return httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelInfo,
		Schema: httplog.Schema{ResponseStatus: "status", ResponseDuration: "duration_ms"},
		LogExtraAttrs: func(req *http.Request, _ string, status int) []slog.Attr {
			return []slog.Attr{
				slog.String("request_id", chimw.GetReqID(req.Context())),
				slog.String("route", routePattern(req)),
				slog.String("remote", req.RemoteAddr),
				slog.Bool("failed", status >= http.StatusInternalServerError),
			}
		},
	})
}

func routePattern(req *http.Request) string {
	if rc := chi.RouteContext(req.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return req.URL.Path
}

// WriteHTTPError answers with {"error": code}.
func WriteHTTPError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": code})
}

// adminOnly requires the admin key as X-Admin-Key or a bearer
// token. An empty key leaves the routes open.
func adminOnly(adminKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminKey != "" && !CheckAdminAuth(r, adminKey) {
				WriteHTTPError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func CheckAdminAuth(r *http.Request, adminKey string) bool {
	key := r.Header.Get("X-Admin-Key")
	if key == "" {
		if v, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
			key = v
		}
	}
	return key != "" && subtle.ConstantTimeCompare([]byte(key), []byte(adminKey)) == 1
}

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

type page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// pageFrom reads limit and offset from the query. Junk falls back to the
// defaults; out of range values are clamped.
func pageFrom(q url.Values) page {
	p := page{
		Limit:  queryInt(q, "limit", defaultPageSize),
		Offset: queryInt(q, "offset", 0),
	}
	p.Limit = min(max(p.Limit, 1), maxPageSize)
	p.Offset = max(p.Offset, 0)
	return p
}

func queryInt(q url.Values, key string, fallback int) int {
	n, err := strconv.Atoi(q.Get(key))
	if err != nil {
		return fallback
	}
	return n
}

// Package ids hands out the identifiers used for connections and duel
// records.
package ids

import "github.com/oklog/ulid/v2"

// New returns a ULID string. IDs from one process sort in creation order.
func New() string {
	return ulid.Make().String()
}

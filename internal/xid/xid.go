package xid

import (
	"github.com/google/uuid"
)

// New returns a prefixed, time-ordered identifier such as "trx-0190...".
// UUIDv7 keeps ids sortable by creation time, which matches the
// newest-first listings.
func New(prefix string) string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	if prefix == "" {
		return id.String()
	}
	return prefix + "-" + id.String()
}

package xid

import (
	"github.com/google/uuid"
)

// New returns a random identifier of the form "<prefix>-<uuid v4>".
func New(prefix string) string {
	id := uuid.NewString()
	if prefix == "" {
		return id
	}
	return prefix + "-" + id
}

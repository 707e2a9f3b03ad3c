package xid

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestNewCarriesPrefixAndUUID(t *testing.T) {
	id := New("draft")
	if !strings.HasPrefix(id, "draft-") {
		t.Fatalf("expected draft- prefix, got %s", id)
	}
	if _, err := uuid.Parse(strings.TrimPrefix(id, "draft-")); err != nil {
		t.Fatalf("expected uuid suffix, got %s: %v", id, err)
	}
	if New("draft") == id {
		t.Fatalf("expected unique ids")
	}
}

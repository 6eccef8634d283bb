package persistence

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func TestNewRedisClientAcceptsURLAndAddress(t *testing.T) {
	mr := miniredis.RunT(t)

	for _, addr := range []string{mr.Addr(), "redis://" + mr.Addr() + "/0"} {
		client, err := NewRedisClient(context.Background(), addr)
		if err != nil {
			t.Fatalf("NewRedisClient(%q): %v", addr, err)
		}
		client.Close()
	}
}

func TestNewRedisClientRejectsBadURL(t *testing.T) {
	if _, err := NewRedisClient(context.Background(), "redis://localhost:6379/notanumber"); err == nil {
		t.Error("expected error for an invalid database number")
	}
}

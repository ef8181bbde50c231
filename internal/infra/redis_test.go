package infra

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestNewRedisClient(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr()+"/0", "walletdesk")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()
	if client.Options().ClientName != "walletdesk" || client.Options().ReadTimeout != redisOpTimeout {
		t.Fatalf("unexpected options %+v", client.Options())
	}
}

func TestNewRedisClientRejectsBadURLs(t *testing.T) {
	if _, err := NewRedisClient(context.Background(), "", "x"); err == nil {
		t.Fatal("expected an error for an empty url")
	}
	if _, err := NewRedisClient(context.Background(), "mysql://nope", "x"); err == nil {
		t.Fatal("expected an error for a non-redis url")
	}
}

func TestNewPostgresPoolRequiresURL(t *testing.T) {
	if _, err := NewPostgresPool(context.Background(), "", "x"); err == nil {
		t.Fatal("expected an error for an empty url")
	}
	if _, err := NewPostgresPool(context.Background(), "postgres://%zz", "x"); err == nil {
		t.Fatal("expected an error for an unparsable url")
	}
}

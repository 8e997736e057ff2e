package store

import (
	"context"
	"strconv"
	"testing"

	testcontainers "github.com/testcontainers/testcontainers-go"
	rediscontainer "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/SmitUplenchwar2687/splitghost/internal/clock"
)

func newRedisStoreForTest(t *testing.T, c clock.Clock) *RedisStore {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := rediscontainer.Run(ctx, "redis:7.2-alpine")
	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("container mapped port: %v", err)
	}
	p, err := strconv.Atoi(port.Port())
	if err != nil {
		t.Fatalf("parse mapped port: %v", err)
	}

	s, err := NewRedisStore(&RedisConfig{Host: host, Port: p, Prefix: "test:"}, c)
	if err != nil {
		t.Fatalf("NewRedisStore() error: %v", err)
	}
	return s
}

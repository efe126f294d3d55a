package app

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/backoffice/internal/numbering"
)

func TestNewNumberStoreSelectsBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store, err := NewNumberStore(&Config{NumberingBackend: NumberingRedis}, nil, rdb)
	require.NoError(t, err)
	require.IsType(t, &numbering.RedisStore{}, store)

	_, err = NewNumberStore(&Config{NumberingBackend: NumberingPostgres}, nil, rdb)
	require.ErrorContains(t, err, "needs a database pool")

	_, err = NewNumberStore(&Config{NumberingBackend: NumberingRedis}, nil, nil)
	require.Error(t, err)

	_, err = NewNumberStore(&Config{NumberingBackend: "etcd"}, nil, rdb)
	require.Error(t, err)
}

package kvstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisGetMissing(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedis(db, "")

	mock.ExpectGet(DefaultRedisPrefix + "k").RedisNil()

	_, ok, err := store.Get(context.Background(), "k")
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisRoundTrip(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedis(db, "test:")
	ctx := context.Background()

	mock.ExpectSet("test:k", []byte(`{"failure_count":1}`), 15*time.Minute).SetVal("OK")
	mock.ExpectGet("test:k").SetVal(`{"failure_count":1}`)
	mock.ExpectDel("test:k").SetVal(1)

	require.NoError(t, store.Set(ctx, "k", []byte(`{"failure_count":1}`), 15*time.Minute))

	got, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `{"failure_count":1}`, string(got))

	require.NoError(t, store.Delete(ctx, "k"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisGetError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedis(db, "")

	mock.ExpectGet(DefaultRedisPrefix + "k").SetErr(errors.New("connection refused"))

	_, ok, err := store.Get(context.Background(), "k")
	require.Error(t, err)
	require.False(t, ok)
}

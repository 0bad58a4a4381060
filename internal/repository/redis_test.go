package repository

import (
	"context"
	"testing"
	"time"

	"boothnik/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProposal(token string) *models.Proposal {
	return &models.Proposal{
		Token: token,
		Reservation: models.Reservation{
			Email:     "k123c4567@g.neec.ac.jp",
			BoothID:   2,
			Date:      time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
			StartTime: "10:00",
			Duration:  30,
		},
		ExpiresAt: time.Now().Add(time.Minute),
	}
}

func TestRedisProposalStore(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	store := NewRedisProposalStore(client)
	ctx := context.Background()

	t.Run("PutAndGet", func(t *testing.T) {
		p := testProposal("tok-1")
		require.NoError(t, store.Put(ctx, p, time.Minute))

		got, err := store.Get(ctx, "tok-1")
		require.NoError(t, err)
		assert.Equal(t, p.Token, got.Token)
		assert.Equal(t, int64(2), got.Reservation.BoothID)
		assert.Equal(t, "10:00", got.Reservation.StartTime)
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := store.Get(ctx, "tok-missing")
		assert.ErrorIs(t, err, ErrProposalNotFound)
	})

	t.Run("TTLExpiry", func(t *testing.T) {
		p := testProposal("tok-ttl")
		require.NoError(t, store.Put(ctx, p, 30*time.Second))

		s.FastForward(time.Minute)

		_, err := store.Get(ctx, "tok-ttl")
		assert.ErrorIs(t, err, ErrProposalNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		p := testProposal("tok-del")
		require.NoError(t, store.Put(ctx, p, time.Minute))
		require.NoError(t, store.Delete(ctx, "tok-del"))

		_, err := store.Get(ctx, "tok-del")
		assert.ErrorIs(t, err, ErrProposalNotFound)
	})
}

func TestRedisProposalStoreNilClient(t *testing.T) {
	store := NewRedisProposalStore(nil)
	ctx := context.Background()

	assert.Error(t, store.Put(ctx, testProposal("x"), time.Minute))
	_, err := store.Get(ctx, "x")
	assert.Error(t, err)
	assert.Error(t, store.Delete(ctx, "x"))
}

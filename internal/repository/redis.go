// Package repository implements the pending-proposal store behind the
// propose/commit split. A proposal is a fully built reservation waiting for
// the caller's confirmation; it expires on its own when never committed.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"boothnik/internal/config"
	"boothnik/internal/models"

	"github.com/redis/go-redis/v9"
)

// ErrProposalNotFound - предложение не найдено или истекло
var ErrProposalNotFound = errors.New("proposal not found or expired")

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

type RedisProposalStore struct {
	client *redis.Client
}

func NewRedisProposalStore(client *redis.Client) *RedisProposalStore {
	return &RedisProposalStore{client: client}
}

func proposalKey(token string) string {
	return fmt.Sprintf("proposal:%s", token)
}

func (s *RedisProposalStore) Put(ctx context.Context, p *models.Proposal, ttl time.Duration) error {
	if s.client == nil {
		return fmt.Errorf("redis client is nil")
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal proposal: %w", err)
	}

	if err := s.client.Set(ctx, proposalKey(p.Token), raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store proposal: %w", err)
	}
	return nil
}

func (s *RedisProposalStore) Get(ctx context.Context, token string) (*models.Proposal, error) {
	if s.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}

	val, err := s.client.Get(ctx, proposalKey(token)).Result()
	if err == redis.Nil {
		return nil, ErrProposalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get proposal from redis: %w", err)
	}

	var p models.Proposal
	if err := json.Unmarshal([]byte(val), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal proposal: %w", err)
	}
	return &p, nil
}

func (s *RedisProposalStore) Delete(ctx context.Context, token string) error {
	if s.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	return s.client.Del(ctx, proposalKey(token)).Err()
}

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"sparkchat/domain"
)

// SnapshotRepository persists broken-session snapshots: the profile of
// a user who logged out, kept under a TTL so a reconnect within the
// window can resume without repeating setup. One key per user,
// consumed on successful recovery or expired naturally.
type SnapshotRepository struct {
	client    *redis.Client
	log       *slog.Logger
	keyPrefix string
	ttl       time.Duration
}

func NewSnapshotRepository(client *redis.Client, log *slog.Logger, keyPrefix string, ttl time.Duration) SnapshotRepository {
	return SnapshotRepository{client: client, log: log, keyPrefix: keyPrefix, ttl: ttl}
}

func (s SnapshotRepository) key(username string) string {
	return fmt.Sprintf("%s:%s", s.keyPrefix, username)
}

func (s SnapshotRepository) Save(ctx context.Context, username string, profile domain.Profile) error {
	payload, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encoding snapshot for %s: %w", username, err)
	}
	if err := s.client.Set(ctx, s.key(username), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("storing snapshot for %s: %w", username, err)
	}
	return nil
}

// Take reads and deletes the snapshot in one round-trip. A missing key
// or an undecodable payload both report "not found".
func (s SnapshotRepository) Take(ctx context.Context, username string) (domain.Profile, bool, error) {
	raw, err := s.client.GetDel(ctx, s.key(username)).Result()
	if errors.Is(err, redis.Nil) {
		return domain.Profile{}, false, nil
	}
	if err != nil {
		return domain.Profile{}, false, fmt.Errorf("reading snapshot for %s: %w", username, err)
	}

	var profile domain.Profile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		s.log.Warn("Discarding malformed snapshot", "username", username, "error", err)
		return domain.Profile{}, false, nil
	}
	return profile, true, nil
}

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"sparkchat/domain"
)

// QueueRepository backs the matchmaking waiting lists with one Redis
// hash per mode: field = username, value = serialized QueueEntry.
// The store is the sole source of truth for the queues and survives
// process restarts.
type QueueRepository struct {
	client    *redis.Client
	log       *slog.Logger
	keyPrefix string
}

func NewQueueRepository(client *redis.Client, log *slog.Logger, keyPrefix string) QueueRepository {
	return QueueRepository{client: client, log: log, keyPrefix: keyPrefix}
}

func (q QueueRepository) key(mode domain.Mode) string {
	return fmt.Sprintf("%s:%s", q.keyPrefix, mode)
}

// Add upserts the entry. A repeated add for the same (user, mode)
// overwrites the previous entry, refreshing its join time.
func (q QueueRepository) Add(ctx context.Context, mode domain.Mode, entry domain.QueueEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding queue entry for %s: %w", entry.Username, err)
	}
	if err := q.client.HSet(ctx, q.key(mode), entry.Username, payload).Err(); err != nil {
		return fmt.Errorf("storing queue entry for %s in %s: %w", entry.Username, mode, err)
	}
	return nil
}

// Remove deletes the user's entry and reports whether it existed.
func (q QueueRepository) Remove(ctx context.Context, mode domain.Mode, username string) (bool, error) {
	removed, err := q.client.HDel(ctx, q.key(mode), username).Result()
	if err != nil {
		return false, fmt.Errorf("removing queue entry for %s in %s: %w", username, mode, err)
	}
	return removed > 0, nil
}

// Entries returns every decodable waiting entry for the mode.
// Malformed stored values are logged and skipped rather than aborting
// the scan.
func (q QueueRepository) Entries(ctx context.Context, mode domain.Mode) ([]domain.QueueEntry, error) {
	fields, err := q.client.HGetAll(ctx, q.key(mode)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading queue %s: %w", mode, err)
	}

	entries := make([]domain.QueueEntry, 0, len(fields))
	for username, raw := range fields {
		entry, err := decodeEntry([]byte(raw))
		if err != nil {
			q.log.Warn("Skipping malformed queue entry", "mode", mode, "username", username, "error", err)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (q QueueRepository) Count(ctx context.Context, mode domain.Mode) (int64, error) {
	count, err := q.client.HLen(ctx, q.key(mode)).Result()
	if err != nil {
		return 0, fmt.Errorf("counting queue %s: %w", mode, err)
	}
	return count, nil
}

// decodeEntry rejects entries without a username: they could never be
// removed from the hash once matched.
func decodeEntry(raw []byte) (domain.QueueEntry, error) {
	var entry domain.QueueEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return domain.QueueEntry{}, err
	}
	if entry.Username == "" {
		return domain.QueueEntry{}, fmt.Errorf("entry has no username")
	}
	return entry, nil
}

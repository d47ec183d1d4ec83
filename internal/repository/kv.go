package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// KV is the shared key-value store every instance coordinates through.
// All operations are single statements, so each one is atomic per key.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// SetNX writes only when the key is absent or expired and reports whether it wrote.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// IncrBy adds delta and returns the new value with the key's expiry.
	// ttl is applied only when the key is created (or recreated after expiry).
	IncrBy(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, time.Time, error)
	Del(ctx context.Context, key string) error

	ZAdd(ctx context.Context, key, member string, score float64) error
	// ZRevRange returns members highest score first; limit <= 0 means all.
	ZRevRange(ctx context.Context, key string, limit int) ([]string, error)
	// ZTrim keeps only the keep highest-scored members.
	ZTrim(ctx context.Context, key string, keep int) error
	ZRem(ctx context.Context, key, member string) error
}

// SQLiteKV implements KV on the kv and kv_zset tables
type SQLiteKV struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteKV creates a KV store over db
func NewSQLiteKV(db *sql.DB) *SQLiteKV {
	return &SQLiteKV{db: db, now: time.Now}
}

// WithClock replaces the clock used for TTL bookkeeping
func (s *SQLiteKV) WithClock(now func() time.Time) *SQLiteKV {
	s.now = now
	return s
}

func (s *SQLiteKV) expiry(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return s.now().Add(ttl).UnixMilli()
}

// Get returns the value of a live key
func (s *SQLiteKV) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	var expiresAt int64
	err := s.db.QueryRowContext(ctx, `SELECT value, expires_at FROM kv WHERE key = ?`, key).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	if expiresAt != 0 && expiresAt <= s.now().UnixMilli() {
		return "", false, nil
	}
	return value, true, nil
}

// Set writes value, replacing any previous value and TTL
func (s *SQLiteKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at
	`, key, value, s.expiry(ttl))
	if err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// SetNX writes value only if key is absent or expired
func (s *SQLiteKV) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	now := s.now().UnixMilli()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at
		WHERE kv.expires_at != 0 AND kv.expires_at <= ?
	`, key, value, s.expiry(ttl), now)
	if err != nil {
		return false, fmt.Errorf("failed to setnx key %s: %w", key, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read setnx result for %s: %w", key, err)
	}
	return n == 1, nil
}

// IncrBy atomically adds delta to an integer key
func (s *SQLiteKV) IncrBy(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, time.Time, error) {
	now := s.now().UnixMilli()
	var raw string
	var expiresAt int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO kv (key, value, expires_at) VALUES (?, CAST(? AS TEXT), ?)
		ON CONFLICT(key) DO UPDATE SET
			value = CASE WHEN kv.expires_at != 0 AND kv.expires_at <= ?
				THEN excluded.value
				ELSE CAST(CAST(kv.value AS INTEGER) + ? AS TEXT) END,
			expires_at = CASE WHEN kv.expires_at != 0 AND kv.expires_at <= ?
				THEN excluded.expires_at
				ELSE kv.expires_at END
		RETURNING value, expires_at
	`, key, delta, s.expiry(ttl), now, delta, now).Scan(&raw, &expiresAt)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to incr key %s: %w", key, err)
	}

	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("key %s does not hold an integer: %w", key, err)
	}

	var exp time.Time
	if expiresAt != 0 {
		exp = time.UnixMilli(expiresAt)
	}
	return value, exp, nil
}

// Del removes a key
func (s *SQLiteKV) Del(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// ZAdd inserts member or updates its score
func (s *SQLiteKV) ZAdd(ctx context.Context, key, member string, score float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_zset (key, member, score) VALUES (?, ?, ?)
		ON CONFLICT(key, member) DO UPDATE SET score = excluded.score
	`, key, member, score)
	if err != nil {
		return fmt.Errorf("failed to zadd %s: %w", key, err)
	}
	return nil
}

// ZRevRange lists members by descending score
func (s *SQLiteKV) ZRevRange(ctx context.Context, key string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT member FROM kv_zset WHERE key = ?
		ORDER BY score DESC, member DESC
		LIMIT ?
	`, key, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to range %s: %w", key, err)
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var member string
		if err := rows.Scan(&member); err != nil {
			return nil, fmt.Errorf("failed to scan member of %s: %w", key, err)
		}
		members = append(members, member)
	}
	return members, rows.Err()
}

// ZTrim drops everything but the keep highest-scored members
func (s *SQLiteKV) ZTrim(ctx context.Context, key string, keep int) error {
	if keep < 0 {
		keep = 0
	}
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM kv_zset WHERE key = ? AND member NOT IN (
			SELECT member FROM kv_zset WHERE key = ?
			ORDER BY score DESC, member DESC
			LIMIT ?
		)
	`, key, key, keep)
	if err != nil {
		return fmt.Errorf("failed to trim %s: %w", key, err)
	}
	return nil
}

// ZRem removes member from the sorted set
func (s *SQLiteKV) ZRem(ctx context.Context, key, member string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_zset WHERE key = ? AND member = ?`, key, member); err != nil {
		return fmt.Errorf("failed to zrem %s: %w", key, err)
	}
	return nil
}

// PurgeExpired deletes expired keys and returns how many were removed
func (s *SQLiteKV) PurgeExpired(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE expires_at != 0 AND expires_at <= ?`, s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired keys: %w", err)
	}
	return result.RowsAffected()
}

// GetInt reads an integer key, treating absent keys as zero
func GetInt(ctx context.Context, kv KV, key string) (int64, error) {
	raw, ok, err := kv.Get(ctx, key)
	if err != nil || !ok {
		return 0, err
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// GetFloat reads a float key, treating absent or malformed keys as zero
func GetFloat(ctx context.Context, kv KV, key string) (float64, error) {
	raw, ok, err := kv.Get(ctx, key)
	if err != nil || !ok {
		return 0, err
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, nil
	}
	return f, nil
}

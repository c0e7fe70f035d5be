package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RateLimiter is a fixed-window counter keyed by anonymous fingerprint,
// backed by the rate_limits table so it survives restarts and is shared
// across instances. Gates report creation and image upload to keep
// flooding of low-confidence reports out of the feed.
type RateLimiter struct {
	db           *pgxpool.Pool
	maxPerWindow int
	window       time.Duration
}

func NewRateLimiter(db *pgxpool.Pool, maxPerWindow int, window time.Duration) *RateLimiter {
	return &RateLimiter{db: db, maxPerWindow: maxPerWindow, window: window}
}

// Allow records one request for the fingerprint and reports whether it
// is still inside the window budget. A fresh window starts whenever the
// previous one has aged out.
func (l *RateLimiter) Allow(ctx context.Context, fingerprint string) (bool, error) {
	windowStart := time.Now().Add(-l.window)

	var count int
	err := l.db.QueryRow(ctx, `
		INSERT INTO rate_limits (fingerprint, request_count, window_start)
		VALUES ($1, 1, NOW())
		ON CONFLICT (fingerprint) DO UPDATE SET
			request_count = CASE
				WHEN rate_limits.window_start < $2 THEN 1
				ELSE rate_limits.request_count + 1
			END,
			window_start = CASE
				WHEN rate_limits.window_start < $2 THEN NOW()
				ELSE rate_limits.window_start
			END
		RETURNING request_count`,
		fingerprint, windowStart,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to update rate limit: %w", err)
	}

	return count <= l.maxPerWindow, nil
}

// PurgeStale drops windows old enough to be irrelevant, so the table
// doesn't accumulate one row per fingerprint forever.
func (l *RateLimiter) PurgeStale(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-l.window)
	tag, err := l.db.Exec(ctx, `DELETE FROM rate_limits WHERE window_start < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge rate limits: %w", err)
	}
	return tag.RowsAffected(), nil
}

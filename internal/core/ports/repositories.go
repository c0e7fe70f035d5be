package ports

import (
	"context"
	"time"

	"github.com/Ichiritzu/MeltingICE/internal/core/domain"
)

// ReportFilter narrows List queries. Zero values mean "no filter".
type ReportFilter struct {
	City          string
	State         string
	IncludeHidden bool
	Limit         int
	Offset        int
}

// VoteResult is what a vote mutation reports back to the handler.
type VoteResult struct {
	Action     domain.VoteAction
	VoteType   domain.VoteType
	Confidence int
}

// FlagResult is what a flag mutation reports back to the handler.
type FlagResult struct {
	FlagCount  int
	Confidence int
	AutoHidden bool
}

// ReportRepository is the persistence boundary for public reports and
// their aggregate counters. Counter updates are atomic at the storage
// layer; the stored confidence is recomputed from a fresh counter read
// on every mutation (last-write-wins, accepted inconsistency window).
type ReportRepository interface {
	Create(ctx context.Context, r *domain.Report) error
	FindByID(ctx context.Context, id string) (*domain.Report, error)
	List(ctx context.Context, filter ReportFilter) ([]domain.Report, int, error)
	ListSince(ctx context.Context, since time.Time, limit int) ([]domain.Report, error)

	// UserVotes returns the voter's recorded vote per report ID.
	UserVotes(ctx context.Context, fingerprint string, reportIDs []string) (map[string]domain.VoteType, error)

	Vote(ctx context.Context, reportID, fingerprint string, vote domain.VoteType) (*VoteResult, error)
	Flag(ctx context.Context, reportID, fingerprint string, reason domain.FlagReason, details string) (*FlagResult, error)
	FlagsForReport(ctx context.Context, reportID string) ([]domain.Flag, error)

	SetHidden(ctx context.Context, reportID string, hidden bool, moderator string) error
	SetVerified(ctx context.Context, reportID string, verified bool, moderator string) (int, error)
	ResolveFlags(ctx context.Context, reportID, moderator string) (int, error)
	Delete(ctx context.Context, reportID string) error
}

// AdminSession is an authenticated moderator session.
type AdminSession struct {
	AdminID   int64
	Email     string
	Name      string
	Token     string
	ExpiresAt time.Time
}

// AdminRepository backs moderator login and bearer-token sessions.
// Session tokens are opaque strings with expiry, nothing more.
type AdminRepository interface {
	Authenticate(ctx context.Context, email, password string) (*AdminSession, error)
	SessionByToken(ctx context.Context, token string) (*AdminSession, error)
	DeleteSession(ctx context.Context, token string) error
	PurgeExpiredSessions(ctx context.Context) (int64, error)
}

// RateLimiter gates report creation and image upload per anonymous
// fingerprint per time window.
type RateLimiter interface {
	Allow(ctx context.Context, fingerprint string) (bool, error)
	PurgeStale(ctx context.Context) (int64, error)
}

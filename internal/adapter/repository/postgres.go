package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Ichiritzu/MeltingICE/internal/core/domain"
	"github.com/Ichiritzu/MeltingICE/internal/core/ports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrAlreadyFlagged is returned when a fingerprint flags the same
// report twice.
var ErrAlreadyFlagged = errors.New("report already flagged by this user")

type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const reportColumns = `
	id, event_time_bucket, lat_approx, lng_approx,
	COALESCE(city, ''), COALESCE(state, ''), tag, summary,
	evidence_present, COALESCE(image_url, ''),
	upvotes, downvotes, flag_count, is_verified, is_hidden, confidence, created_at
`

func scanReport(row pgx.Row) (*domain.Report, error) {
	var r domain.Report
	err := row.Scan(
		&r.ID,
		&r.EventTimeBucket,
		&r.LatApprox,
		&r.LngApprox,
		&r.City,
		&r.State,
		&r.Tag,
		&r.Summary,
		&r.EvidencePresent,
		&r.ImageURL,
		&r.Upvotes,
		&r.Downvotes,
		&r.FlagCount,
		&r.IsVerified,
		&r.IsHidden,
		&r.Confidence,
		&r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *PostgresRepository) Create(ctx context.Context, report *domain.Report) error {
	query := `
		INSERT INTO public_reports
		(id, event_time_bucket, lat_approx, lng_approx, city, state, tag, summary,
		 evidence_present, image_url, confidence)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8, $9, NULLIF($10, ''), $11)
	`

	_, err := r.db.Exec(ctx, query,
		report.ID,
		report.EventTimeBucket,
		report.LatApprox,
		report.LngApprox,
		report.City,
		report.State,
		report.Tag,
		report.Summary,
		report.EvidencePresent,
		report.ImageURL,
		report.Confidence,
	)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*domain.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM public_reports WHERE id = $1`
	return scanReport(r.db.QueryRow(ctx, query, id))
}

func (r *PostgresRepository) List(ctx context.Context, filter ports.ReportFilter) ([]domain.Report, int, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	where := `WHERE 1=1`
	args := []any{}
	if !filter.IncludeHidden {
		where += ` AND is_hidden = FALSE`
	}
	if filter.City != "" {
		args = append(args, "%"+filter.City+"%")
		where += fmt.Sprintf(` AND city ILIKE $%d`, len(args))
	}
	if filter.State != "" {
		args = append(args, filter.State)
		where += fmt.Sprintf(` AND state = $%d`, len(args))
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM public_reports ` + where
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count reports: %w", err)
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(
		`SELECT %s FROM public_reports %s ORDER BY event_time_bucket DESC LIMIT $%d OFFSET $%d`,
		reportColumns, where, len(args)-1, len(args),
	)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	var reports []domain.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, *report)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating rows: %w", err)
	}

	return reports, total, nil
}

func (r *PostgresRepository) ListSince(ctx context.Context, since time.Time, limit int) ([]domain.Report, error) {
	query := `
		SELECT ` + reportColumns + `
		FROM public_reports
		WHERE is_hidden = FALSE AND created_at >= $1
		ORDER BY event_time_bucket DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports since %v: %w", since, err)
	}
	defer rows.Close()

	var reports []domain.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, *report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return reports, nil
}

func (r *PostgresRepository) UserVotes(ctx context.Context, fingerprint string, reportIDs []string) (map[string]domain.VoteType, error) {
	votes := make(map[string]domain.VoteType)
	if len(reportIDs) == 0 {
		return votes, nil
	}

	query := `SELECT report_id, vote_type FROM report_votes WHERE fingerprint = $1 AND report_id = ANY($2)`
	rows, err := r.db.Query(ctx, query, fingerprint, reportIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query user votes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var vote domain.VoteType
		if err := rows.Scan(&id, &vote); err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		votes[id] = vote
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return votes, nil
}

// Vote runs the per-voter state machine inside a transaction. The
// counter updates use GREATEST(0, ...) floors; the confidence is then
// recomputed in full from the post-update counters. Two concurrent
// votes can still race on the final score write (last write wins) but
// the counters themselves never drift.
func (r *PostgresRepository) Vote(ctx context.Context, reportID, fingerprint string, vote domain.VoteType) (*ports.VoteResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx,
		`SELECT TRUE FROM public_reports WHERE id = $1 AND is_hidden = FALSE`, reportID,
	).Scan(&exists)
	if err != nil {
		return nil, err // pgx.ErrNoRows when missing or hidden
	}

	current := domain.VoteNone
	err = tx.QueryRow(ctx,
		`SELECT vote_type FROM report_votes WHERE report_id = $1 AND fingerprint = $2`,
		reportID, fingerprint,
	).Scan(&current)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to read existing vote: %w", err)
	}

	transition, err := domain.ApplyVote(current, vote)
	if err != nil {
		return nil, err
	}

	switch transition.Action {
	case domain.VoteAdded:
		_, err = tx.Exec(ctx,
			`INSERT INTO report_votes (report_id, fingerprint, vote_type) VALUES ($1, $2, $3)`,
			reportID, fingerprint, transition.Next,
		)
	case domain.VoteChanged:
		_, err = tx.Exec(ctx,
			`UPDATE report_votes SET vote_type = $1 WHERE report_id = $2 AND fingerprint = $3`,
			transition.Next, reportID, fingerprint,
		)
	case domain.VoteRemoved:
		_, err = tx.Exec(ctx,
			`DELETE FROM report_votes WHERE report_id = $1 AND fingerprint = $2`,
			reportID, fingerprint,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record vote: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE public_reports
		SET upvotes   = GREATEST(0, upvotes + $1),
		    downvotes = GREATEST(0, downvotes + $2)
		WHERE id = $3`,
		transition.UpvoteDelta, transition.DownvoteDelta, reportID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update counters: %w", err)
	}

	confidence, err := refreshConfidence(ctx, tx, reportID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit vote: %w", err)
	}

	return &ports.VoteResult{Action: transition.Action, VoteType: transition.Next, Confidence: confidence}, nil
}

// Flag records a community flag (one per fingerprint per report),
// recomputes the confidence, then applies the auto-hide rule. Auto-hide
// is evaluated after the score update and is idempotent: re-flagging an
// already-hidden report changes nothing observable.
func (r *PostgresRepository) Flag(ctx context.Context, reportID, fingerprint string, reason domain.FlagReason, details string) (*ports.FlagResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx, `SELECT TRUE FROM public_reports WHERE id = $1`, reportID).Scan(&exists)
	if err != nil {
		return nil, err
	}

	var already bool
	err = tx.QueryRow(ctx,
		`SELECT TRUE FROM report_flags WHERE report_id = $1 AND fingerprint = $2`,
		reportID, fingerprint,
	).Scan(&already)
	if err == nil {
		return nil, ErrAlreadyFlagged
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to check existing flag: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO report_flags (report_id, fingerprint, reason, details) VALUES ($1, $2, $3, NULLIF($4, ''))`,
		reportID, fingerprint, reason, details,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert flag: %w", err)
	}

	var flagCount int
	err = tx.QueryRow(ctx,
		`UPDATE public_reports SET flag_count = flag_count + 1 WHERE id = $1 RETURNING flag_count`,
		reportID,
	).Scan(&flagCount)
	if err != nil {
		return nil, fmt.Errorf("failed to update flag count: %w", err)
	}

	confidence, err := refreshConfidence(ctx, tx, reportID)
	if err != nil {
		return nil, err
	}

	autoHidden := false
	if flagCount >= domain.AutoHideFlagThreshold {
		tag, err := tx.Exec(ctx,
			`UPDATE public_reports SET is_hidden = TRUE WHERE id = $1 AND is_hidden = FALSE`,
			reportID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to auto-hide report: %w", err)
		}
		autoHidden = tag.RowsAffected() > 0
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit flag: %w", err)
	}

	return &ports.FlagResult{FlagCount: flagCount, Confidence: confidence, AutoHidden: autoHidden}, nil
}

func (r *PostgresRepository) FlagsForReport(ctx context.Context, reportID string) ([]domain.Flag, error) {
	query := `
		SELECT id, report_id, fingerprint, reason, COALESCE(details, ''), is_resolved, created_at
		FROM report_flags
		WHERE report_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to query flags: %w", err)
	}
	defer rows.Close()

	var flags []domain.Flag
	for rows.Next() {
		var f domain.Flag
		if err := rows.Scan(&f.ID, &f.ReportID, &f.Fingerprint, &f.Reason, &f.Details, &f.IsResolved, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan flag: %w", err)
		}
		flags = append(flags, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return flags, nil
}

func (r *PostgresRepository) SetHidden(ctx context.Context, reportID string, hidden bool, moderator string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE public_reports SET is_hidden = $1, moderated_at = NOW(), moderated_by = $2 WHERE id = $3`,
		hidden, moderator, reportID,
	)
	if err != nil {
		return fmt.Errorf("failed to update hidden flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// SetVerified toggles the moderator-verified flag and recomputes the
// confidence in full. The recompute-from-scratch policy applies to
// moderation too; the score is never adjusted by a fixed delta.
func (r *PostgresRepository) SetVerified(ctx context.Context, reportID string, verified bool, moderator string) (int, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE public_reports SET is_verified = $1, moderated_at = NOW(), moderated_by = $2 WHERE id = $3`,
		verified, moderator, reportID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update verified flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return 0, pgx.ErrNoRows
	}

	confidence, err := refreshConfidence(ctx, tx, reportID)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit verify: %w", err)
	}
	return confidence, nil
}

// ResolveFlags marks all open flags handled and zeroes the counter,
// then recomputes the confidence.
func (r *PostgresRepository) ResolveFlags(ctx context.Context, reportID, moderator string) (int, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		UPDATE report_flags
		SET is_resolved = TRUE, resolved_at = NOW(), resolved_by = $1
		WHERE report_id = $2 AND is_resolved = FALSE`,
		moderator, reportID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve flags: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE public_reports SET flag_count = 0, moderated_at = NOW(), moderated_by = $1 WHERE id = $2`,
		moderator, reportID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to reset flag count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return 0, pgx.ErrNoRows
	}

	confidence, err := refreshConfidence(ctx, tx, reportID)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit flag resolution: %w", err)
	}
	return confidence, nil
}

// Delete removes a report permanently. Hard delete: votes and flags go
// with it (ON DELETE CASCADE), no tombstone.
func (r *PostgresRepository) Delete(ctx context.Context, reportID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM public_reports WHERE id = $1`, reportID)
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// refreshConfidence re-reads the report's counters and writes the
// result of the pure domain function back. Always a full recompute.
func refreshConfidence(ctx context.Context, tx pgx.Tx, reportID string) (int, error) {
	var c domain.Counters
	err := tx.QueryRow(ctx, `
		SELECT upvotes, downvotes, flag_count,
		       image_url IS NOT NULL,
		       evidence_present, is_verified,
		       LENGTH(summary),
		       city IS NOT NULL AND state IS NOT NULL
		FROM public_reports WHERE id = $1`,
		reportID,
	).Scan(
		&c.Upvotes, &c.Downvotes, &c.FlagCount,
		&c.HasImage, &c.EvidencePresent, &c.IsVerified,
		&c.SummaryLength, &c.HasLocation,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to read counters: %w", err)
	}

	confidence := domain.CalculateConfidence(c)

	_, err = tx.Exec(ctx, `UPDATE public_reports SET confidence = $1 WHERE id = $2`, confidence, reportID)
	if err != nil {
		return 0, fmt.Errorf("failed to store confidence: %w", err)
	}
	return confidence, nil
}

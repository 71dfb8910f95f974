package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/captvenkat/faujnet-backend/internal/core"
)

const (
	dayLayout  = "2006-01-02"
	timeLayout = "2006-01-02 15:04:05.000"
)

// dialect captures the statements that differ between SQL backends
type dialect struct {
	name         string
	schema       []string
	insertSender string
	upsertEvent  string
	insertFlag   string
	greatest     string
	least        string
	numbered     bool
	returningID  bool
}

// SQLStore implements core.Store on database/sql
type SQLStore struct {
	db          *sql.DB
	d           dialect
	logger      *zap.Logger
	cleanupFreq time.Duration
	retention   time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// openSQLStore opens the database, creates the schema and starts the
// background cleanup task
func openSQLStore(driver, dsn string, d dialect, logger *zap.Logger, cleanupFreq, retention time.Duration) (*SQLStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", d.name, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", d.name, err)
	}

	s := newSQLStore(db, d, logger, cleanupFreq, retention)
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	if cleanupFreq > 0 {
		go s.startCleanupTask()
	}
	return s, nil
}

func newSQLStore(db *sql.DB, d dialect, logger *zap.Logger, cleanupFreq, retention time.Duration) *SQLStore {
	return &SQLStore{
		db:          db,
		d:           d,
		logger:      logger,
		cleanupFreq: cleanupFreq,
		retention:   retention,
		stopCh:      make(chan struct{}),
	}
}

func (s *SQLStore) migrate(ctx context.Context) error {
	for _, stmt := range s.d.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for numbered dialects
func (s *SQLStore) rebind(query string) string {
	if !s.d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(query), args...)
}

func (s *SQLStore) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.rebind(query), args...)
}

func (s *SQLStore) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(query), args...)
}

// EnsureSender creates a sender record with defaults if it does not exist
func (s *SQLStore) EnsureSender(ctx context.Context, hash, domain string, at time.Time) error {
	ts := formatTime(at)
	if _, err := s.exec(ctx, s.d.insertSender, hash, domain, ts, ts); err != nil {
		return fmt.Errorf("failed to insert sender: %w", err)
	}
	return nil
}

// GetSender reads a sender record
func (s *SQLStore) GetSender(ctx context.Context, hash string) (*core.SenderRecord, error) {
	var (
		rec                 core.SenderRecord
		firstSeen, lastSeen string
		banned              int
	)
	err := s.queryRow(ctx, `
		SELECT sender_hash, domain, trust_score, total_submissions, accepted_submissions,
			rejected_submissions, total_queries, invalid_queries, first_seen, last_seen, is_shadow_banned
		FROM sender_trust
		WHERE sender_hash = ?
	`, hash).Scan(&rec.Hash, &rec.Domain, &rec.TrustScore, &rec.TotalSubmissions, &rec.AcceptedSubmissions,
		&rec.RejectedSubmissions, &rec.TotalQueries, &rec.InvalidQueries, &firstSeen, &lastSeen, &banned)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query sender: %w", err)
	}

	rec.FirstSeen = parseTime(firstSeen)
	rec.LastSeen = parseTime(lastSeen)
	rec.ShadowBanned = banned != 0
	return &rec, nil
}

// trustUpdateQuery assigns the ban flag before the score so that backends
// evaluating SET left to right still read the pre-update score.
func (s *SQLStore) trustUpdateQuery() string {
	clamped := fmt.Sprintf("%s(0, %s(100, trust_score + ?))", s.d.greatest, s.d.least)
	return `
		UPDATE sender_trust SET
			is_shadow_banned = CASE WHEN ` + clamped + ` < ? THEN 1 ELSE is_shadow_banned END,
			trust_score = ` + clamped + `,
			total_queries = total_queries + ?,
			invalid_queries = invalid_queries + ?,
			total_submissions = total_submissions + ?,
			accepted_submissions = accepted_submissions + ?,
			rejected_submissions = rejected_submissions + ?,
			last_seen = ?
		WHERE sender_hash = ?
	`
}

// ApplyTrustUpdate applies delta, ban and counters in one UPDATE
func (s *SQLStore) ApplyTrustUpdate(ctx context.Context, u core.TrustUpdate) error {
	result, err := s.exec(ctx, s.trustUpdateQuery(),
		u.Delta, u.Threshold, u.Delta,
		u.Counters.Queries, u.Counters.InvalidQueries,
		u.Counters.Submissions, u.Counters.Accepted, u.Counters.Rejected,
		formatTime(u.At), u.Hash)
	if err != nil {
		return fmt.Errorf("failed to update trust: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return core.ErrSenderNotFound
	}
	return nil
}

// IncrementEvent creates a bucket or increments it in one statement
func (s *SQLStore) IncrementEvent(ctx context.Context, key core.EventKey, at time.Time) error {
	_, err := s.exec(ctx, s.d.upsertEvent, key.Day, key.EventType, key.ResultType, key.Category, formatTime(at))
	if err != nil {
		return fmt.Errorf("failed to increment event: %w", err)
	}
	return nil
}

// SumEvents totals buckets of a category created after since
func (s *SQLStore) SumEvents(ctx context.Context, category string, since time.Time) (int, error) {
	var total int
	err := s.queryRow(ctx, `
		SELECT COALESCE(SUM(event_count), 0)
		FROM email_event_log
		WHERE category = ? AND created_at > ?
	`, category, formatTime(since)).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum events: %w", err)
	}
	return total, nil
}

// EventCount returns the count of one bucket
func (s *SQLStore) EventCount(ctx context.Context, key core.EventKey) (int, error) {
	var count int
	err := s.queryRow(ctx, `
		SELECT event_count
		FROM email_event_log
		WHERE day_bucket = ? AND event_type = ? AND result_type = ? AND category = ?
	`, key.Day, key.EventType, key.ResultType, key.Category).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to query event: %w", err)
	}
	return count, nil
}

// FindOfficialRules returns active or conflicting rules for a service
func (s *SQLStore) FindOfficialRules(ctx context.Context, service string, limit int) ([]core.LookupResult, error) {
	rows, err := s.query(ctx, `
		SELECT id, document_type, document_number, authority_name, clauses, status, issue_date
		FROM official_pull
		WHERE status IN ('ACTIVE', 'CONFLICT') AND UPPER(applicability) LIKE ?
		ORDER BY issue_date DESC
		LIMIT ?
	`, "%"+strings.ToUpper(service)+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query official rules: %w", err)
	}
	defer rows.Close()

	var out []core.LookupResult
	for rows.Next() {
		var (
			r            core.LookupResult
			docType, num string
		)
		if err := rows.Scan(&r.ID, &docType, &num, &r.Authority, &r.Detail, &r.Status, &r.IssuedOn); err != nil {
			return nil, fmt.Errorf("failed to scan official rule: %w", err)
		}
		r.Title = strings.TrimSpace(docType + " " + num)
		out = append(out, r)
	}
	return out, rows.Err()
}

// FindOpportunities returns active, unexpired opportunities, newest first
func (s *SQLStore) FindOpportunities(ctx context.Context, category, today string, limit int) ([]core.LookupResult, error) {
	category = strings.ToUpper(category)
	rows, err := s.query(ctx, `
		SELECT id, opportunity_title, organisation_name, description, status, validity_start
		FROM submitted_opportunity
		WHERE status = 'ACTIVE'
			AND (? = '' OR opportunity_category = ?)
			AND (validity_end IS NULL OR validity_end = '' OR validity_end >= ?)
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, category, category, today, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query opportunities: %w", err)
	}
	defer rows.Close()

	var out []core.LookupResult
	for rows.Next() {
		var r core.LookupResult
		if err := rows.Scan(&r.ID, &r.Title, &r.Authority, &r.Detail, &r.Status, &r.IssuedOn); err != nil {
			return nil, fmt.Errorf("failed to scan opportunity: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// OpportunityExists checks the exact duplicate triple
func (s *SQLStore) OpportunityExists(ctx context.Context, organisation, title, validityStart string) (bool, error) {
	var one int
	err := s.queryRow(ctx, `
		SELECT 1
		FROM submitted_opportunity
		WHERE organisation_name = ? AND opportunity_title = ? AND validity_start = ?
		LIMIT 1
	`, organisation, title, validityStart).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check duplicate: %w", err)
	}
	return true, nil
}

const insertOpportunity = `
	INSERT INTO submitted_opportunity
		(organisation_name, organisation_type, opportunity_title, opportunity_category, description,
		 military_relevance_tier, validity_start, validity_end, status, submission_hash, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// CreateOpportunity stores an accepted submission and returns its id
func (s *SQLStore) CreateOpportunity(ctx context.Context, opp *core.Opportunity) (int64, error) {
	f := opp.Fields
	args := []any{
		f.Organisation, string(opp.OrgType), f.Title, f.Category, f.Description,
		string(opp.Relevance), f.ValidityStart, nullable(f.ValidityEnd), opp.Status, opp.Fingerprint,
		formatTime(opp.CreatedAt),
	}

	if s.d.returningID {
		var id int64
		if err := s.queryRow(ctx, insertOpportunity+" RETURNING id", args...).Scan(&id); err != nil {
			return 0, fmt.Errorf("failed to insert opportunity: %w", err)
		}
		return id, nil
	}

	result, err := s.exec(ctx, insertOpportunity, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert opportunity: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get opportunity id: %w", err)
	}
	return id, nil
}

// AddOfficialRule inserts an official rule record; applicability lists the
// services it applies to.
func (s *SQLStore) AddOfficialRule(ctx context.Context, rule core.LookupResult, applicability string) (int64, error) {
	args := []any{rule.Authority, rule.Title, rule.IssuedOn, rule.Detail, applicability, rule.Status, formatTime(time.Now())}
	q := `
		INSERT INTO official_pull
			(authority_name, document_type, document_number, issue_date, clauses, applicability, status, created_at)
		VALUES (?, '', ?, ?, ?, ?, ?, ?)`

	if s.d.returningID {
		var id int64
		if err := s.queryRow(ctx, q+" RETURNING id", args...).Scan(&id); err != nil {
			return 0, fmt.Errorf("failed to insert official rule: %w", err)
		}
		return id, nil
	}

	result, err := s.exec(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert official rule: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get official rule id: %w", err)
	}
	return id, nil
}

// LoadFlags returns all configuration flags
func (s *SQLStore) LoadFlags(ctx context.Context) ([]core.ConfigFlag, error) {
	rows, err := s.query(ctx, `
		SELECT config_key, config_value, enabled, description, updated_at
		FROM system_config
		ORDER BY config_key
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query config: %w", err)
	}
	defer rows.Close()

	var out []core.ConfigFlag
	for rows.Next() {
		var (
			f         core.ConfigFlag
			enabled   int
			updatedAt string
		)
		if err := rows.Scan(&f.Key, &f.Value, &enabled, &f.Description, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan config: %w", err)
		}
		f.Enabled = enabled != 0
		f.UpdatedAt = parseTime(updatedAt)
		out = append(out, f)
	}
	return out, rows.Err()
}

// SeedFlags inserts flags that do not exist yet
func (s *SQLStore) SeedFlags(ctx context.Context, flags []core.ConfigFlag) error {
	for _, f := range flags {
		if _, err := s.exec(ctx, s.d.insertFlag, f.Key, f.Value, boolToInt(f.Enabled), f.Description, formatTime(f.UpdatedAt)); err != nil {
			return fmt.Errorf("failed to seed config %s: %w", f.Key, err)
		}
	}
	return nil
}

// SetFlagEnabled toggles an existing flag
func (s *SQLStore) SetFlagEnabled(ctx context.Context, key string, enabled bool, at time.Time) error {
	result, err := s.exec(ctx, `
		UPDATE system_config SET enabled = ?, updated_at = ? WHERE config_key = ?
	`, boolToInt(enabled), formatTime(at), key)
	if err != nil {
		return fmt.Errorf("failed to update config: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// DailyStats returns the outcome buckets of a day, excluding sender-scoped ones
func (s *SQLStore) DailyStats(ctx context.Context, day string) ([]core.EventAggregate, error) {
	rows, err := s.query(ctx, `
		SELECT day_bucket, event_type, result_type, category, event_count, created_at
		FROM email_event_log
		WHERE day_bucket = ? AND category NOT LIKE 'sender:%' AND category NOT LIKE 'clarify:%'
		ORDER BY event_type, result_type, category
	`, day)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily stats: %w", err)
	}
	defer rows.Close()

	var out []core.EventAggregate
	for rows.Next() {
		var (
			a         core.EventAggregate
			createdAt string
		)
		if err := rows.Scan(&a.Day, &a.EventType, &a.ResultType, &a.Category, &a.Count, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan daily stats: %w", err)
		}
		a.CreatedAt = parseTime(createdAt)
		out = append(out, a)
	}
	return out, rows.Err()
}

// TrustStats summarises sender reputation
func (s *SQLStore) TrustStats(ctx context.Context) (*core.TrustStats, error) {
	var senders, banned, scoreSum int64
	err := s.queryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(is_shadow_banned), 0), COALESCE(SUM(trust_score), 0)
		FROM sender_trust
	`).Scan(&senders, &banned, &scoreSum)
	if err != nil {
		return nil, fmt.Errorf("failed to query trust stats: %w", err)
	}

	stats := &core.TrustStats{Senders: int(senders), ShadowBanned: int(banned)}
	if senders > 0 {
		stats.AverageScore = float64(scoreSum) / float64(senders)
	}
	return stats, nil
}

// Cleanup drops expired sender-scoped buckets and expires old opportunities
func (s *SQLStore) Cleanup(ctx context.Context, now time.Time) error {
	result, err := s.exec(ctx, `
		DELETE FROM email_event_log
		WHERE (category LIKE 'sender:%' OR category LIKE 'clarify:%') AND day_bucket < ?
	`, retentionCutoff(now, s.retention))
	if err != nil {
		return fmt.Errorf("failed to purge sender buckets: %w", err)
	}
	purged, err := result.RowsAffected()
	if err != nil {
		s.logger.Warn("Failed to get rows affected during cleanup", zap.Error(err))
	}

	result, err = s.exec(ctx, `
		UPDATE submitted_opportunity SET status = 'EXPIRED'
		WHERE status = 'ACTIVE' AND validity_end IS NOT NULL AND validity_end <> '' AND validity_end < ?
	`, now.UTC().Format(dayLayout))
	if err != nil {
		return fmt.Errorf("failed to expire opportunities: %w", err)
	}
	expired, err := result.RowsAffected()
	if err != nil {
		s.logger.Warn("Failed to get rows affected during cleanup", zap.Error(err))
	}

	s.logger.Debug("Cleaned up store",
		zap.String("dialect", s.d.name),
		zap.Int64("purged_buckets", purged),
		zap.Int64("expired_opportunities", expired))
	return nil
}

// startCleanupTask starts a background task to run Cleanup periodically
func (s *SQLStore) startCleanupTask() {
	ticker := time.NewTicker(s.cleanupFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.Cleanup(context.Background(), time.Now()); err != nil {
				s.logger.Error("Failed to clean up store", zap.Error(err))
			}
		case <-s.stopCh:
			return
		}
	}
}

// Stop stops the background cleanup task and closes the database connection
func (s *SQLStore) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database", zap.String("dialect", s.d.name), zap.Error(err))
		}
	})
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(v string) time.Time {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isSenderScoped(category string) bool {
	return strings.HasPrefix(category, "sender:") || strings.HasPrefix(category, "clarify:")
}

// retentionCutoff is the oldest bucket label kept. Hour buckets compare
// correctly against it since they share the day prefix.
func retentionCutoff(now time.Time, retention time.Duration) string {
	return now.UTC().Add(-retention).Format(dayLayout)
}

// ensure interfaces are satisfied
var (
	_ core.Store = (*SQLStore)(nil)
	_ core.Store = (*MemoryStore)(nil)
)

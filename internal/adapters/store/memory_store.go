package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/captvenkat/faujnet-backend/internal/core"
)

var (
	// ErrNotFound is returned when a record is not found
	ErrNotFound = errors.New("record not found")
)

type memoryRule struct {
	result        core.LookupResult
	applicability string
}

type memoryBucket struct {
	count     int
	createdAt time.Time
}

// MemoryStore is an in-memory implementation of core.Store
type MemoryStore struct {
	mu            sync.RWMutex
	senders       map[string]*core.SenderRecord
	events        map[core.EventKey]*memoryBucket
	rules         []memoryRule
	opportunities []*core.Opportunity
	flags         map[string]core.ConfigFlag
	nextID        int64
	logger        *zap.Logger
	cleanupFreq   time.Duration
	retention     time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore(logger *zap.Logger, cleanupFreq, retention time.Duration) *MemoryStore {
	s := &MemoryStore{
		senders:     make(map[string]*core.SenderRecord),
		events:      make(map[core.EventKey]*memoryBucket),
		flags:       make(map[string]core.ConfigFlag),
		logger:      logger,
		cleanupFreq: cleanupFreq,
		retention:   retention,
		stopCh:      make(chan struct{}),
	}

	if cleanupFreq > 0 {
		go s.startCleanupTask()
	}

	return s
}

// EnsureSender creates a sender record if it does not exist
func (s *MemoryStore) EnsureSender(ctx context.Context, hash, domain string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.senders[hash]; ok {
		return nil
	}
	s.senders[hash] = &core.SenderRecord{
		Hash:       hash,
		Domain:     domain,
		TrustScore: 100,
		FirstSeen:  at.UTC(),
		LastSeen:   at.UTC(),
	}
	return nil
}

// GetSender returns a copy of a sender record
func (s *MemoryStore) GetSender(ctx context.Context, hash string) (*core.SenderRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.senders[hash]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// ApplyTrustUpdate applies a trust update under the store lock
func (s *MemoryStore) ApplyTrustUpdate(ctx context.Context, u core.TrustUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.senders[u.Hash]
	if !ok {
		return core.ErrSenderNotFound
	}
	score := core.ClampScore(rec.TrustScore + u.Delta)
	if score < u.Threshold {
		rec.ShadowBanned = true
	}
	rec.TrustScore = score
	rec.TotalQueries += u.Counters.Queries
	rec.InvalidQueries += u.Counters.InvalidQueries
	rec.TotalSubmissions += u.Counters.Submissions
	rec.AcceptedSubmissions += u.Counters.Accepted
	rec.RejectedSubmissions += u.Counters.Rejected
	rec.LastSeen = u.At.UTC()
	return nil
}

// IncrementEvent creates or increments a bucket
func (s *MemoryStore) IncrementEvent(ctx context.Context, key core.EventKey, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.events[key]; ok {
		b.count++
		return nil
	}
	s.events[key] = &memoryBucket{count: 1, createdAt: at.UTC()}
	return nil
}

// SumEvents totals the buckets of a category created after since
func (s *MemoryStore) SumEvents(ctx context.Context, category string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for key, b := range s.events {
		if key.Category == category && b.createdAt.After(since) {
			total += b.count
		}
	}
	return total, nil
}

// EventCount returns the count of a single bucket
func (s *MemoryStore) EventCount(ctx context.Context, key core.EventKey) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if b, ok := s.events[key]; ok {
		return b.count, nil
	}
	return 0, nil
}

// AddOfficialRule registers an official rule; applicability lists the
// services it applies to.
func (s *MemoryStore) AddOfficialRule(ctx context.Context, rule core.LookupResult, applicability string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	rule.ID = s.nextID
	s.rules = append(s.rules, memoryRule{result: rule, applicability: strings.ToUpper(applicability)})
	return rule.ID, nil
}

// FindOfficialRules returns active or conflicting rules for a service, newest first
func (s *MemoryStore) FindOfficialRules(ctx context.Context, service string, limit int) ([]core.LookupResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.LookupResult
	for _, r := range s.rules {
		if r.result.Status != core.StatusActive && r.result.Status != core.StatusConflict {
			continue
		}
		if !strings.Contains(r.applicability, strings.ToUpper(service)) {
			continue
		}
		out = append(out, r.result)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].IssuedOn > out[j].IssuedOn })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// FindOpportunities returns active, unexpired opportunities, newest first
func (s *MemoryStore) FindOpportunities(ctx context.Context, category, today string, limit int) ([]core.LookupResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.LookupResult
	for i := len(s.opportunities) - 1; i >= 0 && len(out) < limit; i-- {
		opp := s.opportunities[i]
		if opp.Status != core.StatusActive {
			continue
		}
		if category != "" && !strings.EqualFold(opp.Fields.Category, category) {
			continue
		}
		if opp.Fields.ValidityEnd != "" && opp.Fields.ValidityEnd < today {
			continue
		}
		out = append(out, opportunityResult(opp))
	}
	return out, nil
}

// OpportunityExists checks the exact duplicate triple
func (s *MemoryStore) OpportunityExists(ctx context.Context, organisation, title, validityStart string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, opp := range s.opportunities {
		f := opp.Fields
		if f.Organisation == organisation && f.Title == title && f.ValidityStart == validityStart {
			return true, nil
		}
	}
	return false, nil
}

// CreateOpportunity stores an accepted submission
func (s *MemoryStore) CreateOpportunity(ctx context.Context, opp *core.Opportunity) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	cp := *opp
	cp.ID = s.nextID
	s.opportunities = append(s.opportunities, &cp)
	return cp.ID, nil
}

// LoadFlags returns all configuration flags
func (s *MemoryStore) LoadFlags(ctx context.Context) ([]core.ConfigFlag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.ConfigFlag, 0, len(s.flags))
	for _, f := range s.flags {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// SeedFlags inserts flags that do not exist yet
func (s *MemoryStore) SeedFlags(ctx context.Context, flags []core.ConfigFlag) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range flags {
		if _, ok := s.flags[f.Key]; !ok {
			s.flags[f.Key] = f
		}
	}
	return nil
}

// SetFlagEnabled toggles an existing flag
func (s *MemoryStore) SetFlagEnabled(ctx context.Context, key string, enabled bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.flags[key]
	if !ok {
		return ErrNotFound
	}
	f.Enabled = enabled
	f.UpdatedAt = at.UTC()
	s.flags[key] = f
	return nil
}

// DailyStats returns the outcome buckets of a day
func (s *MemoryStore) DailyStats(ctx context.Context, day string) ([]core.EventAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.EventAggregate
	for key, b := range s.events {
		if key.Day != day || isSenderScoped(key.Category) {
			continue
		}
		out = append(out, core.EventAggregate{EventKey: key, Count: b.count, CreatedAt: b.createdAt})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].EventKey, out[j].EventKey
		if a.EventType != b.EventType {
			return a.EventType < b.EventType
		}
		if a.ResultType != b.ResultType {
			return a.ResultType < b.ResultType
		}
		return a.Category < b.Category
	})
	return out, nil
}

// TrustStats summarises sender reputation
func (s *MemoryStore) TrustStats(ctx context.Context) (*core.TrustStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &core.TrustStats{Senders: len(s.senders)}
	total := 0
	for _, rec := range s.senders {
		total += rec.TrustScore
		if rec.ShadowBanned {
			stats.ShadowBanned++
		}
	}
	if stats.Senders > 0 {
		stats.AverageScore = float64(total) / float64(stats.Senders)
	}
	return stats, nil
}

// Cleanup drops expired sender-scoped buckets and expires old opportunities
func (s *MemoryStore) Cleanup(ctx context.Context, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := retentionCutoff(now, s.retention)
	purged := 0
	for key := range s.events {
		if isSenderScoped(key.Category) && key.Day < cutoff {
			delete(s.events, key)
			purged++
		}
	}

	today := now.UTC().Format(dayLayout)
	expired := 0
	for _, opp := range s.opportunities {
		if opp.Status == core.StatusActive && opp.Fields.ValidityEnd != "" && opp.Fields.ValidityEnd < today {
			opp.Status = core.StatusExpired
			expired++
		}
	}

	s.logger.Debug("Cleaned up store",
		zap.Int("purged_buckets", purged),
		zap.Int("expired_opportunities", expired))
	return nil
}

// startCleanupTask starts a background task to run Cleanup periodically
func (s *MemoryStore) startCleanupTask() {
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

// Stop stops the background cleanup task
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func opportunityResult(opp *core.Opportunity) core.LookupResult {
	return core.LookupResult{
		ID:        opp.ID,
		Title:     opp.Fields.Title,
		Authority: opp.Fields.Organisation,
		Detail:    opp.Fields.Description,
		Status:    opp.Status,
		IssuedOn:  opp.Fields.ValidityStart,
	}
}

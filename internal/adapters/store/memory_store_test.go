package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/captvenkat/faujnet-backend/internal/classify"
	"github.com/captvenkat/faujnet-backend/internal/core"
)

func newTestMemoryStore(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore(zap.NewNop(), 0, 24*time.Hour)
	t.Cleanup(s.Stop)
	return s
}

func TestMemoryStoreEnsureSenderIsIdempotent(t *testing.T) {
	s := newTestMemoryStore(t)
	ctx := context.Background()
	first := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.EnsureSender(ctx, "abc", "example.com", first.Add(time.Duration(i)*time.Minute)))
		}(i)
	}
	wg.Wait()

	rec, err := s.GetSender(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, 100, rec.TrustScore)
	assert.False(t, rec.ShadowBanned)
	assert.Len(t, s.senders, 1)
}

func TestMemoryStoreApplyTrustUpdateIsAtomic(t *testing.T) {
	s := newTestMemoryStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureSender(ctx, "abc", "example.com", time.Now()))

	// drop the score to 50 first so concurrent +1 deltas are not clamped
	require.NoError(t, s.ApplyTrustUpdate(ctx, core.TrustUpdate{Hash: "abc", Delta: -50, At: time.Now()}))

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.ApplyTrustUpdate(ctx, core.TrustUpdate{
				Hash:     "abc",
				Delta:    1,
				Counters: core.CounterDelta{Queries: 1},
				At:       time.Now(),
			}))
		}()
	}
	wg.Wait()

	rec, err := s.GetSender(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, 80, rec.TrustScore)
	assert.Equal(t, 30, rec.TotalQueries)
}

func TestMemoryStoreBanUsesPostDeltaScore(t *testing.T) {
	s := newTestMemoryStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureSender(ctx, "abc", "example.com", time.Now()))

	require.NoError(t, s.ApplyTrustUpdate(ctx, core.TrustUpdate{Hash: "abc", Delta: -85, Threshold: 20, At: time.Now()}))
	rec, _ := s.GetSender(ctx, "abc")
	assert.Equal(t, 15, rec.TrustScore)
	assert.True(t, rec.ShadowBanned)

	require.NoError(t, s.ApplyTrustUpdate(ctx, core.TrustUpdate{Hash: "abc", Delta: 50, Threshold: 20, At: time.Now()}))
	rec, _ = s.GetSender(ctx, "abc")
	assert.Equal(t, 65, rec.TrustScore)
	assert.True(t, rec.ShadowBanned, "ban flag must stay set")
}

func TestMemoryStoreApplyTrustUpdateUnknownSender(t *testing.T) {
	s := newTestMemoryStore(t)
	err := s.ApplyTrustUpdate(context.Background(), core.TrustUpdate{Hash: "nobody"})
	assert.ErrorIs(t, err, core.ErrSenderNotFound)
}

func TestMemoryStoreEventWindow(t *testing.T) {
	s := newTestMemoryStore(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)

	old := core.EventKey{Day: "2025-03-01T08", EventType: "ASK", ResultType: core.ResultAdmitted, Category: "sender:abc"}
	recent := core.EventKey{Day: "2025-03-01T10", EventType: "ASK", ResultType: core.ResultAdmitted, Category: "sender:abc"}

	require.NoError(t, s.IncrementEvent(ctx, old, now.Add(-2*time.Hour)))
	require.NoError(t, s.IncrementEvent(ctx, recent, now.Add(-10*time.Minute)))
	require.NoError(t, s.IncrementEvent(ctx, recent, now))

	total, err := s.SumEvents(ctx, "sender:abc", now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	count, err := s.EventCount(ctx, recent)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMemoryStoreFindOfficialRules(t *testing.T) {
	s := newTestMemoryStore(t)
	ctx := context.Background()

	_, err := s.AddOfficialRule(ctx, core.LookupResult{Title: "ECHS circular", Status: core.StatusActive, IssuedOn: "2023-01-01"}, "Army, Navy")
	require.NoError(t, err)
	_, err = s.AddOfficialRule(ctx, core.LookupResult{Title: "ECHS revision", Status: core.StatusConflict, IssuedOn: "2024-01-01"}, "navy")
	require.NoError(t, err)
	_, err = s.AddOfficialRule(ctx, core.LookupResult{Title: "Withdrawn", Status: core.StatusExpired, IssuedOn: "2025-01-01"}, "NAVY")
	require.NoError(t, err)
	_, err = s.AddOfficialRule(ctx, core.LookupResult{Title: "Air only", Status: core.StatusActive, IssuedOn: "2025-01-01"}, "AIR_FORCE")
	require.NoError(t, err)

	results, err := s.FindOfficialRules(ctx, "NAVY", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "ECHS revision", results[0].Title)
	assert.Equal(t, "ECHS circular", results[1].Title)
}

func TestMemoryStoreOpportunities(t *testing.T) {
	s := newTestMemoryStore(t)
	ctx := context.Background()

	add := func(title, category, end string) {
		_, err := s.CreateOpportunity(ctx, &core.Opportunity{
			Fields: classify.SubmissionFields{
				Organisation:  "TechCorp",
				Title:         title,
				Category:      category,
				ValidityStart: "2025-01-01",
				ValidityEnd:   end,
			},
			Status: core.StatusActive,
		})
		require.NoError(t, err)
	}
	add("Guard", "EMPLOYMENT", "")
	add("Driver", "EMPLOYMENT", "2025-02-01")
	add("Course", "TRAINING", "")
	add("Supervisor", "EMPLOYMENT", "2025-12-31")

	results, err := s.FindOpportunities(ctx, "employment", "2025-03-01", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Supervisor", results[0].Title)
	assert.Equal(t, "Guard", results[1].Title)

	all, err := s.FindOpportunities(ctx, "", "2025-03-01", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	exists, err := s.OpportunityExists(ctx, "TechCorp", "Guard", "2025-01-01")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.OpportunityExists(ctx, "TechCorp", "Guard", "2025-01-02")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemoryStoreFlags(t *testing.T) {
	s := newTestMemoryStore(t)
	ctx := context.Background()
	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.SeedFlags(ctx, core.DefaultFlags(core.Settings{AskEnabled: true, RateLimitPerHour: 10, BanThreshold: 20}, at)))
	require.NoError(t, s.SetFlagEnabled(ctx, core.FlagSafeMode, true, at.Add(time.Hour)))

	// reseeding must not overwrite operator changes
	require.NoError(t, s.SeedFlags(ctx, core.DefaultFlags(core.Settings{}, at)))

	flags, err := s.LoadFlags(ctx)
	require.NoError(t, err)
	settings := core.SettingsFromFlags(flags)
	assert.True(t, settings.AskEnabled)
	assert.True(t, settings.SafeMode)
	assert.Equal(t, at.Add(time.Hour).UnixNano(), settings.Version)

	assert.ErrorIs(t, s.SetFlagEnabled(ctx, "UNKNOWN", true, at), ErrNotFound)
}

func TestMemoryStoreDailyStatsHidesSenderBuckets(t *testing.T) {
	s := newTestMemoryStore(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.IncrementEvent(ctx, core.EventKey{Day: "2025-03-01", EventType: "ASK", ResultType: core.ResultReplySent, Category: "RULE_QUERY"}, now))
	require.NoError(t, s.IncrementEvent(ctx, core.EventKey{Day: "2025-03-01", EventType: "ASK", ResultType: core.ResultClarification, Category: "clarify:abc:service"}, now))
	require.NoError(t, s.IncrementEvent(ctx, core.EventKey{Day: "2025-03-01", EventType: "ASK", ResultType: core.ResultAdmitted, Category: "sender:abc"}, now))

	stats, err := s.DailyStats(ctx, "2025-03-01")
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "RULE_QUERY", stats[0].Category)
	assert.Equal(t, 1, stats[0].Count)
}

func TestMemoryStoreCleanup(t *testing.T) {
	s := newTestMemoryStore(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	stale := core.EventKey{Day: "2025-03-01T09", EventType: "ASK", ResultType: core.ResultAdmitted, Category: "sender:abc"}
	fresh := core.EventKey{Day: "2025-03-10T11", EventType: "ASK", ResultType: core.ResultAdmitted, Category: "sender:abc"}
	daily := core.EventKey{Day: "2025-03-01", EventType: "ASK", ResultType: core.ResultReplySent, Category: "RULE_QUERY"}
	for _, k := range []core.EventKey{stale, fresh, daily} {
		require.NoError(t, s.IncrementEvent(ctx, k, now))
	}
	_, err := s.CreateOpportunity(ctx, &core.Opportunity{
		Fields: classify.SubmissionFields{Title: "Old", ValidityEnd: "2025-03-01"},
		Status: core.StatusActive,
	})
	require.NoError(t, err)

	require.NoError(t, s.Cleanup(ctx, now))

	count, _ := s.EventCount(ctx, stale)
	assert.Zero(t, count)
	count, _ = s.EventCount(ctx, fresh)
	assert.Equal(t, 1, count)
	count, _ = s.EventCount(ctx, daily)
	assert.Equal(t, 1, count, "outcome buckets are kept")
	assert.Equal(t, core.StatusExpired, s.opportunities[0].Status)
}

func TestMemoryStoreTrustStats(t *testing.T) {
	s := newTestMemoryStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureSender(ctx, "a", "x.com", time.Now()))
	require.NoError(t, s.EnsureSender(ctx, "b", "y.com", time.Now()))
	require.NoError(t, s.ApplyTrustUpdate(ctx, core.TrustUpdate{Hash: "b", Delta: -90, Threshold: 20, At: time.Now()}))

	stats, err := s.TrustStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Senders)
	assert.Equal(t, 1, stats.ShadowBanned)
	assert.InDelta(t, 55.0, stats.AverageScore, 0.001)
}

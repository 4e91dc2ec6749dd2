package governkit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLedgerAdmitWithinCapacity validates plain admissions.
func TestLedgerAdmitWithinCapacity(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()
	require.NoError(t, ledger.Configure(ctx, "run-1", 2))

	a, err := ledger.Admit(ctx, "run-1", "claim-a")
	require.NoError(t, err)
	assert.Equal(t, AdmissionCommitted, a.Outcome)
	assert.Zero(t, a.Position)

	b, err := ledger.Admit(ctx, "run-1", "claim-b")
	require.NoError(t, err)
	assert.Equal(t, AdmissionCommitted, b.Outcome)

	state, err := ledger.State(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 2, state.Committed)
	assert.Empty(t, state.Waitlist)
}

// TestLedgerWaitlistOrdering validates the full-capacity path: a run with
// max 2 fills with A and B, then C lands on the waitlist at position 1.
func TestLedgerWaitlistOrdering(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()
	require.NoError(t, ledger.Configure(ctx, "run-1", 2))

	for _, claim := range []string{"a", "b"} {
		adm, err := ledger.Admit(ctx, "run-1", claim)
		require.NoError(t, err)
		require.Equal(t, AdmissionCommitted, adm.Outcome)
	}

	c, err := ledger.Admit(ctx, "run-1", "c")
	require.NoError(t, err)
	assert.Equal(t, AdmissionWaitlisted, c.Outcome)
	assert.Equal(t, 1, c.Position)

	d, err := ledger.Admit(ctx, "run-1", "d")
	require.NoError(t, err)
	assert.Equal(t, AdmissionWaitlisted, d.Outcome)
	assert.Equal(t, 2, d.Position)

	state, err := ledger.State(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d"}, state.Waitlist)
}

// TestLedgerIdempotentReplay validates that replaying a decided claim returns
// the original outcome without double-counting.
func TestLedgerIdempotentReplay(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()
	require.NoError(t, ledger.Configure(ctx, "run-1", 1))

	first, err := ledger.Admit(ctx, "run-1", "claim-a")
	require.NoError(t, err)
	assert.Equal(t, AdmissionCommitted, first.Outcome)
	assert.False(t, first.Replayed)

	replay, err := ledger.Admit(ctx, "run-1", "claim-a")
	require.NoError(t, err)
	assert.Equal(t, AdmissionCommitted, replay.Outcome)
	assert.True(t, replay.Replayed)

	state, err := ledger.State(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 1, state.Committed)

	// Waitlisted replay reports the current position
	wl, err := ledger.Admit(ctx, "run-1", "claim-b")
	require.NoError(t, err)
	assert.Equal(t, AdmissionWaitlisted, wl.Outcome)

	wlReplay, err := ledger.Admit(ctx, "run-1", "claim-b")
	require.NoError(t, err)
	assert.True(t, wlReplay.Replayed)
	assert.Equal(t, 1, wlReplay.Position)
}

// TestLedgerReleasePromotesHead validates head promotion and renumbering.
func TestLedgerReleasePromotesHead(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()
	require.NoError(t, ledger.Configure(ctx, "run-1", 1))

	_, err := ledger.Admit(ctx, "run-1", "seated")
	require.NoError(t, err)
	for _, claim := range []string{"w1", "w2", "w3"} {
		_, err := ledger.Admit(ctx, "run-1", claim)
		require.NoError(t, err)
	}

	promotion, err := ledger.Release(ctx, "run-1", "seated")
	require.NoError(t, err)
	require.NotNil(t, promotion)
	assert.Equal(t, "w1", promotion.ClaimID)

	state, err := ledger.State(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 1, state.Committed)
	assert.Equal(t, []string{"w2", "w3"}, state.Waitlist)
}

// TestLedgerReleaseWaitlistedRenumbers validates removing a mid-list claim
// keeps positions contiguous.
func TestLedgerReleaseWaitlistedRenumbers(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()
	require.NoError(t, ledger.Configure(ctx, "run-1", 0))

	for _, claim := range []string{"w1", "w2", "w3"} {
		_, err := ledger.Admit(ctx, "run-1", claim)
		require.NoError(t, err)
	}

	promotion, err := ledger.Release(ctx, "run-1", "w2")
	require.NoError(t, err)
	assert.Nil(t, promotion)

	state, err := ledger.State(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"w1", "w3"}, state.Waitlist)

	// w3's replayed position reflects the shift
	replay, err := ledger.Admit(ctx, "run-1", "w3")
	require.NoError(t, err)
	assert.True(t, replay.Replayed)
	assert.Equal(t, 2, replay.Position)
}

// TestLedgerReleaseUnknownClaim validates the claim-not-found path.
func TestLedgerReleaseUnknownClaim(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()
	require.NoError(t, ledger.Configure(ctx, "run-1", 1))

	_, err := ledger.Release(ctx, "run-1", "ghost")
	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrClaimNotFound)
}

// TestLedgerUnknownResource validates operations on unconfigured resources.
func TestLedgerUnknownResource(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()

	_, err := ledger.Admit(ctx, "nowhere", "claim-a")
	assert.ErrorIs(t, err, ErrResourceNotFound)

	_, err = ledger.State(ctx, "nowhere")
	assert.ErrorIs(t, err, ErrResourceNotFound)
}

// TestLedgerCommittedFloorsAtZero validates release never drives the counter
// negative.
func TestLedgerCommittedFloorsAtZero(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()
	require.NoError(t, ledger.Configure(ctx, "run-1", 5))

	_, err := ledger.Admit(ctx, "run-1", "a")
	require.NoError(t, err)

	_, err = ledger.Release(ctx, "run-1", "a")
	require.NoError(t, err)

	state, err := ledger.State(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 0, state.Committed)

	// Released claims admit fresh, not as replays
	again, err := ledger.Admit(ctx, "run-1", "a")
	require.NoError(t, err)
	assert.False(t, again.Replayed)
	assert.Equal(t, AdmissionCommitted, again.Outcome)
}

// TestLedgerReserveOverbook validates the explicit overbook path.
func TestLedgerReserveOverbook(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()
	require.NoError(t, ledger.Configure(ctx, "run-1", 1))

	_, err := ledger.Admit(ctx, "run-1", "a")
	require.NoError(t, err)

	over, err := ledger.ReserveOverbook(ctx, "run-1", "vip")
	require.NoError(t, err)
	assert.Equal(t, AdmissionCommitted, over.Outcome)
	assert.True(t, over.Overbooked)

	state, err := ledger.State(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 2, state.Committed)
	assert.True(t, state.Overbooked)

	// Normal admissions still waitlist
	normal, err := ledger.Admit(ctx, "run-1", "b")
	require.NoError(t, err)
	assert.Equal(t, AdmissionWaitlisted, normal.Outcome)
}

// TestLedgerConcurrentAdmissions validates the core atomicity property:
// N+5 concurrent admissions against N seats yield exactly N commits and 5
// waitlist entries with positions 1..5.
func TestLedgerConcurrentAdmissions(t *testing.T) {
	const seats = 20
	const extra = 5

	ctx := context.Background()
	ledger := NewMemoryLedger()
	require.NoError(t, ledger.Configure(ctx, "run-1", seats))

	var wg sync.WaitGroup
	results := make([]Admission, seats+extra)
	errs := make([]error, seats+extra)

	for i := 0; i < seats+extra; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = ledger.Admit(ctx, "run-1", fmt.Sprintf("claim-%d", i))
		}(i)
	}
	wg.Wait()

	committed := 0
	positions := make(map[int]bool)
	for i := range results {
		require.NoError(t, errs[i])
		switch results[i].Outcome {
		case AdmissionCommitted:
			committed++
		case AdmissionWaitlisted:
			positions[results[i].Position] = true
		}
	}

	assert.Equal(t, seats, committed)
	assert.Len(t, positions, extra)
	for p := 1; p <= extra; p++ {
		assert.True(t, positions[p], "expected a claim at waitlist position %d", p)
	}

	state, err := ledger.State(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, seats, state.Committed)
	assert.Len(t, state.Waitlist, extra)
}

// TestLedgerIndependentResources validates that different resources do not
// contend or share state.
func TestLedgerIndependentResources(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()
	require.NoError(t, ledger.Configure(ctx, "run-1", 1))
	require.NoError(t, ledger.Configure(ctx, "run-2", 1))

	a, err := ledger.Admit(ctx, "run-1", "claim")
	require.NoError(t, err)
	b, err := ledger.Admit(ctx, "run-2", "claim")
	require.NoError(t, err)

	assert.Equal(t, AdmissionCommitted, a.Outcome)
	assert.Equal(t, AdmissionCommitted, b.Outcome)
}

// TestLedgerContextCancellation validates that an expired context aborts the
// admission with no effect.
func TestLedgerContextCancellation(t *testing.T) {
	ledger := NewMemoryLedger()
	require.NoError(t, ledger.Configure(context.Background(), "run-1", 1))

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	<-ctx.Done()

	_, err := ledger.Admit(ctx, "run-1", "late")
	assert.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	state, err := ledger.State(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, 0, state.Committed)
}

// TestLedgerReset validates Reset clears everything.
func TestLedgerReset(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()
	require.NoError(t, ledger.Configure(ctx, "run-1", 1))
	_, err := ledger.Admit(ctx, "run-1", "a")
	require.NoError(t, err)

	require.NoError(t, ledger.Reset(ctx))

	_, err = ledger.State(ctx, "run-1")
	assert.ErrorIs(t, err, ErrResourceNotFound)
}

package governkit

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"
)

// AdmissionOutcome is the result class of an admission request.
type AdmissionOutcome string

const (
	// AdmissionCommitted means the claim holds a seat.
	AdmissionCommitted AdmissionOutcome = "committed"
	// AdmissionWaitlisted means the claim holds a waitlist position.
	AdmissionWaitlisted AdmissionOutcome = "waitlisted"
)

// Admission is the outcome of an admission request. Waitlisting is a valid
// outcome, not an error.
type Admission struct {
	Outcome    AdmissionOutcome
	Position   int  // 1-based waitlist position, 0 when committed
	Overbooked bool // true only for the explicit overbook path
	Replayed   bool // true when the claim ID had already been decided
}

// Promotion reports a waitlisted claim promoted to committed by a release.
type Promotion struct {
	ClaimID string
}

// LedgerState is a point-in-time snapshot of one resource's ledger.
type LedgerState struct {
	ResourceID  string
	Committed   int
	MaxCapacity int
	Waitlist    []string // claim IDs in position order
	Overbooked  bool
}

// LedgerStore tracks committed seats against a maximum per resource and keeps
// an ordered waitlist of pending claims. Implementations must make Admit and
// Release mutually exclusive per resource; requests against different
// resources must not contend.
type LedgerStore interface {
	// Configure creates or updates a resource's maximum capacity.
	Configure(ctx context.Context, resourceID string, maxCapacity int) error

	// Admit atomically commits the claim if a seat is open, or appends it to
	// the waitlist. It is idempotent per claim ID: replaying a claim returns
	// the original outcome without double-counting.
	Admit(ctx context.Context, resourceID, claimID string) (Admission, error)

	// ReserveOverbook commits a claim even beyond capacity. This is the only
	// path that may push committed above max, and it is always flagged and
	// logged — never the output of a normal Admit.
	ReserveOverbook(ctx context.Context, resourceID, claimID string) (Admission, error)

	// Release drops a claim. Committed counts floor at zero; when the waitlist
	// is non-empty, its head is promoted and the remaining positions shift
	// down to stay contiguous.
	Release(ctx context.Context, resourceID, claimID string) (*Promotion, error)

	// State returns a snapshot of the resource's ledger.
	State(ctx context.Context, resourceID string) (*LedgerState, error)

	// Reset clears all ledgers. Intended for tests.
	Reset(ctx context.Context) error
}

type claimState struct {
	outcome    AdmissionOutcome
	overbooked bool
}

type resourceLedger struct {
	mu        chan struct{} // 1-buffered channel used as a ctx-aware mutex
	committed int
	max       int
	claims    map[string]*claimState
	waitlist  []string
}

func newResourceLedger() *resourceLedger {
	l := &resourceLedger{
		mu:     make(chan struct{}, 1),
		claims: make(map[string]*claimState),
	}
	return l
}

func (l *resourceLedger) lock(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case l.mu <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *resourceLedger) unlock() {
	<-l.mu
}

func (l *resourceLedger) position(claimID string) int {
	for i, id := range l.waitlist {
		if id == claimID {
			return i + 1
		}
	}
	return 0
}

// MemoryLedger is the in-process LedgerStore. Ledgers are sharded per
// resource in a concurrent map; each resource serializes its own admissions
// so two concurrent requests for the last open seat can never both commit.
type MemoryLedger struct {
	ledgers *xsync.MapOf[string, *resourceLedger]
	log     zerolog.Logger
}

// MemoryLedgerOption configures a MemoryLedger.
type MemoryLedgerOption func(*MemoryLedger)

// WithLedgerLogger sets the logger used for promotion and overbook events.
func WithLedgerLogger(log zerolog.Logger) MemoryLedgerOption {
	return func(m *MemoryLedger) {
		m.log = log
	}
}

// NewMemoryLedger creates an in-process ledger store.
func NewMemoryLedger(opts ...MemoryLedgerOption) *MemoryLedger {
	m := &MemoryLedger{
		ledgers: xsync.NewMapOf[string, *resourceLedger](),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Configure creates or resizes a resource's ledger.
func (m *MemoryLedger) Configure(ctx context.Context, resourceID string, maxCapacity int) error {
	ledger, _ := m.ledgers.LoadOrCompute(resourceID, newResourceLedger)
	if err := ledger.lock(ctx); err != nil {
		return err
	}
	defer ledger.unlock()

	ledger.max = maxCapacity
	return nil
}

// Admit implements LedgerStore.
func (m *MemoryLedger) Admit(ctx context.Context, resourceID, claimID string) (Admission, error) {
	ledger, ok := m.ledgers.Load(resourceID)
	if !ok {
		return Admission{}, NewError(ErrResourceNotFound, "").WithClaim(claimID)
	}
	if err := ledger.lock(ctx); err != nil {
		return Admission{}, err
	}
	defer ledger.unlock()

	// Idempotency: a decided claim replays its original outcome. Waitlist
	// positions may have shifted since, so report the current one.
	if existing, decided := ledger.claims[claimID]; decided {
		return Admission{
			Outcome:    existing.outcome,
			Position:   ledger.position(claimID),
			Overbooked: existing.overbooked,
			Replayed:   true,
		}, nil
	}

	if ledger.committed < ledger.max {
		ledger.committed++
		ledger.claims[claimID] = &claimState{outcome: AdmissionCommitted}
		return Admission{Outcome: AdmissionCommitted}, nil
	}

	ledger.waitlist = append(ledger.waitlist, claimID)
	ledger.claims[claimID] = &claimState{outcome: AdmissionWaitlisted}
	return Admission{Outcome: AdmissionWaitlisted, Position: len(ledger.waitlist)}, nil
}

// ReserveOverbook implements LedgerStore.
func (m *MemoryLedger) ReserveOverbook(ctx context.Context, resourceID, claimID string) (Admission, error) {
	ledger, ok := m.ledgers.Load(resourceID)
	if !ok {
		return Admission{}, NewError(ErrResourceNotFound, "").WithClaim(claimID)
	}
	if err := ledger.lock(ctx); err != nil {
		return Admission{}, err
	}
	defer ledger.unlock()

	if existing, decided := ledger.claims[claimID]; decided {
		return Admission{
			Outcome:    existing.outcome,
			Position:   ledger.position(claimID),
			Overbooked: existing.overbooked,
			Replayed:   true,
		}, nil
	}

	ledger.committed++
	over := ledger.committed > ledger.max
	ledger.claims[claimID] = &claimState{outcome: AdmissionCommitted, overbooked: over}

	if over {
		m.log.Warn().
			Str("resource_id", resourceID).
			Str("claim_id", claimID).
			Int("committed", ledger.committed).
			Int("max_capacity", ledger.max).
			Msg("overbook reservation committed beyond capacity")
	}

	return Admission{Outcome: AdmissionCommitted, Overbooked: over}, nil
}

// Release implements LedgerStore.
func (m *MemoryLedger) Release(ctx context.Context, resourceID, claimID string) (*Promotion, error) {
	ledger, ok := m.ledgers.Load(resourceID)
	if !ok {
		return nil, NewError(ErrResourceNotFound, "").WithClaim(claimID)
	}
	if err := ledger.lock(ctx); err != nil {
		return nil, err
	}
	defer ledger.unlock()

	state, held := ledger.claims[claimID]
	if !held {
		return nil, NewError(ErrClaimNotFound, "").WithClaim(claimID)
	}
	delete(ledger.claims, claimID)

	if state.outcome == AdmissionWaitlisted {
		// Removing a waitlisted claim renumbers the rest by position: the
		// slice order is the position order.
		for i, id := range ledger.waitlist {
			if id == claimID {
				ledger.waitlist = append(ledger.waitlist[:i], ledger.waitlist[i+1:]...)
				break
			}
		}
		return nil, nil
	}

	if ledger.committed > 0 {
		ledger.committed--
	}

	if len(ledger.waitlist) == 0 {
		return nil, nil
	}

	head := ledger.waitlist[0]
	ledger.waitlist = ledger.waitlist[1:]
	ledger.claims[head].outcome = AdmissionCommitted
	ledger.committed++

	m.log.Info().
		Str("resource_id", resourceID).
		Str("claim_id", head).
		Msg("waitlisted claim promoted to committed")

	return &Promotion{ClaimID: head}, nil
}

// State implements LedgerStore.
func (m *MemoryLedger) State(ctx context.Context, resourceID string) (*LedgerState, error) {
	ledger, ok := m.ledgers.Load(resourceID)
	if !ok {
		return nil, NewError(ErrResourceNotFound, "")
	}
	if err := ledger.lock(ctx); err != nil {
		return nil, err
	}
	defer ledger.unlock()

	waitlist := make([]string, len(ledger.waitlist))
	copy(waitlist, ledger.waitlist)

	return &LedgerState{
		ResourceID:  resourceID,
		Committed:   ledger.committed,
		MaxCapacity: ledger.max,
		Waitlist:    waitlist,
		Overbooked:  ledger.committed > ledger.max,
	}, nil
}

// Reset implements LedgerStore.
func (m *MemoryLedger) Reset(ctx context.Context) error {
	m.ledgers.Clear()
	return nil
}

package governkit

import (
	"context"
	"fmt"
	"time"

	"github.com/fernandezvara/dbkit"
	"github.com/uptrace/bun"
)

// ============================================================================
// DATABASE-BACKED CAPACITY LEDGER
// ============================================================================

// Service implements LedgerStore on top of dbkit/bun. Each admission locks
// the resource's ledger row, so concurrent requests for the same resource
// serialize at the database while different resources proceed independently.
var _ LedgerStore = (*Service)(nil)

// Configure creates or resizes a resource's capacity ledger.
func (s *Service) Configure(ctx context.Context, resourceID string, maxCapacity int) error {
	row := &CapacityLedgerRow{
		ResourceID:  resourceID,
		MaxCapacity: maxCapacity,
		UpdatedAt:   time.Now(),
	}
	result, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (resource_id) DO UPDATE").
		Set("max_capacity = EXCLUDED.max_capacity, updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return dbkit.WithErr(result, err, "ConfigureCapacity").Err()
}

// Admit implements LedgerStore. The decision runs in a single transaction
// with the ledger row locked: two concurrent admissions against the last open
// seat can never both commit. Replaying a decided claim ID returns the
// original outcome without double-counting.
func (s *Service) Admit(ctx context.Context, resourceID, claimID string) (Admission, error) {
	var admission Admission
	start := time.Now()

	err := s.runInTx(ctx, func(tx *dbkit.Tx) error {
		ledger, err := s.lockLedger(ctx, tx, resourceID)
		if err != nil {
			return err
		}

		// Idempotency: the ledger row lock is held, so the claim lookup and
		// the decision are one critical section.
		var claim LedgerClaimRow
		err = dbkit.WithErr1(tx.NewSelect().Model(&claim).
			Where("resource_id = ? AND claim_id = ?", resourceID, claimID).
			Limit(1).Scan(ctx), "AdmitReplayCheck").Err()
		if err == nil {
			admission = Admission{
				Outcome:    AdmissionOutcome(claim.State),
				Position:   claim.Position,
				Overbooked: claim.Overbooked,
				Replayed:   true,
			}
			return nil
		}
		if !dbkit.IsNotFound(err) {
			return err
		}

		if ledger.Committed < ledger.MaxCapacity {
			if err := s.setCommitted(ctx, tx, resourceID, ledger.Committed+1); err != nil {
				return err
			}
			if err := s.insertClaim(ctx, tx, resourceID, claimID, string(AdmissionCommitted), 0, false); err != nil {
				return err
			}
			admission = Admission{Outcome: AdmissionCommitted}
			return nil
		}

		waiting, err := dbkit.Count[LedgerClaimRow](ctx, tx, waitlistedClaims(resourceID))
		if err != nil {
			return err
		}
		position := waiting + 1
		if err := s.insertClaim(ctx, tx, resourceID, claimID, string(AdmissionWaitlisted), position, false); err != nil {
			return err
		}
		admission = Admission{Outcome: AdmissionWaitlisted, Position: position}
		return nil
	})

	s.monitor.recordAdmission(admission, time.Since(start), err == nil)
	if err != nil {
		return Admission{}, err
	}
	return admission, nil
}

// ReserveOverbook implements LedgerStore. This is the only path that may push
// committed above max_capacity; every such reservation is flagged on the
// claim row and logged.
func (s *Service) ReserveOverbook(ctx context.Context, resourceID, claimID string) (Admission, error) {
	var admission Admission
	start := time.Now()

	err := s.runInTx(ctx, func(tx *dbkit.Tx) error {
		ledger, err := s.lockLedger(ctx, tx, resourceID)
		if err != nil {
			return err
		}

		var claim LedgerClaimRow
		err = dbkit.WithErr1(tx.NewSelect().Model(&claim).
			Where("resource_id = ? AND claim_id = ?", resourceID, claimID).
			Limit(1).Scan(ctx), "ReserveReplayCheck").Err()
		if err == nil {
			admission = Admission{
				Outcome:    AdmissionOutcome(claim.State),
				Position:   claim.Position,
				Overbooked: claim.Overbooked,
				Replayed:   true,
			}
			return nil
		}
		if !dbkit.IsNotFound(err) {
			return err
		}

		committed := ledger.Committed + 1
		over := committed > ledger.MaxCapacity
		if err := s.setCommitted(ctx, tx, resourceID, committed); err != nil {
			return err
		}
		if err := s.insertClaim(ctx, tx, resourceID, claimID, string(AdmissionCommitted), 0, over); err != nil {
			return err
		}
		if over {
			s.log.Warn().
				Str("resource_id", resourceID).
				Str("claim_id", claimID).
				Int("committed", committed).
				Int("max_capacity", ledger.MaxCapacity).
				Msg("overbook reservation committed beyond capacity")
		}
		admission = Admission{Outcome: AdmissionCommitted, Overbooked: over}
		return nil
	})

	s.monitor.recordAdmission(admission, time.Since(start), err == nil)
	if err != nil {
		return Admission{}, err
	}
	return admission, nil
}

// Release implements LedgerStore. Committed counts floor at zero; a non-empty
// waitlist promotes its head and renumbers the remaining positions so they
// stay a contiguous 1..N sequence.
func (s *Service) Release(ctx context.Context, resourceID, claimID string) (*Promotion, error) {
	var promotion *Promotion
	start := time.Now()

	err := s.runInTx(ctx, func(tx *dbkit.Tx) error {
		ledger, err := s.lockLedger(ctx, tx, resourceID)
		if err != nil {
			return err
		}

		var claim LedgerClaimRow
		err = dbkit.WithErr1(tx.NewSelect().Model(&claim).
			Where("resource_id = ? AND claim_id = ?", resourceID, claimID).
			Limit(1).Scan(ctx), "ReleaseClaimLookup").Err()
		if err != nil {
			if dbkit.IsNotFound(err) {
				return NewError(ErrClaimNotFound, "").WithClaim(claimID)
			}
			return err
		}

		result, err := tx.NewDelete().Table("ledger_claims").
			Where("resource_id = ? AND claim_id = ?", resourceID, claimID).Exec(ctx)
		if err := dbkit.WithErr(result, err, "ReleaseClaimDelete").Err(); err != nil {
			return err
		}

		if claim.State == string(AdmissionWaitlisted) {
			return s.shiftWaitlist(ctx, tx, resourceID, claim.Position)
		}

		committed := ledger.Committed
		if committed > 0 {
			committed--
		}

		var head LedgerClaimRow
		err = dbkit.WithErr1(tx.NewSelect().Model(&head).
			Where("resource_id = ? AND state = ?", resourceID, string(AdmissionWaitlisted)).
			Order("position ASC").Limit(1).Scan(ctx), "ReleaseHeadLookup").Err()
		if err != nil {
			if dbkit.IsNotFound(err) {
				return s.setCommitted(ctx, tx, resourceID, committed)
			}
			return err
		}

		result, err = tx.NewUpdate().Table("ledger_claims").
			Set("state = ?", string(AdmissionCommitted)).
			Set("position = 0").
			Where("resource_id = ? AND claim_id = ?", resourceID, head.ClaimID).Exec(ctx)
		if err := dbkit.WithErr(result, err, "ReleasePromoteHead").Err(); err != nil {
			return err
		}
		if err := s.shiftWaitlist(ctx, tx, resourceID, head.Position); err != nil {
			return err
		}

		committed++
		if err := s.setCommitted(ctx, tx, resourceID, committed); err != nil {
			return err
		}

		s.log.Info().
			Str("resource_id", resourceID).
			Str("claim_id", head.ClaimID).
			Msg("waitlisted claim promoted to committed")
		promotion = &Promotion{ClaimID: head.ClaimID}
		return nil
	})

	s.monitor.recordRelease(time.Since(start), err == nil)
	if err != nil {
		return nil, err
	}
	return promotion, nil
}

// State implements LedgerStore.
func (s *Service) State(ctx context.Context, resourceID string) (*LedgerState, error) {
	var ledger CapacityLedgerRow
	err := dbkit.WithErr1(s.db.NewSelect().Model(&ledger).
		Where("resource_id = ?", resourceID).Limit(1).Scan(ctx), "LedgerState").Err()
	if err != nil {
		if dbkit.IsNotFound(err) {
			return nil, NewError(ErrResourceNotFound, "")
		}
		return nil, err
	}

	var claims []LedgerClaimRow
	err = dbkit.WithErr1(s.db.NewSelect().Model(&claims).
		Where("resource_id = ? AND state = ?", resourceID, string(AdmissionWaitlisted)).
		Order("position ASC").Scan(ctx), "LedgerWaitlist").Err()
	if err != nil && !dbkit.IsNotFound(err) {
		return nil, err
	}

	waitlist := make([]string, 0, len(claims))
	for _, c := range claims {
		waitlist = append(waitlist, c.ClaimID)
	}

	return &LedgerState{
		ResourceID:  resourceID,
		Committed:   ledger.Committed,
		MaxCapacity: ledger.MaxCapacity,
		Waitlist:    waitlist,
		Overbooked:  ledger.Committed > ledger.MaxCapacity,
	}, nil
}

// Reset implements LedgerStore. Intended for tests.
func (s *Service) Reset(ctx context.Context) error {
	return s.runInTx(ctx, func(tx *dbkit.Tx) error {
		result, err := tx.NewDelete().Table("ledger_claims").Where("true").Exec(ctx)
		if err := dbkit.WithErr(result, err, "ResetClaims").Err(); err != nil {
			return err
		}
		result, err = tx.NewDelete().Table("capacity_ledgers").Where("true").Exec(ctx)
		return dbkit.WithErr(result, err, "ResetLedgers").Err()
	})
}

// ============================================================================
// INTERNAL HELPERS
// ============================================================================

// lockLedger fetches the resource's ledger row FOR UPDATE, making the caller
// the only writer for this resource until the transaction ends.
func (s *Service) lockLedger(ctx context.Context, tx *dbkit.Tx, resourceID string) (*CapacityLedgerRow, error) {
	var ledger CapacityLedgerRow
	err := dbkit.WithErr1(tx.NewSelect().Model(&ledger).
		Where("resource_id = ?", resourceID).
		For("UPDATE").
		Limit(1).Scan(ctx), "LockLedger").Err()
	if err != nil {
		if dbkit.IsNotFound(err) {
			return nil, NewError(ErrResourceNotFound, fmt.Sprintf("resource %q has no ledger", resourceID))
		}
		return nil, err
	}
	return &ledger, nil
}

func (s *Service) setCommitted(ctx context.Context, tx *dbkit.Tx, resourceID string, committed int) error {
	result, err := tx.NewUpdate().Table("capacity_ledgers").
		Set("committed = ?", committed).
		Set("updated_at = current_timestamp").
		Where("resource_id = ?", resourceID).Exec(ctx)
	return dbkit.WithErr(result, err, "SetCommitted").Err()
}

func (s *Service) insertClaim(ctx context.Context, tx *dbkit.Tx, resourceID, claimID, state string, position int, overbooked bool) error {
	claim := &LedgerClaimRow{
		ResourceID: resourceID,
		ClaimID:    claimID,
		State:      state,
		Position:   position,
		Overbooked: overbooked,
	}
	result, err := tx.NewInsert().Model(claim).Exec(ctx)
	if err := dbkit.WithErr(result, err, "InsertClaim").Err(); err != nil {
		return NewError(ErrDatabaseError, "failed to record claim").WithClaim(claimID)
	}
	return nil
}

// waitlistedClaims builds the query predicate for a resource's waitlist.
func waitlistedClaims(resourceID string) func(q *bun.SelectQuery) *bun.SelectQuery {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("resource_id = ? AND state = ?", resourceID, string(AdmissionWaitlisted))
	}
}

// shiftWaitlist closes the gap left by a departed position, preserving the
// contiguous 1..N sequence.
func (s *Service) shiftWaitlist(ctx context.Context, tx *dbkit.Tx, resourceID string, departedPosition int) error {
	result, err := tx.NewUpdate().Table("ledger_claims").
		Set("position = position - 1").
		Where("resource_id = ? AND state = ? AND position > ?",
			resourceID, string(AdmissionWaitlisted), departedPosition).Exec(ctx)
	return dbkit.WithErr(result, err, "ShiftWaitlist").Err()
}

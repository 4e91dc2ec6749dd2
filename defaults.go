package governkit

import (
	"context"
	"time"
)

// DefaultOption configures DefaultRegistry.
type DefaultOption func(*defaultConfig)

type defaultConfig struct {
	adminCounter func(ctx context.Context) (int, error)
	dupLeadMode  DuplicateMode
}

// WithAdminCounter injects the invariant query used by the staff-account
// guards: how many admin accounts currently exist. Without it, the guards
// conservatively deny self-targeting admin deletes and demotions.
func WithAdminCounter(fn func(ctx context.Context) (int, error)) DefaultOption {
	return func(c *defaultConfig) {
		c.adminCounter = fn
	}
}

// WithDuplicateLeadMode overrides the duplicate-lead policy. Defaults to
// DuplicateUpdate (silent update within the 24h window).
func WithDuplicateLeadMode(mode DuplicateMode) DefaultOption {
	return func(c *defaultConfig) {
		c.dupLeadMode = mode
	}
}

// DefaultRegistry builds the governance configuration for the standard
// content domain: enrollments, leads, FAQs, ad templates, media, course runs,
// and staff accounts. Applications with their own record types can use it as
// a starting point or build a registry from scratch.
func DefaultRegistry(opts ...DefaultOption) *Registry {
	cfg := &defaultConfig{dupLeadMode: DuplicateUpdate}
	for _, opt := range opts {
		opt(cfg)
	}

	r := NewRegistry()

	r.DefineRecordType("enrollment").
		Allow(RoleAdmin, OpCreate, OpRead, OpUpdate, OpDelete).
		Allow(RoleManager, OpCreate, OpRead, OpUpdate, OpDelete).
		AllowAssigned(RoleAdvisor, "assigned_to", true, OpRead, OpUpdate).
		Allow(RoleReadOnly, OpRead).
		DenyFields(RoleAdvisor, FieldDenyReject, "payment_*", "tuition_*", "discount_*").
		ImmutableField("owner_id", FromActor(), Required()).
		ImmutableField("student_id").
		ImmutableField("course_run_id").
		ImmutableField("certificate_id", WhenStatus("completed")).
		DefaultStatus("pending").
		Transition("pending", "confirmed", Stamp("confirmed_at"), CommitSeat()).
		Transition("pending", "waitlisted", Stamp("waitlisted_at")).
		Transition("pending", "cancelled", Stamp("cancelled_at")).
		Transition("confirmed", "completed", Stamp("completed_at"),
			RequireRange("attendance_percentage", 0, 100),
			RequireRange("final_grade", 0, 100)).
		Transition("confirmed", "cancelled", Stamp("cancelled_at"), ReleaseSeat()).
		Transition("confirmed", "withdrawn", Stamp("withdrawn_at"), ReleaseSeat()).
		Transition("waitlisted", "confirmed", Stamp("confirmed_at"), CommitSeat()).
		Transition("waitlisted", "cancelled", Stamp("cancelled_at"), ReleaseSeat()).
		Transition("cancelled", "pending").
		Capacity("course_run_id", "waitlisted")

	r.DefineRecordType("lead").
		Allow(RolePublic, OpCreate).
		Allow(RoleMarketing, OpCreate).
		AllowOwned(RoleMarketing, "owner_id", OpRead, OpUpdate).
		AllowAssigned(RoleAdvisor, "assigned_to", true, OpRead, OpUpdate).
		Allow(RoleAdmin, OpCreate, OpRead, OpUpdate, OpDelete).
		Allow(RoleManager, OpCreate, OpRead, OpUpdate, OpDelete).
		Allow(RoleReadOnly, OpRead).
		ImmutableField("consent_given", Required()).
		ImmutableField("consent_at", Required()).
		ImmutableField("source").
		DefaultStatus("new").
		Transition("new", "contacted", Stamp("contacted_at")).
		Transition("new", "discarded", Stamp("discarded_at")).
		Transition("contacted", "qualified", Stamp("qualified_at")).
		Transition("contacted", "discarded", Stamp("discarded_at")).
		OnDuplicateCreate(cfg.dupLeadMode, 24*time.Hour)

	r.DefineRecordType("faq").
		AllowWhere(RolePublic, "status", "published", OpRead).
		Allow(RoleMarketing, OpCreate, OpRead, OpUpdate).
		Allow(RoleAdmin, OpCreate, OpRead, OpUpdate, OpDelete).
		Allow(RoleManager, OpCreate, OpRead, OpUpdate, OpDelete).
		Allow(RoleReadOnly, OpRead).
		ImmutableField("published_at", WhenStatus("published")).
		DefaultStatus("draft").
		Transition("draft", "published", Stamp("published_at")).
		Transition("published", "draft").
		Transition("published", "archived", Stamp("archived_at"))

	r.DefineRecordType("ad_template").
		Allow(RoleMarketing, OpCreate).
		AllowOwned(RoleMarketing, "owner_id", OpRead, OpUpdate, OpDelete).
		Allow(RoleAdmin, OpCreate, OpRead, OpUpdate, OpDelete).
		Allow(RoleManager, OpCreate, OpRead, OpUpdate, OpDelete).
		Allow(RoleReadOnly, OpRead).
		DenyFields(RoleMarketing, FieldDenyStrip, "approved_*").
		ImmutableField("owner_id", FromActor(), Required()).
		ImmutableField("archived_at", WhenStatus("archived")).
		DefaultStatus("draft").
		Transition("draft", "review").
		Transition("review", "draft").
		Transition("review", "approved", Stamp("approved_at")).
		Transition("approved", "archived", Stamp("archived_at")).
		Transition("draft", "archived", Stamp("archived_at"))

	r.DefineRecordType("media").
		AllowWhere(RolePublic, "status", "active", OpRead).
		Allow(RoleMarketing, OpCreate, OpRead, OpUpdate).
		Allow(RoleAdmin, OpCreate, OpRead, OpUpdate, OpDelete).
		Allow(RoleManager, OpCreate, OpRead, OpUpdate, OpDelete).
		Allow(RoleReadOnly, OpRead).
		ImmutableField("owner_id", FromActor(), Required()).
		ImmutableField("storage_key").
		DefaultStatus("active").
		Transition("active", "archived", Stamp("archived_at"))

	r.DefineRecordType("course_run").
		Allow(RoleAdmin, OpCreate, OpRead, OpUpdate, OpDelete).
		Allow(RoleManager, OpCreate, OpRead, OpUpdate, OpDelete).
		Allow(RoleMarketing, OpRead).
		Allow(RoleAdvisor, OpRead).
		Allow(RoleReadOnly, OpRead).
		ImmutableField("owner_id", FromActor(), Required()).
		ImmutableField("course_id").
		DefaultStatus("draft").
		Transition("draft", "scheduled", Stamp("scheduled_at"), RequireField("start_date"), RequireRange("max_capacity", 1, 10000)).
		Transition("draft", "cancelled", Stamp("cancelled_at")).
		Transition("scheduled", "running", Stamp("started_at")).
		Transition("scheduled", "cancelled", Stamp("cancelled_at")).
		Transition("running", "finished", Stamp("finished_at"))

	r.DefineRecordType("staff_account").
		Allow(RoleAdmin, OpCreate, OpRead, OpUpdate, OpDelete).
		Allow(RoleManager, OpRead).
		ImmutableField("created_by", FromActor(), Required()).
		DeleteGuard(LastAdminGuard(cfg.adminCounter)).
		UpdateGuard(LastAdminDemotionGuard(cfg.adminCounter))

	return r
}

// LastAdminGuard denies an actor deleting their own admin account when doing
// so would leave zero admins. The admin population is checked by the injected
// invariant query, never by a hardcoded count.
func LastAdminGuard(countAdmins func(ctx context.Context) (int, error)) GuardFunc {
	return func(ctx context.Context, actor Actor, rec *RecordSnapshot, _ FieldSet) error {
		if rec == nil || actor.ID != rec.ID {
			return nil
		}
		if role, _ := rec.Get("role"); !valuesEqual(role, string(RoleAdmin)) {
			return nil
		}
		if countAdmins == nil {
			return NewError(ErrPermissionDenied, "").WithRecord(rec.Type, rec.ID).WithActor(actor.ID)
		}
		n, err := countAdmins(ctx)
		if err != nil {
			return err
		}
		if n <= 1 {
			return NewError(ErrPermissionDenied, "").WithRecord(rec.Type, rec.ID).WithActor(actor.ID)
		}
		return nil
	}
}

// LastAdminDemotionGuard is the update-side counterpart of LastAdminGuard: an
// actor may not demote their own account to a non-admin role if it is the
// last admin account.
func LastAdminDemotionGuard(countAdmins func(ctx context.Context) (int, error)) GuardFunc {
	return func(ctx context.Context, actor Actor, rec *RecordSnapshot, incoming FieldSet) error {
		if rec == nil || actor.ID != rec.ID {
			return nil
		}
		if role, _ := rec.Get("role"); !valuesEqual(role, string(RoleAdmin)) {
			return nil
		}
		newRole, changing := incoming["role"]
		if !changing || valuesEqual(newRole, string(RoleAdmin)) {
			return nil
		}
		if countAdmins == nil {
			return NewError(ErrPermissionDenied, "").WithRecord(rec.Type, rec.ID).WithActor(actor.ID)
		}
		n, err := countAdmins(ctx)
		if err != nil {
			return err
		}
		if n <= 1 {
			return NewError(ErrPermissionDenied, "").WithRecord(rec.Type, rec.ID).WithActor(actor.ID)
		}
		return nil
	}
}

package governkit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestRegistryNewRegistryBasic validates NewRegistry basics.
func TestRegistryNewRegistryBasic(t *testing.T) {
	r := NewRegistry()
	assert.NotNil(t, r)
	assert.Empty(t, r.RecordTypes())
}

// TestRegistryDefineRecordTypeBasic validates DefineRecordType basics.
func TestRegistryDefineRecordTypeBasic(t *testing.T) {
	r := NewRegistry()

	def := r.DefineRecordType("lead")
	assert.NotNil(t, def)
	assert.Equal(t, "lead", def.Name())

	retrieved := r.GetRecordType("lead")
	assert.NotNil(t, retrieved)
	assert.Equal(t, "lead", retrieved.Name())

	assert.Nil(t, r.GetRecordType("unknown"))
}

// TestRegistryRecordTypesSorted validates RecordTypes ordering.
func TestRegistryRecordTypesSorted(t *testing.T) {
	r := NewRegistry()
	r.DefineRecordType("media")
	r.DefineRecordType("enrollment")
	r.DefineRecordType("faq")

	assert.Equal(t, []string{"enrollment", "faq", "media"}, r.RecordTypes())
}

// TestRegistryValidateRecordTypeBasic validates ValidateRecordType behavior.
func TestRegistryValidateRecordTypeBasic(t *testing.T) {
	r := NewRegistry()
	r.DefineRecordType("faq")

	assert.NoError(t, r.ValidateRecordType("faq"))

	err := r.ValidateRecordType("invoice")
	assert.Error(t, err)
	assert.True(t, IsInvalidRecordType(err))
}

// TestRegistryValidateStatusBasic validates ValidateStatus behavior.
func TestRegistryValidateStatusBasic(t *testing.T) {
	r := NewRegistry()
	r.DefineRecordType("faq").
		DefaultStatus("draft").
		Transition("draft", "published").
		Transition("published", "archived")

	assert.NoError(t, r.ValidateStatus("faq", "draft"))
	assert.NoError(t, r.ValidateStatus("faq", "published"))
	assert.NoError(t, r.ValidateStatus("faq", "archived"))

	err := r.ValidateStatus("faq", "live")
	assert.Error(t, err)
	assert.True(t, IsInvalidStatus(err))

	err = r.ValidateStatus("invoice", "draft")
	assert.Error(t, err)
	assert.True(t, IsInvalidRecordType(err))

	// No workflow at all
	r.DefineRecordType("media")
	err = r.ValidateStatus("media", "active")
	assert.Error(t, err)
	assert.True(t, IsInvalidStatus(err))
}

// TestRegistryFluentAPIBasic validates fluent API chaining across record types.
func TestRegistryFluentAPIBasic(t *testing.T) {
	r := NewRegistry()

	r.DefineRecordType("lead").
		Allow(RolePublic, OpCreate).
		AllowOwned(RoleMarketing, "owner_id", OpRead, OpUpdate).
		DefineRecordType("faq").
		Allow(RoleAdmin, OpCreate, OpRead, OpUpdate, OpDelete).
		DefaultStatus("draft").
		Transition("draft", "published")

	assert.NotNil(t, r.GetRecordType("lead"))
	assert.NotNil(t, r.GetRecordType("faq"))
	assert.Equal(t, "draft", r.GetRecordType("faq").Workflow().DefaultStatus())
}

// TestRegistryRolesAccessor validates the Roles accessor.
func TestRegistryRolesAccessor(t *testing.T) {
	r := NewRegistry()
	def := r.DefineRecordType("lead").
		Allow(RolePublic, OpCreate).
		Allow(RoleAdmin, OpRead).
		AllowOwned(RoleMarketing, "owner_id", OpRead)

	roles := def.Roles()
	assert.Equal(t, []Role{RoleAdmin, RoleMarketing, RolePublic}, roles)
}

// TestRegistryCapacityConfiguration validates capacity builder and accessors.
func TestRegistryCapacityConfiguration(t *testing.T) {
	r := NewRegistry()
	def := r.DefineRecordType("enrollment").
		DefaultStatus("pending").
		Transition("pending", "confirmed", CommitSeat()).
		Capacity("course_run_id", "waitlisted")

	assert.True(t, def.CapacityManaged())
	assert.Equal(t, "course_run_id", def.CapacityField())
	assert.Equal(t, "waitlisted", def.WaitlistStatus())

	plain := r.DefineRecordType("faq")
	assert.False(t, plain.CapacityManaged())
}

// TestRegistryImmutableRulesAccessor validates immutable rule registration.
func TestRegistryImmutableRulesAccessor(t *testing.T) {
	r := NewRegistry()
	def := r.DefineRecordType("ad_template").
		ImmutableField("owner_id", FromActor(), Required()).
		ImmutableField("archived_at", WhenStatus("archived"))

	rules := def.ImmutableRules()
	assert.Len(t, rules, 2)
	assert.Equal(t, "owner_id", rules[0].Field)
	assert.False(t, rules[0].Triggered())
	assert.Equal(t, "archived_at", rules[1].Field)
	assert.True(t, rules[1].Triggered())

	assert.True(t, def.hasImmutableRule("owner_id"))
	assert.False(t, def.hasImmutableRule("title"))
}

// TestRegistryDuplicatePolicy validates the duplicate-create configuration.
func TestRegistryDuplicatePolicy(t *testing.T) {
	r := NewRegistry()

	def := r.DefineRecordType("lead")
	mode, window := def.DuplicatePolicy()
	assert.Equal(t, DuplicateReject, mode)
	assert.Zero(t, window)

	def.OnDuplicateCreate(DuplicateUpdate, 24*time.Hour)
	mode, window = def.DuplicatePolicy()
	assert.Equal(t, DuplicateUpdate, mode)
	assert.Equal(t, 24*time.Hour, window)
}

// TestRegistryWorkflowAccessors validates workflow graph accessors.
func TestRegistryWorkflowAccessors(t *testing.T) {
	r := NewRegistry()
	def := r.DefineRecordType("enrollment").
		DefaultStatus("pending").
		Transition("pending", "confirmed").
		Transition("pending", "cancelled").
		Transition("confirmed", "completed")

	w := def.Workflow()
	assert.NotNil(t, w)
	assert.Equal(t, "pending", w.DefaultStatus())
	assert.True(t, w.HasStatus("completed"))
	assert.False(t, w.HasStatus("withdrawn"))
	assert.Equal(t, []string{"cancelled", "confirmed"}, w.LegalTargets("pending"))
	assert.True(t, w.Terminal("completed"))
	assert.False(t, w.Terminal("pending"))
	assert.Equal(t, []string{"cancelled", "completed", "confirmed", "pending"}, w.Statuses())
}

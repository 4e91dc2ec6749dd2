// Package governkit provides a record governance engine: role-aware policy
// evaluation, field-level immutability, status workflow validation, and
// capacity allocation with ordered waitlists, composed behind a single
// authorization facade.
//
// GovernKit is record-type-agnostic. Applications declare their record types
// once at startup and every mutation then flows through the same evaluation
// pipeline, so a request can never skip a rule by reaching a different code
// path.
//
// # Core Concepts
//
// Record type: a named kind of governed data ("enrollment", "lead", "faq").
// Each record type carries its own policy table, immutability rules, workflow
// graph, and optional capacity binding.
//
// Policy: a (role, operation) pair resolving to deny, allow, or allow with a
// row filter. Unknown pairs deny. Filters express "only records owned by or
// assigned to the actor" and compile into query predicates for reads.
//
// Immutable field: a field that accepts its value once and refuses changes
// afterwards. Variants cover actor-stamped fields (owner_id from the
// authenticated actor), required-at-creation fields (consent flags), and
// trigger-locked fields that only freeze when a status is reached.
//
// Workflow: a directed graph of status transitions. Absent edges are invalid,
// edges may carry timestamp stamps, numeric-range preconditions, and capacity
// side effects (commit or release a seat).
//
// Capacity ledger: a committed/maximum counter per finite resource with an
// ordered waitlist. Admissions are atomic and idempotent per claim ID;
// releases promote the waitlist head and keep positions contiguous.
//
// # Key Features
//
//   - Default deny: unconfigured role/operation pairs never pass
//   - Field-level control: per-role denied field patterns, strip or reject
//   - Write-once fields: resolved against the stored record, not the request
//   - Graph-checked workflows: no status change outside declared edges
//   - Atomic admissions: the last seat is never double-committed
//   - Deterministic waitlists: positions stay a contiguous 1..N sequence
//   - Generic denials: unauthorized actors learn nothing from the error
//   - DBKit integration: persistent ledger and decision log on your database
//
// # Basic Usage
//
//	// 1. Declare record types (at application startup)
//	registry := governkit.NewRegistry()
//
//	registry.DefineRecordType("lead").
//	    Allow(governkit.RolePublic, governkit.OpCreate).
//	    AllowOwned(governkit.RoleMarketing, "owner_id", governkit.OpRead, governkit.OpUpdate).
//	    ImmutableField("consent_given", governkit.Required()).
//	    DefaultStatus("new").
//	    Transition("new", "contacted", governkit.Stamp("contacted_at"))
//
//	// 2. Create the engine
//	engine := governkit.NewEngine(registry)
//
//	// 3. Run every mutation through the facade
//	mutation, err := engine.AuthorizeAndApply(ctx, actor, governkit.OpCreate, "lead", fields, nil)
//	if err != nil {
//	    // governkit.IsPermissionDenied(err), governkit.IsInvalidTransition(err), ...
//	}
//	// mutation.Fields is the vetted field set to persist
//
// # Capacity and Waitlists
//
//	registry.DefineRecordType("enrollment").
//	    DefaultStatus("pending").
//	    Transition("pending", "confirmed", governkit.CommitSeat()).
//	    Transition("confirmed", "cancelled", governkit.ReleaseSeat()).
//	    Capacity("course_run_id", "waitlisted")
//
//	engine.ConfigureCapacity(ctx, "run-2026-09", 30)
//
// When a confirm transition finds the resource full, the mutation lands on
// the waitlist status instead of failing; a later release promotes the head
// of the waitlist.
//
// # Persistence
//
// The in-process MemoryLedger needs no setup. For durable ledgers and a
// decision audit log, wire a Service on DBKit:
//
//	db, _ := dbkit.New(dbkit.Config{URL: "postgres://..."})
//	service := governkit.NewService(registry, db)
//	dbkit.Migrate(ctx, governkit.NewMigrationService(service).Migrations())
//	engine := governkit.NewEngine(registry, governkit.WithLedger(service))
//
// # Decision Log
//
// Every facade decision can be recorded with:
//   - Actor and role
//   - Operation, record type and record ID
//   - Outcome (allowed, denied, waitlisted) and denial reason
//   - Status movement and reverted fields
//   - Request metadata (IP, user agent, request ID)
//
// Governed field values are never written to the log.
package governkit

// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Services only know about business rules. They never see HTTP types or SQL,
// and they return *apperror.AppError values that handlers map to status
// codes.
//
// DEPENDENCY INJECTION:
// AccountService takes repository interfaces, NOT a *sqlite.DB or a
// *postgres.Store. Tests pass in-memory fakes (see account_test.go); server.New
// picks the real store from configuration.
package service

// EventRecorder receives business events for metrics. A nil recorder is
// allowed and records nothing.
type EventRecorder interface {
	RecordAccountEvent(event string)
}

// Account events passed to EventRecorder.
const (
	EventAccountCreated = "account_created"
	EventCreateFailed   = "create_failed"
	EventCompensated    = "compensated"
	EventOrphaned       = "orphaned"
	EventReconciled     = "reconciled"
	EventLoginSucceeded = "login_succeeded"
	EventLoginFailed    = "login_failed"
)

type nopRecorder struct{}

func (nopRecorder) RecordAccountEvent(string) {}

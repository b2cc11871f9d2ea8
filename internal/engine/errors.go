package engine

import "errors"

// Sentinel errors shared by every engine package. Callers match with
// errors.Is; services wrap them with fmt.Errorf("...: %w", ...) to add
// the offending detail.
var (
	// ErrNotFound is returned when a subject, queue item, debate or user
	// does not exist.
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidState is returned for operations attempted against an
	// incompatible state, including missing-field validation failures.
	ErrInvalidState = errors.New("invalid state")
	// ErrUnauthorized is returned when the actor lacks the required
	// category or is not the relevant assignee/party.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrDuplicate is returned for repeat veto or merge submissions.
	ErrDuplicate = errors.New("duplicate request")
	// ErrRateLimited is surfaced unchanged from collaborators that enforce
	// rates or quotas; the engine itself never throttles.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyClaimed is the INVALID_STATE variant a losing concurrent
	// claim observes: another moderator holds the assignment.
	ErrAlreadyClaimed = errors.New("queue item already claimed")
	// ErrAlreadyResolved is returned when claiming or releasing an item
	// that reached a terminal status.
	ErrAlreadyResolved = errors.New("queue item already resolved")
)

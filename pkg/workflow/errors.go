package workflow

import "errors"

// errors returned by orchestrator actions. all of them leave the workflow state unchanged.
var (
	ErrInvalidState        = errors.New("action not allowed in current state")
	ErrInvalidRisk         = errors.New("minimum risk score must be between 0 and 10")
	ErrNothingSelected     = errors.New("no items selected for cleaning")
	ErrUnknownItem         = errors.New("unknown item")
	ErrNotEscalated        = errors.New("item was removed automatically")
	ErrAlreadyResolved     = errors.New("item already removed")
	ErrNothingToVerify     = errors.New("no unresolved items to verify")
	ErrVerificationPending = errors.New("verification already in progress")
	ErrNotConfirmed        = errors.New("force removal not confirmed")
	ErrReportGated         = errors.New("unresolved items remain")
)

package migration

import (
	"fmt"

	"github.com/tphakala/invsync/internal/errors"
)

// Phase is a state of a per-kind pass.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePulling
	PhaseTransforming
	PhaseDeleting
	PhaseLoading
	PhaseCommitting
	PhaseDone
	PhaseFailed
)

var phaseNames = [...]string{
	PhaseIdle:         "idle",
	PhasePulling:      "pulling",
	PhaseTransforming: "transforming",
	PhaseDeleting:     "deleting",
	PhaseLoading:      "loading",
	PhaseCommitting:   "committing",
	PhaseDone:         "done",
	PhaseFailed:       "failed",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

// Terminal reports whether no further transitions follow p.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseFailed
}

// Engine errors.
var (
	ErrAccumulatorPoisoned = errors.NewStd("batch accumulator poisoned by failed commit")
	ErrQuiesceTimeout      = errors.NewStd("timed out waiting for batch commit")
	ErrMalformedEntity     = errors.NewStd("malformed source entity")
	ErrUnknownKind         = errors.NewStd("unknown kind")
	ErrPassInProgress      = errors.NewStd("pass already running for kind")
)

// PhaseError reports the kind and phase in which a pass failed.
type PhaseError struct {
	Kind  string
	Phase Phase
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("sync %s failed during %s: %v", e.Kind, e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

// MalformedEntityError wraps err as ErrMalformedEntity for the entity id.
func MalformedEntityError(id, field string, err error) error {
	return errors.New(fmt.Errorf("%w: %s field %q: %w", ErrMalformedEntity, id, field, err)).
		Component("transform").
		Category(errors.CategoryTransform).
		Context("entity_id", id).
		Context("field", field).
		Build()
}

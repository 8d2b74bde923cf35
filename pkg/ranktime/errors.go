package ranktime

import "fmt"

// AlreadyNormalizedError reports a second NormalizeTo call on rank data
// whose timestamps were already rebased. Re-applying the shift would
// silently corrupt every timestamp, so the call is rejected instead.
type AlreadyNormalizedError struct {
	Rank int
}

// Error implements the error interface.
func (e *AlreadyNormalizedError) Error() string {
	return fmt.Sprintf("rank %d data is already normalized", e.Rank)
}

// NormalizeOrderError reports a reference time later than this rank's
// own initialization, which would produce negative timeline offsets.
type NormalizeOrderError struct {
	T0Ns            int64
	InitializedAtNs int64
}

// Error implements the error interface.
func (e *NormalizeOrderError) Error() string {
	return fmt.Sprintf("normalize reference t0=%d is later than rank initialization %d",
		e.T0Ns, e.InitializedAtNs)
}

// StateError reports an operation invoked in the wrong registry state.
type StateError struct {
	Op    string
	State State
}

// Error implements the error interface.
func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s registry in state %s", e.Op, e.State)
}

package qregsim

import "errors"

var (
	// ErrUnknownQubit is returned when a handle does not resolve through the
	// session's qubit map.
	ErrUnknownQubit = errors.New("qubit handle not in device map")

	// ErrUnknownObservable is returned when an observable index is not in the
	// device cache.
	ErrUnknownObservable = errors.New("observable not in device cache")

	// ErrUnknownGate is returned for names outside the fixed gate vocabulary.
	ErrUnknownGate = errors.New("unknown gate name")

	// ErrArity is returned when wire, control, or parameter counts do not
	// match what an operation requires.
	ErrArity = errors.New("operation arity mismatch")

	// ErrBasisState is returned for malformed basis-state initialization input.
	ErrBasisState = errors.New("invalid basis state")

	// ErrHamiltonian is returned by HamiltonianObservable, which the device
	// does not support; the accompanying index is the -1 sentinel.
	ErrHamiltonian = errors.New("hamiltonian observables unsupported")

	// ErrNoisyShots is returned when multi-shot sampling is requested while
	// the noise parameter is positive.
	ErrNoisyShots = errors.New("shots > 1 incompatible with nonzero noise")

	// ErrPostselect is returned when a forced measurement outcome has zero
	// probability.
	ErrPostselect = errors.New("postselected outcome has zero probability")

	// ErrAllocGuard is returned when dense storage would exceed available
	// memory or the configured cap.
	ErrAllocGuard = errors.New("allocation exceeds memory guard")

	// ErrCapacity is returned when a register would exceed the 64-qubit
	// index-packing limit.
	ErrCapacity = errors.New("register exceeds 64-qubit capacity")

	// ErrConfig is returned for unparseable or unknown device options.
	ErrConfig = errors.New("invalid device option")
)

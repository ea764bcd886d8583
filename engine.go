package qregsim

import (
	"fmt"
	"math/rand/v2"

	"github.com/charmbracelet/log"
	"github.com/shirou/gopsutil/v3/mem"
)

// MaxQubits is the register capacity: quantum indices, masks, and histogram
// keys pack into uint64.
const MaxQubits = 64

// Engine is the uniform operation surface every representation implements.
// Qubit indices are register positions, already validated by the session
// layer. Control permutations follow the control list: bit i of perm is the
// value control i must read for the operation to apply. Uncontrolled calls
// are the degenerate case of an empty control list.
//
// Lazy representations may materialize state on reads, so reads as well as
// mutations can fail (allocation guard, capacity).
type Engine interface {
	QubitCount() int
	MaxQPower() uint64

	// Allocate appends count |0> qubits at the high end of the register.
	Allocate(count int) error
	// Dispose removes a measured qubit; indices above it shift down.
	Dispose(q int) error
	// Compose absorbs another engine of the same representation at the high
	// end of the register.
	Compose(o Engine) error

	Mtrx(m Mtrx2, q int) error
	Phase(topLeft, bottomRight Complex, q int) error
	UCMtrx(controls []int, m Mtrx2, q int, perm uint64) error
	UCPhase(controls []int, topLeft, bottomRight Complex, q int, perm uint64) error
	XMask(mask uint64) error
	YMask(mask uint64) error
	ZMask(mask uint64) error
	Swap(a, b int) error
	CSwap(controls []int, a, b int, perm uint64) error

	Prob(q int) (float64, error)
	ProbAll() ([]float64, error)
	// ProbMask returns the marginal distribution over qs; bit j of an outcome
	// index is the value of qs[j].
	ProbMask(qs []int) ([]float64, error)
	Amplitudes() ([]Complex, error)

	M(q int) (bool, error)
	ForceM(q int, result bool) (bool, error)
	MAll() (uint64, error)
	// MultiShot samples the frozen distribution without collapse; bit j of a
	// histogram key is set when the sampled index overlaps qPowers[j].
	MultiShot(qPowers []uint64, shots int) (map[uint64]int, error)

	ExpectationPauli(qs []int, paulis []Pauli) (float64, error)
	VariancePauli(qs []int, paulis []Pauli) (float64, error)
}

// engineFactory builds a representation stack at a given width. Wrapping
// layers capture the factory of the layer beneath them.
type engineFactory func(qubits int) (Engine, error)

// ctrlBits flattens a control list and its permutation into full-index masks:
// an index i satisfies the controls when i&mask == want.
func ctrlBits(controls []int, perm uint64) (mask, want uint64) {
	for i, c := range controls {
		p := pow2(c)
		mask |= p
		if perm&pow2(i) != 0 {
			want |= p
		}
	}
	return mask, want
}

// allocGuard refuses dense materialization that cannot fit in memory. An
// unreadable memory stat skips the check rather than failing the allocation.
func allocGuard(qubits int, maxMB int) error {
	if qubits > MaxQubits {
		return fmt.Errorf("%w: %d qubits", ErrCapacity, qubits)
	}
	if qubits >= 60 {
		return fmt.Errorf("%w: %d-qubit dense storage", ErrAllocGuard, qubits)
	}
	need := uint64(16) << qubits
	if maxMB > 0 && need > uint64(maxMB)<<20 {
		return fmt.Errorf("%w: need %d MiB, cap %d MiB", ErrAllocGuard, need>>20, maxMB)
	}
	vm, err := mem.VirtualMemory()
	if err == nil && need > vm.Available {
		return fmt.Errorf("%w: need %d MiB, %d MiB available", ErrAllocGuard, need>>20, vm.Available>>20)
	}
	return nil
}

// newEngineFactory arranges the representation layers selected by opts,
// outermost to innermost: noise, tensor-network deferral, Schmidt
// decomposition, stabilizer hybrid, then paged or dense storage, or the
// decision-diagram base.
func newEngineFactory(opts Options, rng *rand.Rand, lg *log.Logger) engineFactory {
	fac := func(qubits int) (Engine, error) {
		if opts.QBDD {
			return newBDDEngine(qubits, rng)
		}
		if opts.Paged {
			return newPagedEngine(qubits, opts, rng)
		}
		return newDenseEngine(qubits, opts, rng)
	}
	if opts.HybridStabilizer && !opts.QBDD {
		inner := fac
		fac = func(qubits int) (Engine, error) {
			return newHybridEngine(qubits, inner, opts, rng, lg)
		}
	}
	if opts.SchmidtDecompose {
		inner := fac
		fac = func(qubits int) (Engine, error) {
			return newUnitEngine(qubits, inner, opts.SchmidtParallel, rng)
		}
	}
	if opts.TensorNetwork {
		inner := fac
		fac = func(qubits int) (Engine, error) {
			return newTensorEngine(qubits, inner, lg)
		}
	}
	if opts.Noise > 0 {
		inner := fac
		fac = func(qubits int) (Engine, error) {
			eng, err := inner(qubits)
			if err != nil {
				return nil, err
			}
			return newNoiseEngine(eng, opts.Noise, rng), nil
		}
	}
	return fac
}

package qregsim

import (
	"fmt"

	"github.com/charmbracelet/log"
)

// tensorEngine defers the circuit instead of simulating it: gate calls are
// recorded (and fused where adjacent) in a journal, and every read
// materializes a throwaway inner engine by replay. Measurement outcomes are
// recorded as forced entries, so the journal stays the single source of
// truth across replays. Compose forces a permanent switch to the
// materialized inner engine.
type tensorEngine struct {
	j      *journal
	inner  engineFactory
	base   int
	qubits int
	mat    Engine
	lg     *log.Logger
}

func newTensorEngine(qubits int, inner engineFactory, lg *log.Logger) (*tensorEngine, error) {
	if qubits > MaxQubits {
		return nil, fmt.Errorf("%w: %d qubits", ErrCapacity, qubits)
	}
	return &tensorEngine{
		j:      newJournal(true),
		inner:  inner,
		base:   qubits,
		qubits: qubits,
		lg:     lg,
	}, nil
}

func (t *tensorEngine) QubitCount() int   { return t.qubits }
func (t *tensorEngine) MaxQPower() uint64 { return uint64(1) << t.qubits }

func (t *tensorEngine) materialize() (Engine, error) {
	if t.mat != nil {
		return t.mat, nil
	}
	eng, err := t.inner(t.base)
	if err != nil {
		return nil, err
	}
	if err := t.j.replay(eng); err != nil {
		return nil, err
	}
	return eng, nil
}

func (t *tensorEngine) Allocate(count int) error {
	if t.mat != nil {
		if err := t.mat.Allocate(count); err != nil {
			return err
		}
		t.qubits += count
		return nil
	}
	if t.qubits+count > MaxQubits {
		return fmt.Errorf("%w: %d qubits", ErrCapacity, t.qubits+count)
	}
	t.j.recordAllocate(count)
	t.qubits += count
	return nil
}

func (t *tensorEngine) Dispose(q int) error {
	if t.mat != nil {
		if err := t.mat.Dispose(q); err != nil {
			return err
		}
		t.qubits--
		return nil
	}
	t.j.recordDispose(q)
	t.qubits--
	return nil
}

func (t *tensorEngine) Compose(o Engine) error {
	other, ok := o.(*tensorEngine)
	if !ok {
		return fmt.Errorf("compose across representations: %T", o)
	}
	mine, err := t.materialize()
	if err != nil {
		return err
	}
	theirs, err := other.materialize()
	if err != nil {
		return err
	}
	if err := mine.Compose(theirs); err != nil {
		return err
	}
	t.lg.Debug("deferred circuit materialized for compose", "qubits", t.qubits+other.qubits)
	t.mat = mine
	t.qubits += other.qubits
	return nil
}

func (t *tensorEngine) Mtrx(m Mtrx2, q int) error {
	if t.mat != nil {
		return t.mat.Mtrx(m, q)
	}
	t.j.recordMtrx(m, q)
	return nil
}

func (t *tensorEngine) Phase(tl, br Complex, q int) error {
	if t.mat != nil {
		return t.mat.Phase(tl, br, q)
	}
	t.j.recordPhase(tl, br, q)
	return nil
}

func (t *tensorEngine) UCMtrx(controls []int, m Mtrx2, q int, perm uint64) error {
	if t.mat != nil {
		return t.mat.UCMtrx(controls, m, q, perm)
	}
	t.j.recordUCMtrx(controls, m, q, perm)
	return nil
}

func (t *tensorEngine) UCPhase(controls []int, tl, br Complex, q int, perm uint64) error {
	if t.mat != nil {
		return t.mat.UCPhase(controls, tl, br, q, perm)
	}
	t.j.recordUCPhase(controls, tl, br, q, perm)
	return nil
}

func (t *tensorEngine) XMask(mask uint64) error {
	if t.mat != nil {
		return t.mat.XMask(mask)
	}
	t.j.recordMask(opXMask, mask)
	return nil
}

func (t *tensorEngine) YMask(mask uint64) error {
	if t.mat != nil {
		return t.mat.YMask(mask)
	}
	t.j.recordMask(opYMask, mask)
	return nil
}

func (t *tensorEngine) ZMask(mask uint64) error {
	if t.mat != nil {
		return t.mat.ZMask(mask)
	}
	t.j.recordMask(opZMask, mask)
	return nil
}

func (t *tensorEngine) Swap(a, b int) error {
	if t.mat != nil {
		return t.mat.Swap(a, b)
	}
	t.j.recordSwap(a, b)
	return nil
}

func (t *tensorEngine) CSwap(controls []int, a, b int, perm uint64) error {
	if t.mat != nil {
		return t.mat.CSwap(controls, a, b, perm)
	}
	t.j.recordCSwap(controls, a, b, perm)
	return nil
}

func (t *tensorEngine) Prob(q int) (float64, error) {
	eng, err := t.materialize()
	if err != nil {
		return 0, err
	}
	return eng.Prob(q)
}

func (t *tensorEngine) ProbAll() ([]float64, error) {
	eng, err := t.materialize()
	if err != nil {
		return nil, err
	}
	return eng.ProbAll()
}

func (t *tensorEngine) ProbMask(qs []int) ([]float64, error) {
	eng, err := t.materialize()
	if err != nil {
		return nil, err
	}
	return eng.ProbMask(qs)
}

func (t *tensorEngine) Amplitudes() ([]Complex, error) {
	eng, err := t.materialize()
	if err != nil {
		return nil, err
	}
	return eng.Amplitudes()
}

func (t *tensorEngine) M(q int) (bool, error) {
	eng, err := t.materialize()
	if err != nil {
		return false, err
	}
	out, err := eng.M(q)
	if err != nil {
		return false, err
	}
	if t.mat == nil {
		t.j.recordForceM(q, out)
	}
	return out, nil
}

func (t *tensorEngine) ForceM(q int, result bool) (bool, error) {
	eng, err := t.materialize()
	if err != nil {
		return false, err
	}
	out, err := eng.ForceM(q, result)
	if err != nil {
		return false, err
	}
	if t.mat == nil {
		t.j.recordForceM(q, out)
	}
	return out, nil
}

func (t *tensorEngine) MAll() (uint64, error) {
	eng, err := t.materialize()
	if err != nil {
		return 0, err
	}
	idx, err := eng.MAll()
	if err != nil {
		return 0, err
	}
	if t.mat == nil {
		for q := range t.qubits {
			t.j.recordForceM(q, idx&pow2(q) != 0)
		}
	}
	return idx, nil
}

func (t *tensorEngine) MultiShot(qPowers []uint64, shots int) (map[uint64]int, error) {
	eng, err := t.materialize()
	if err != nil {
		return nil, err
	}
	return eng.MultiShot(qPowers, shots)
}

func (t *tensorEngine) ExpectationPauli(qs []int, paulis []Pauli) (float64, error) {
	eng, err := t.materialize()
	if err != nil {
		return 0, err
	}
	return eng.ExpectationPauli(qs, paulis)
}

func (t *tensorEngine) VariancePauli(qs []int, paulis []Pauli) (float64, error) {
	eng, err := t.materialize()
	if err != nil {
		return 0, err
	}
	return eng.VariancePauli(qs, paulis)
}

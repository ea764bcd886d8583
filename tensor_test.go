package qregsim

import (
	"errors"
	"io"
	"math"
	"math/cmplx"
	"testing"

	"github.com/charmbracelet/log"
)

func testTensor(t *testing.T, qubits int) *tensorEngine {
	t.Helper()
	rng := testRNG()
	inner := func(n int) (Engine, error) { return newDenseEngine(n, DefaultOptions(), rng) }
	te, err := newTensorEngine(qubits, inner, log.New(io.Discard))
	if err != nil {
		t.Fatal(err)
	}
	return te
}

func TestTensorDefers(t *testing.T) {
	te := testTensor(t, 2)
	te.Mtrx(mtrxH, 0)
	te.UCMtrx([]int{0}, mtrxX, 1, 1)
	if te.mat != nil {
		t.Fatal("gates should only be recorded")
	}
	if len(te.j.ops) != 2 {
		t.Fatalf("journal has %d ops", len(te.j.ops))
	}
	probs, err := te.ProbAll()
	if err != nil {
		t.Fatal(err)
	}
	probsClose(t, probs, []float64{0.5, 0, 0, 0.5}, 1e-12)
	if te.mat != nil {
		t.Error("a read materialized permanently")
	}
}

func TestTensorFusion(t *testing.T) {
	te := testTensor(t, 1)
	te.Mtrx(mtrxH, 0)
	te.Mtrx(mtrxH, 0)
	if len(te.j.ops) != 1 {
		t.Errorf("adjacent H pair recorded as %d ops, want 1 fused", len(te.j.ops))
	}
	probs, _ := te.ProbAll()
	probsClose(t, probs, []float64{1, 0}, 1e-12)
}

func TestTensorMeasurementTrajectory(t *testing.T) {
	te := testTensor(t, 2)
	te.Mtrx(mtrxH, 0)
	te.UCMtrx([]int{0}, mtrxX, 1, 1)
	m0, err := te.M(0)
	if err != nil {
		t.Fatal(err)
	}
	if te.mat != nil {
		t.Fatal("measurement materialized permanently")
	}
	// every later replay carries the recorded outcome
	m1, _ := te.M(1)
	if m1 != m0 {
		t.Errorf("replayed trajectory decorrelated: %t vs %t", m0, m1)
	}
	want := []float64{1, 0, 0, 0}
	if m0 {
		want = []float64{0, 0, 0, 1}
	}
	probs, _ := te.ProbAll()
	probsClose(t, probs, want, 1e-12)
}

func TestTensorCompose(t *testing.T) {
	a := testTensor(t, 1)
	a.XMask(1)
	b := testTensor(t, 1)
	b.Mtrx(mtrxH, 0)

	if err := a.Compose(b); err != nil {
		t.Fatal(err)
	}
	if a.mat == nil {
		t.Fatal("compose should pin the materialized engine")
	}
	if a.QubitCount() != 2 {
		t.Fatalf("width %d after compose", a.QubitCount())
	}
	probs, _ := a.ProbAll()
	probsClose(t, probs, []float64{0, 0.5, 0, 0.5}, 1e-12)

	// later gates act on the pinned engine directly
	a.XMask(1)
	probs, _ = a.ProbAll()
	probsClose(t, probs, []float64{0.5, 0, 0.5, 0}, 1e-12)
}

func TestTensorMAllRecords(t *testing.T) {
	te := testTensor(t, 2)
	te.Mtrx(mtrxH, 0)
	idx, err := te.MAll()
	if err != nil {
		t.Fatal(err)
	}
	if idx > 1 {
		t.Fatalf("MAll gave %d for a single superposed qubit", idx)
	}
	if te.mat != nil {
		t.Error("MAll materialized permanently")
	}
	if len(te.j.ops) != 3 {
		t.Errorf("journal has %d ops, want gate plus one outcome per qubit", len(te.j.ops))
	}
	probs, _ := te.ProbAll()
	for i, p := range probs {
		want := 0.0
		if uint64(i) == idx {
			want = 1
		}
		if math.Abs(p-want) > 1e-12 {
			t.Errorf("prob[%d] = %g after MAll -> %d", i, p, idx)
		}
	}
}

func TestTensorReplayExact(t *testing.T) {
	te := testTensor(t, 2)
	d, _ := newDenseEngine(2, DefaultOptions(), testRNG())
	for _, eng := range []Engine{te, d} {
		eng.Mtrx(mtrxH, 0)
		eng.UCMtrx([]int{0}, mtrxX, 1, 1)
		eng.Phase(1, phaseT, 1)
		eng.Swap(0, 1)
	}
	ta, _ := te.Amplitudes()
	da, _ := d.Amplitudes()
	for i := range ta {
		if cmplx.Abs(ta[i]-da[i]) > 1e-12 {
			t.Errorf("amp[%d] = %v, dense %v", i, ta[i], da[i])
		}
	}
}

func TestTensorAllocateDispose(t *testing.T) {
	te := testTensor(t, 1)
	te.XMask(1)
	if err := te.Allocate(1); err != nil {
		t.Fatal(err)
	}
	if te.QubitCount() != 2 {
		t.Fatalf("width %d after allocate", te.QubitCount())
	}
	if err := te.Dispose(0); err != nil {
		t.Fatal(err)
	}
	if te.QubitCount() != 1 {
		t.Fatalf("width %d after dispose", te.QubitCount())
	}
	probs, _ := te.ProbAll()
	probsClose(t, probs, []float64{1, 0}, 1e-12)
}

func TestTensorCapacity(t *testing.T) {
	rng := testRNG()
	inner := func(n int) (Engine, error) { return newDenseEngine(n, DefaultOptions(), rng) }
	if _, err := newTensorEngine(MaxQubits+1, inner, log.New(io.Discard)); !errors.Is(err, ErrCapacity) {
		t.Errorf("oversized register gave %v", err)
	}
	te, err := newTensorEngine(MaxQubits, inner, log.New(io.Discard))
	if err != nil {
		t.Fatal(err)
	}
	if err := te.Allocate(1); !errors.Is(err, ErrCapacity) {
		t.Errorf("allocating past the cap gave %v", err)
	}
}

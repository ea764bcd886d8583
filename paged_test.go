package qregsim

import (
	"errors"
	"math"
	"math/cmplx"
	"testing"
)

func TestPagedStructure(t *testing.T) {
	p, err := newPagedEngine(13, DefaultOptions(), testRNG())
	if err != nil {
		t.Fatal(err)
	}
	if p.pb != pageQubits || len(p.pages) != 2 {
		t.Fatalf("13 qubits gave pb %d pages %d", p.pb, len(p.pages))
	}
	if p.MaxQPower() != 1<<13 {
		t.Errorf("power %d", p.MaxQPower())
	}

	p, _ = newPagedEngine(3, DefaultOptions(), testRNG())
	if p.pb != 3 || len(p.pages) != 1 {
		t.Fatalf("3 qubits gave pb %d pages %d", p.pb, len(p.pages))
	}
}

func TestPagedMatchesDense(t *testing.T) {
	p, _ := newPagedEngine(13, DefaultOptions(), testRNG())
	d, _ := newDenseEngine(13, DefaultOptions(), testRNG())
	for _, eng := range []Engine{p, d} {
		eng.Mtrx(mtrxH, 0)
		eng.UCMtrx([]int{0}, mtrxX, 12, 1)
		eng.Phase(1, phaseT, 12)
		eng.Mtrx(mtrxRX(0.5), 12)
		eng.XMask(1<<12 | 1)
		eng.YMask(1 << 12)
		eng.ZMask(1<<12 | 2)
		eng.Swap(0, 12)
		eng.CSwap([]int{0}, 1, 12, 1)
		eng.UCPhase([]int{12}, 1, -1, 3, 1)
	}
	pa, _ := p.Amplitudes()
	da, _ := d.Amplitudes()
	for i := range pa {
		if cmplx.Abs(pa[i]-da[i]) > 1e-9 {
			t.Errorf("amp[%d] = %v, dense %v", i, pa[i], da[i])
			break
		}
	}
}

func TestPagedHighSwap(t *testing.T) {
	p, err := newPagedEngine(14, DefaultOptions(), testRNG())
	if err != nil {
		t.Fatal(err)
	}
	if len(p.pages) != 4 {
		t.Fatalf("14 qubits gave %d pages", len(p.pages))
	}
	p.XMask(1 << 12)
	if err := p.Swap(12, 13); err != nil {
		t.Fatal(err)
	}
	if pr, _ := p.Prob(13); pr != 1 {
		t.Errorf("page-space swap gave Prob(13) = %g", pr)
	}
	amps, _ := p.Amplitudes()
	if cmplx.Abs(amps[1<<13]-1) > 1e-12 {
		t.Errorf("amplitude not at 2^13")
	}
}

func TestPagedAllocate(t *testing.T) {
	p, _ := newPagedEngine(3, DefaultOptions(), testRNG())
	p.XMask(1)
	if err := p.Allocate(1); err != nil {
		t.Fatal(err)
	}
	if p.qubits != 4 || p.pb != 4 || len(p.pages) != 1 {
		t.Fatalf("small allocate gave qubits %d pb %d pages %d", p.qubits, p.pb, len(p.pages))
	}
	probs := allProbs(t, p)
	if math.Abs(probs[1]-1) > 1e-12 {
		t.Errorf("state moved during allocate: %v", probs)
	}

	p, _ = newPagedEngine(12, DefaultOptions(), testRNG())
	if err := p.Allocate(1); err != nil {
		t.Fatal(err)
	}
	if p.pb != pageQubits || len(p.pages) != 2 {
		t.Fatalf("page-doubling allocate gave pb %d pages %d", p.pb, len(p.pages))
	}
}

func TestPagedDispose(t *testing.T) {
	p, _ := newPagedEngine(2, DefaultOptions(), testRNG())
	p.XMask(0b10)
	if err := p.Dispose(1); err != nil {
		t.Fatal(err)
	}
	if p.qubits != 1 {
		t.Fatalf("width %d after dispose", p.qubits)
	}
	probsClose(t, allProbs(t, p), []float64{1, 0}, 1e-12)

	p, _ = newPagedEngine(2, DefaultOptions(), testRNG())
	p.Mtrx(mtrxH, 0)
	p.UCMtrx([]int{0}, mtrxX, 1, 1)
	p.Dispose(0)
	probsClose(t, allProbs(t, p), []float64{0, 1}, 1e-12)
}

func TestPagedCompose(t *testing.T) {
	a, _ := newPagedEngine(2, DefaultOptions(), testRNG())
	a.XMask(1)
	b, _ := newPagedEngine(1, DefaultOptions(), testRNG())
	b.Mtrx(mtrxH, 0)
	if err := a.Compose(b); err != nil {
		t.Fatal(err)
	}
	if a.qubits != 3 {
		t.Fatalf("width %d after compose", a.qubits)
	}
	probsClose(t, allProbs(t, a), []float64{0, 0.5, 0, 0, 0, 0.5, 0, 0}, 1e-12)
}

func TestPagedMAll(t *testing.T) {
	p, _ := newPagedEngine(3, DefaultOptions(), testRNG())
	p.XMask(0b101)
	idx, err := p.MAll()
	if err != nil {
		t.Fatal(err)
	}
	if idx != 0b101 {
		t.Errorf("MAll on a basis state gave %b", idx)
	}
}

func TestPagedMultiShot(t *testing.T) {
	p, _ := newPagedEngine(2, DefaultOptions(), testRNG())
	p.Mtrx(mtrxH, 0)
	p.UCMtrx([]int{0}, mtrxX, 1, 1)
	counts, err := p.MultiShot([]uint64{1, 2}, 70)
	if err != nil {
		t.Fatal(err)
	}
	total := 0
	for key, n := range counts {
		if key != 0 && key != 3 {
			t.Errorf("impossible outcome %b seen %d times", key, n)
		}
		total += n
	}
	if total != 70 {
		t.Errorf("shots conserved: %d", total)
	}
}

func TestPagedMeasure(t *testing.T) {
	p, _ := newPagedEngine(1, DefaultOptions(), testRNG())
	p.Mtrx(mtrxH, 0)
	m, err := p.M(0)
	if err != nil {
		t.Fatal(err)
	}
	pr, _ := p.Prob(0)
	want := 0.0
	if m {
		want = 1
	}
	if math.Abs(pr-want) > 1e-12 {
		t.Errorf("measured %t but Prob = %g", m, pr)
	}

	p, _ = newPagedEngine(1, DefaultOptions(), testRNG())
	if _, err := p.ForceM(0, true); !errors.Is(err, ErrPostselect) {
		t.Errorf("forcing |1> on |0> gave %v", err)
	}
}

func TestPagedExpectation(t *testing.T) {
	p, _ := newPagedEngine(1, DefaultOptions(), testRNG())
	p.Mtrx(mtrxH, 0)
	if e, _ := p.ExpectationPauli([]int{0}, []Pauli{PauliX}); math.Abs(e-1) > 1e-12 {
		t.Errorf("<X> on |+> = %g", e)
	}

	p, _ = newPagedEngine(2, DefaultOptions(), testRNG())
	p.Mtrx(mtrxH, 0)
	p.UCMtrx([]int{0}, mtrxX, 1, 1)
	if e, _ := p.ExpectationPauli([]int{0, 1}, []Pauli{PauliZ, PauliZ}); math.Abs(e-1) > 1e-12 {
		t.Errorf("<ZZ> on Bell = %g", e)
	}
	if v, _ := p.VariancePauli([]int{0, 1}, []Pauli{PauliZ, PauliZ}); math.Abs(v) > 1e-12 {
		t.Errorf("Var(ZZ) on Bell = %g", v)
	}
}

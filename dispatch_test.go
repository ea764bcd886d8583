package qregsim

import (
	"errors"
	"math"
	"math/cmplx"
	"testing"
)

// prepDispatch spreads support over the register so every wire and control
// pattern below acts on nonzero amplitudes.
func prepDispatch(t *testing.T) *denseEngine {
	t.Helper()
	d, err := newDenseEngine(3, DefaultOptions(), testRNG())
	if err != nil {
		t.Fatal(err)
	}
	d.Mtrx(mtrxH, 0)
	d.Mtrx(mtrxRX(0.4), 1)
	d.UCMtrx([]int{0}, mtrxX, 2, 1)
	d.Phase(1, phaseT, 1)
	return d
}

func TestApplyNamedRoundTrip(t *testing.T) {
	cases := []struct {
		name   string
		params []float64
		wires  []int
	}{
		{"Identity", nil, []int{0}},
		{"PauliX", nil, []int{0}},
		{"PauliX", nil, []int{0, 2}},
		{"PauliY", nil, []int{1}},
		{"PauliZ", nil, []int{0, 1}},
		{"Hadamard", nil, []int{2}},
		{"S", nil, []int{0}},
		{"T", nil, []int{1}},
		{"SX", nil, []int{2}},
		{"RX", []float64{0.7}, []int{0}},
		{"RY", []float64{1.1}, []int{1}},
		{"RZ", []float64{0.5}, []int{2}},
		{"MultiRZ", []float64{0.8}, []int{0, 2}},
		{"PhaseShift", []float64{0.9}, []int{1}},
		{"Rot", []float64{0.2, 0.5, 1.3}, []int{0}},
		{"U3", []float64{0.4, 0.8, -0.3}, []int{1}},
		{"CNOT", nil, []int{0, 1}},
		{"CY", nil, []int{1, 2}},
		{"CZ", nil, []int{0, 2}},
		{"CRX", []float64{0.6}, []int{0, 1}},
		{"CRY", []float64{0.3}, []int{1, 0}},
		{"CRZ", []float64{1.2}, []int{2, 1}},
		{"CRot", []float64{0.1, 0.7, 0.4}, []int{0, 2}},
		{"CPhase", []float64{0.5}, []int{1, 2}},
		{"ControlledPhaseShift", []float64{0.33}, []int{2, 0}},
		{"Toffoli", nil, []int{0, 1, 2}},
		{"MultiControlledX", nil, []int{0, 2, 1}},
		{"CSWAP", nil, []int{0, 1, 2}},
		{"SWAP", nil, []int{1, 2}},
		{"ISWAP", nil, []int{0, 1}},
		{"PSWAP", []float64{0.7}, []int{1, 2}},
	}
	for _, c := range cases {
		d := prepDispatch(t)
		before, _ := d.Amplitudes()
		if err := applyNamed(d, c.name, c.params, c.wires, false, nil, nil); err != nil {
			t.Errorf("%s forward: %v", c.name, err)
			continue
		}
		if err := applyNamed(d, c.name, c.params, c.wires, true, nil, nil); err != nil {
			t.Errorf("%s inverse: %v", c.name, err)
			continue
		}
		after, _ := d.Amplitudes()
		for i := range after {
			if cmplx.Abs(after[i]-before[i]) > 1e-9 {
				t.Errorf("%s round trip drifted at %d: %v vs %v", c.name, i, after[i], before[i])
				break
			}
		}
	}
}

func TestApplyNamedControlFolding(t *testing.T) {
	d, _ := newDenseEngine(2, DefaultOptions(), testRNG())
	d.XMask(1)
	if err := applyNamed(d, "CNOT", nil, []int{0, 1}, false, nil, nil); err != nil {
		t.Fatal(err)
	}
	probsClose(t, allProbs(t, d), []float64{0, 0, 0, 1}, 1e-12)

	d, _ = newDenseEngine(3, DefaultOptions(), testRNG())
	d.XMask(0b011)
	applyNamed(d, "Toffoli", nil, []int{0, 1, 2}, false, nil, nil)
	if p := allProbs(t, d); math.Abs(p[7]-1) > 1e-12 {
		t.Errorf("Toffoli with both controls high: %v", p)
	}

	d, _ = newDenseEngine(3, DefaultOptions(), testRNG())
	d.XMask(0b001)
	applyNamed(d, "Toffoli", nil, []int{0, 1, 2}, false, nil, nil)
	if p := allProbs(t, d); math.Abs(p[1]-1) > 1e-12 {
		t.Errorf("Toffoli with one control low acted: %v", p)
	}

	d, _ = newDenseEngine(3, DefaultOptions(), testRNG())
	d.XMask(0b101)
	applyNamed(d, "MultiControlledX", nil, []int{0, 2, 1}, false, nil, nil)
	if p := allProbs(t, d); math.Abs(p[7]-1) > 1e-12 {
		t.Errorf("MultiControlledX: %v", p)
	}

	d, _ = newDenseEngine(3, DefaultOptions(), testRNG())
	d.XMask(0b011)
	applyNamed(d, "CSWAP", nil, []int{0, 1, 2}, false, nil, nil)
	if p := allProbs(t, d); math.Abs(p[5]-1) > 1e-12 {
		t.Errorf("CSWAP: %v", p)
	}

	// explicit controls stack in front of the implied ones
	d, _ = newDenseEngine(3, DefaultOptions(), testRNG())
	d.XMask(0b011)
	if err := applyNamed(d, "CNOT", nil, []int{1, 2}, false, []int{0}, []bool{true}); err != nil {
		t.Fatal(err)
	}
	if p := allProbs(t, d); math.Abs(p[7]-1) > 1e-12 {
		t.Errorf("CNOT with an explicit extra control: %v", p)
	}
}

func TestApplyNamedControlValues(t *testing.T) {
	d, _ := newDenseEngine(3, DefaultOptions(), testRNG())
	if err := applyNamed(d, "PauliX", nil, []int{2}, false, []int{0}, []bool{true}); err != nil {
		t.Fatal(err)
	}
	if p := allProbs(t, d); math.Abs(p[0]-1) > 1e-12 {
		t.Errorf("control wanting |1> fired on |0>: %v", p)
	}
	if err := applyNamed(d, "PauliX", nil, []int{2}, false, []int{0}, []bool{false}); err != nil {
		t.Fatal(err)
	}
	if p := allProbs(t, d); math.Abs(p[4]-1) > 1e-12 {
		t.Errorf("control wanting |0> did not fire: %v", p)
	}
}

func TestApplyNamedValues(t *testing.T) {
	d, _ := newDenseEngine(1, DefaultOptions(), testRNG())
	d.XMask(1)
	applyNamed(d, "S", nil, []int{0}, false, nil, nil)
	amps, _ := d.Amplitudes()
	if cmplx.Abs(amps[1]-1i) > 1e-12 {
		t.Errorf("S|1> = %v, want i", amps[1])
	}
	applyNamed(d, "S", nil, []int{0}, true, nil, nil)
	applyNamed(d, "T", nil, []int{0}, false, nil, nil)
	amps, _ = d.Amplitudes()
	if cmplx.Abs(amps[1]-phaseT) > 1e-12 {
		t.Errorf("T|1> = %v", amps[1])
	}

	d, _ = newDenseEngine(1, DefaultOptions(), testRNG())
	d.XMask(1)
	applyNamed(d, "PhaseShift", []float64{0.9}, []int{0}, false, nil, nil)
	amps, _ = d.Amplitudes()
	if cmplx.Abs(amps[1]-expI(0.9)) > 1e-12 {
		t.Errorf("PhaseShift|1> = %v", amps[1])
	}

	d, _ = newDenseEngine(2, DefaultOptions(), testRNG())
	d.XMask(0b11)
	applyNamed(d, "MultiRZ", []float64{0.8}, []int{0, 1}, false, nil, nil)
	amps, _ = d.Amplitudes()
	if cmplx.Abs(amps[3]-expI(0.8)) > 1e-12 {
		t.Errorf("MultiRZ on |11> = %v, want %v", amps[3], expI(0.8))
	}

	d, _ = newDenseEngine(2, DefaultOptions(), testRNG())
	d.XMask(1)
	applyNamed(d, "CY", nil, []int{0, 1}, false, nil, nil)
	amps, _ = d.Amplitudes()
	if cmplx.Abs(amps[3]-1i) > 1e-12 {
		t.Errorf("CY gave %v, want i|11>", amps[3])
	}

	d, _ = newDenseEngine(2, DefaultOptions(), testRNG())
	d.XMask(0b11)
	applyNamed(d, "CZ", nil, []int{0, 1}, false, nil, nil)
	amps, _ = d.Amplitudes()
	if cmplx.Abs(amps[3]-(-1)) > 1e-12 {
		t.Errorf("CZ on |11> = %v, want -1", amps[3])
	}
}

func TestApplyNamedISWAP(t *testing.T) {
	d, _ := newDenseEngine(2, DefaultOptions(), testRNG())
	d.XMask(1)
	if err := applyNamed(d, "ISWAP", nil, []int{0, 1}, false, nil, nil); err != nil {
		t.Fatal(err)
	}
	amps, _ := d.Amplitudes()
	ampsClose(t, amps, []Complex{0, 0, 1i, 0}, 1e-12)

	// |11> passes through unphased
	d, _ = newDenseEngine(2, DefaultOptions(), testRNG())
	d.XMask(0b11)
	applyNamed(d, "ISWAP", nil, []int{0, 1}, false, nil, nil)
	amps, _ = d.Amplitudes()
	if cmplx.Abs(amps[3]-1) > 1e-12 {
		t.Errorf("ISWAP on |11> = %v", amps[3])
	}
}

func TestApplyNamedPSWAP(t *testing.T) {
	d, _ := newDenseEngine(2, DefaultOptions(), testRNG())
	d.XMask(1)
	if err := applyNamed(d, "PSWAP", []float64{0.7}, []int{0, 1}, false, nil, nil); err != nil {
		t.Fatal(err)
	}
	probsClose(t, allProbs(t, d), []float64{0, 0, 1, 0}, 1e-12)

	d = prepDispatch(t)
	before, _ := d.Amplitudes()
	applyNamed(d, "PSWAP", []float64{1.3}, []int{0, 2}, false, nil, nil)
	applyNamed(d, "PSWAP", []float64{1.3}, []int{0, 2}, true, nil, nil)
	after, _ := d.Amplitudes()
	ampsClose(t, after, before, 1e-9)
}

func TestApplyNamedErrors(t *testing.T) {
	d, _ := newDenseEngine(3, DefaultOptions(), testRNG())
	cases := []struct {
		name   string
		params []float64
		wires  []int
	}{
		{"RX", nil, []int{0}},
		{"Rot", []float64{0.1, 0.2}, []int{0}},
		{"PSWAP", nil, []int{0, 1}},
		{"SWAP", nil, []int{0}},
		{"ISWAP", nil, []int{0, 1, 2}},
		{"CSWAP", nil, []int{0}},
	}
	for _, c := range cases {
		if err := applyNamed(d, c.name, c.params, c.wires, false, nil, nil); !errors.Is(err, ErrArity) {
			t.Errorf("%s with bad arity gave %v", c.name, err)
		}
	}
	if err := applyNamed(d, "PauliX", nil, []int{0}, false, []int{1}, nil); !errors.Is(err, ErrArity) {
		t.Errorf("control value mismatch gave %v", err)
	}
	if err := applyNamed(d, "Foo", nil, []int{0}, false, nil, nil); !errors.Is(err, ErrUnknownGate) {
		t.Errorf("unknown gate gave %v", err)
	}
}

func TestApplyMatrix(t *testing.T) {
	d := prepDispatch(t)
	before, _ := d.Amplitudes()
	u := mtrxU3(0.3, 0.7, -0.2)
	if err := applyMatrix(d, u, []int{1}, false, nil, nil); err != nil {
		t.Fatal(err)
	}
	if err := applyMatrix(d, u, []int{1}, true, nil, nil); err != nil {
		t.Fatal(err)
	}
	after, _ := d.Amplitudes()
	ampsClose(t, after, before, 1e-9)

	if err := applyMatrix(d, u, []int{0, 1}, false, nil, nil); !errors.Is(err, ErrArity) {
		t.Errorf("two wires gave %v", err)
	}
	if err := applyMatrix(d, u, []int{0}, false, []int{1}, nil); !errors.Is(err, ErrArity) {
		t.Errorf("control mismatch gave %v", err)
	}

	fresh, _ := newDenseEngine(2, DefaultOptions(), testRNG())
	if err := applyMatrix(fresh, mtrxX, []int{1}, false, []int{0}, []bool{true}); err != nil {
		t.Fatal(err)
	}
	if p := allProbs(t, fresh); math.Abs(p[0]-1) > 1e-12 {
		t.Errorf("controlled matrix fired on |00>: %v", p)
	}
}

func TestApplyNamedControlledU3(t *testing.T) {
	d := prepDispatch(t)
	before, _ := d.Amplitudes()
	params := []float64{0.4, 0.8, -0.3}
	if err := applyNamed(d, "U3", params, []int{1}, false, []int{0}, []bool{true}); err != nil {
		t.Fatal(err)
	}
	if err := applyNamed(d, "U3", params, []int{1}, true, []int{0}, []bool{true}); err != nil {
		t.Fatal(err)
	}
	after, _ := d.Amplitudes()
	ampsClose(t, after, before, 1e-9)
}

package qregsim

import (
	"math"
	"math/cmplx"
	"testing"
)

var mtrxIdent = Mtrx2{1, 0, 0, 1}

func mtrxClose(t *testing.T, got, want Mtrx2, eps float64) {
	t.Helper()
	for i := range got {
		if cmplx.Abs(got[i]-want[i]) > eps {
			t.Errorf("entry %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestRevIndex(t *testing.T) {
	cases := []struct {
		i    uint64
		n    int
		want uint64
	}{
		{0, 3, 0},
		{1, 3, 4},
		{4, 3, 1},
		{5, 3, 5},
		{0b110, 3, 0b011},
		{0b1011, 4, 0b1101},
		{1, 1, 1},
		{0, 4, 0},
	}
	for _, c := range cases {
		if got := revIndex(c.i, c.n); got != c.want {
			t.Errorf("revIndex(%b, %d) = %b, want %b", c.i, c.n, got, c.want)
		}
		// reversing twice is the identity
		if got := revIndex(revIndex(c.i, c.n), c.n); got != c.i {
			t.Errorf("revIndex twice on %b width %d = %b", c.i, c.n, got)
		}
	}
}

func TestMtrxMul(t *testing.T) {
	hh := mtrxH.Mul(mtrxH)
	mtrxClose(t, hh, mtrxIdent, 1e-12)

	// XY = iZ
	xy := mtrxX.Mul(mtrxY)
	mtrxClose(t, xy, Mtrx2{1i, 0, 0, -1i}, 1e-12)

	sq := mtrxSqrtX.Mul(mtrxSqrtX)
	mtrxClose(t, sq, mtrxX, 1e-12)

	id := mtrxInvSqrtX.Mul(mtrxSqrtX)
	mtrxClose(t, id, mtrxIdent, 1e-12)
}

func TestMtrxInv(t *testing.T) {
	for _, m := range []Mtrx2{
		mtrxH,
		mtrxSqrtX,
		mtrxRX(1.1),
		mtrxRY(-0.4),
		mtrxRot(0.2, 0.9, -1.3),
		mtrxU3(0.5, 0.3, 2.1),
	} {
		mtrxClose(t, m.Mul(m.Inv()), mtrxIdent, 1e-12)
		mtrxClose(t, m.Inv().Mul(m), mtrxIdent, 1e-12)
	}
}

func TestIsDiagonal(t *testing.T) {
	if !mtrxZ.IsDiagonal() {
		t.Error("Z should be diagonal")
	}
	if !(Mtrx2{1, 0, 0, phaseT}).IsDiagonal() {
		t.Error("T should be diagonal")
	}
	if mtrxX.IsDiagonal() {
		t.Error("X should not be diagonal")
	}
	if mtrxH.IsDiagonal() {
		t.Error("H should not be diagonal")
	}
}

func TestSameUpToPhase(t *testing.T) {
	g := expI(math.Pi / 4)
	scaled := Mtrx2{g * mtrxH[0], g * mtrxH[1], g * mtrxH[2], g * mtrxH[3]}
	ph, ok := sameUpToPhase(scaled, mtrxH)
	if !ok {
		t.Fatal("scaled H should match H up to phase")
	}
	if cmplx.Abs(ph-g) > 1e-12 {
		t.Errorf("phase = %v, want %v", ph, g)
	}

	ph, ok = sameUpToPhase(mtrxH, mtrxH)
	if !ok || cmplx.Abs(ph-1) > 1e-12 {
		t.Errorf("H vs H: phase %v ok %t", ph, ok)
	}

	if _, ok := sameUpToPhase(mtrxX, mtrxY); ok {
		t.Error("X should not match Y up to phase")
	}
}

func TestApproxEq(t *testing.T) {
	if !approxEq(1, 1+5e-11) {
		t.Error("values within tolerance should compare equal")
	}
	if approxEq(1, 1+1e-9) {
		t.Error("values outside tolerance should not compare equal")
	}
	if !approxEq(2i, 2i) {
		t.Error("identical values should compare equal")
	}
}

func TestRenormalize(t *testing.T) {
	amps := []Complex{3, 4i}
	renormalize(amps)
	if cmplx.Abs(amps[0]-0.6) > 1e-12 || cmplx.Abs(amps[1]-0.8i) > 1e-12 {
		t.Errorf("renormalize = %v", amps)
	}
	if math.Abs(normTotal(amps)-1) > 1e-12 {
		t.Errorf("norm after renormalize = %g", normTotal(amps))
	}

	zero := []Complex{0, 0}
	renormalize(zero)
	if zero[0] != 0 || zero[1] != 0 {
		t.Errorf("zero vector changed: %v", zero)
	}
}

func TestRotationMatrices(t *testing.T) {
	mtrxClose(t, mtrxRX(0.7).Mul(mtrxRX(-0.7)), mtrxIdent, 1e-12)
	mtrxClose(t, mtrxRY(1.3).Mul(mtrxRY(-1.3)), mtrxIdent, 1e-12)

	tl, br := rzPhases(0.9)
	itl, ibr := rzPhases(-0.9)
	if cmplx.Abs(tl*itl-1) > 1e-12 || cmplx.Abs(br*ibr-1) > 1e-12 {
		t.Errorf("rz phases do not cancel: %v %v", tl*itl, br*ibr)
	}

	// Rot(phi, theta, omega) = RZ(omega) RY(theta) RZ(phi)
	phi, theta, omega := 0.3, 1.1, -0.6
	ptl, pbr := rzPhases(phi)
	otl, obr := rzPhases(omega)
	want := Mtrx2{otl, 0, 0, obr}.Mul(mtrxRY(theta)).Mul(Mtrx2{ptl, 0, 0, pbr})
	mtrxClose(t, mtrxRot(phi, theta, omega), want, 1e-12)
}

func TestU3Matrix(t *testing.T) {
	mtrxClose(t, mtrxU3(0, 0, 0), mtrxIdent, 1e-12)
	mtrxClose(t, mtrxU3(math.Pi, 0, math.Pi), mtrxX, 1e-12)
	mtrxClose(t, mtrxU3(math.Pi/2, 0, math.Pi), mtrxH, 1e-12)
}

func TestPhaseConstants(t *testing.T) {
	if cmplx.Abs(phaseT*phaseT-phaseS) > 1e-12 {
		t.Error("T^2 should equal S")
	}
	if cmplx.Abs(phaseS*phaseInvS-1) > 1e-12 {
		t.Error("S and S^-1 should cancel")
	}
	if cmplx.Abs(phaseT*phaseInvT-1) > 1e-12 {
		t.Error("T and T^-1 should cancel")
	}
	if cmplx.Abs(expI(math.Pi)+1) > 1e-12 {
		t.Errorf("expI(pi) = %v", expI(math.Pi))
	}
	if cmplx.Abs(expI(math.Pi/2)-1i) > 1e-12 {
		t.Errorf("expI(pi/2) = %v", expI(math.Pi/2))
	}
}

func TestPauliString(t *testing.T) {
	cases := []struct {
		p    Pauli
		want string
	}{
		{PauliI, "I"},
		{PauliX, "X"},
		{PauliY, "Y"},
		{PauliZ, "Z"},
	}
	for _, c := range cases {
		if got := c.p.String(); got != c.want {
			t.Errorf("Pauli(%d).String() = %q, want %q", c.p, got, c.want)
		}
	}
}

package qregsim

import (
	"math"
	"math/cmplx"
)

type Complex = complex128

// Mtrx2 is a single-qubit operator in row-major order: [m00 m01; m10 m11].
type Mtrx2 [4]Complex

func (m Mtrx2) Mul(o Mtrx2) Mtrx2 {
	return Mtrx2{
		m[0]*o[0] + m[1]*o[2], m[0]*o[1] + m[1]*o[3],
		m[2]*o[0] + m[3]*o[2], m[2]*o[1] + m[3]*o[3],
	}
}

// Inv returns the exact inverse via the adjugate over the determinant.
func (m Mtrx2) Inv() Mtrx2 {
	det := m[0]*m[3] - m[1]*m[2]
	return Mtrx2{m[3] / det, -m[1] / det, -m[2] / det, m[0] / det}
}

func (m Mtrx2) IsDiagonal() bool {
	return cmplx.Abs(m[1]) <= matrixEps && cmplx.Abs(m[2]) <= matrixEps
}

// Pauli labels a single-qubit measurement axis.
type Pauli int

const (
	PauliI Pauli = iota
	PauliX
	PauliY
	PauliZ
)

func (p Pauli) String() string {
	switch p {
	case PauliX:
		return "X"
	case PauliY:
		return "Y"
	case PauliZ:
		return "Z"
	}
	return "I"
}

const matrixEps = 1e-10

func approxEq(a, b Complex) bool {
	return cmplx.Abs(a-b) <= matrixEps
}

// sameUpToPhase reports whether a equals b times a unit scalar, and returns
// that scalar.
func sameUpToPhase(a, b Mtrx2) (Complex, bool) {
	var phase Complex
	for i := range a {
		if cmplx.Abs(b[i]) > matrixEps {
			phase = a[i] / b[i]
			break
		}
	}
	if phase == 0 || math.Abs(cmplx.Abs(phase)-1) > matrixEps {
		return 0, false
	}
	for i := range a {
		if !approxEq(a[i], phase*b[i]) {
			return 0, false
		}
	}
	return phase, true
}

func pow2(q int) uint64 {
	return uint64(1) << q
}

// revIndex reverses the low n bits of i.
func revIndex(i uint64, n int) uint64 {
	var r uint64
	for b := range n {
		if i&pow2(b) != 0 {
			r |= pow2(n - (b + 1))
		}
	}
	return r
}

func probAmp(a Complex) float64 {
	return real(a)*real(a) + imag(a)*imag(a)
}

func normTotal(amps []Complex) float64 {
	t := 0.0
	for _, a := range amps {
		t += probAmp(a)
	}
	return t
}

func renormalize(amps []Complex) {
	t := normTotal(amps)
	if t <= 0 {
		return
	}
	f := complex(1/math.Sqrt(t), 0)
	for i := range amps {
		amps[i] *= f
	}
}

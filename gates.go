package qregsim

import (
	"math"
	"math/cmplx"
)

var (
	mtrxX = Mtrx2{0, 1, 1, 0}
	mtrxY = Mtrx2{0, -1i, 1i, 0}
	mtrxZ = Mtrx2{1, 0, 0, -1}
	mtrxH = Mtrx2{
		complex(1/math.Sqrt2, 0), complex(1/math.Sqrt2, 0),
		complex(1/math.Sqrt2, 0), complex(-1/math.Sqrt2, 0),
	}
	mtrxSqrtX    = Mtrx2{0.5 + 0.5i, 0.5 - 0.5i, 0.5 - 0.5i, 0.5 + 0.5i}
	mtrxInvSqrtX = Mtrx2{0.5 - 0.5i, 0.5 + 0.5i, 0.5 + 0.5i, 0.5 - 0.5i}
)

var (
	phaseS    = Complex(1i)
	phaseInvS = Complex(-1i)
	phaseT    = cmplx.Exp(complex(0, math.Pi/4))
	phaseInvT = cmplx.Exp(complex(0, -math.Pi/4))
)

func expI(theta float64) Complex {
	return cmplx.Exp(complex(0, theta))
}

func mtrxRX(theta float64) Mtrx2 {
	c := complex(math.Cos(theta/2), 0)
	js := complex(0, -math.Sin(theta/2))
	return Mtrx2{c, js, js, c}
}

func mtrxRY(theta float64) Mtrx2 {
	c := complex(math.Cos(theta/2), 0)
	s := complex(math.Sin(theta/2), 0)
	return Mtrx2{c, -s, s, c}
}

// rzPhases returns the diagonal of RZ(theta).
func rzPhases(theta float64) (Complex, Complex) {
	return expI(-theta / 2), expI(theta / 2)
}

// mtrxRot builds the three-angle Euler rotation RZ(omega)·RY(theta)·RZ(phi).
func mtrxRot(phi, theta, omega float64) Mtrx2 {
	cos0 := complex(math.Cos(theta/2), 0)
	sin0 := complex(math.Sin(theta/2), 0)
	expP := expI((phi + omega) / 2)
	expM := expI((phi - omega) / 2)
	return Mtrx2{cos0 / expP, -sin0 * expM, sin0 / expM, cos0 * expP}
}

// mtrxU3 builds the generic single-qubit unitary U3(theta, phi, lambda).
func mtrxU3(theta, phi, lambda float64) Mtrx2 {
	cos0 := complex(math.Cos(theta/2), 0)
	sin0 := complex(math.Sin(theta/2), 0)
	return Mtrx2{cos0, -sin0 * expI(lambda), sin0 * expI(phi), cos0 * expI(phi+lambda)}
}

package qregsim

import (
	"fmt"
	"math/rand/v2"
)

// noiseEngine decorates an engine with a depolarizing channel: after every
// unitary each touched qubit suffers a uniform random Pauli with the
// configured probability. One engine walks one trajectory; sampling noisy
// statistics means rebuilding the session per shot.
type noiseEngine struct {
	eng Engine
	p   float64
	rng *rand.Rand
}

func newNoiseEngine(eng Engine, noise float64, rng *rand.Rand) Engine {
	return &noiseEngine{eng: eng, p: noise, rng: rng}
}

func (n *noiseEngine) QubitCount() int   { return n.eng.QubitCount() }
func (n *noiseEngine) MaxQPower() uint64 { return n.eng.MaxQPower() }

func (n *noiseEngine) depolarize(qs ...int) error {
	for _, q := range qs {
		if n.rng.Float64() >= n.p {
			continue
		}
		var err error
		switch n.rng.IntN(3) {
		case 0:
			err = n.eng.XMask(pow2(q))
		case 1:
			err = n.eng.YMask(pow2(q))
		default:
			err = n.eng.ZMask(pow2(q))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func maskQubits(mask uint64) []int {
	var qs []int
	for q := 0; mask != 0; q++ {
		if mask&1 != 0 {
			qs = append(qs, q)
		}
		mask >>= 1
	}
	return qs
}

func (n *noiseEngine) Allocate(count int) error { return n.eng.Allocate(count) }
func (n *noiseEngine) Dispose(q int) error      { return n.eng.Dispose(q) }

func (n *noiseEngine) Compose(o Engine) error {
	other, ok := o.(*noiseEngine)
	if !ok {
		return fmt.Errorf("compose across representations: %T", o)
	}
	return n.eng.Compose(other.eng)
}

func (n *noiseEngine) Mtrx(m Mtrx2, q int) error {
	if err := n.eng.Mtrx(m, q); err != nil {
		return err
	}
	return n.depolarize(q)
}

func (n *noiseEngine) Phase(tl, br Complex, q int) error {
	if err := n.eng.Phase(tl, br, q); err != nil {
		return err
	}
	return n.depolarize(q)
}

func (n *noiseEngine) UCMtrx(controls []int, m Mtrx2, q int, perm uint64) error {
	if err := n.eng.UCMtrx(controls, m, q, perm); err != nil {
		return err
	}
	return n.depolarize(append(append([]int{}, controls...), q)...)
}

func (n *noiseEngine) UCPhase(controls []int, tl, br Complex, q int, perm uint64) error {
	if err := n.eng.UCPhase(controls, tl, br, q, perm); err != nil {
		return err
	}
	return n.depolarize(append(append([]int{}, controls...), q)...)
}

func (n *noiseEngine) XMask(mask uint64) error {
	if err := n.eng.XMask(mask); err != nil {
		return err
	}
	return n.depolarize(maskQubits(mask)...)
}

func (n *noiseEngine) YMask(mask uint64) error {
	if err := n.eng.YMask(mask); err != nil {
		return err
	}
	return n.depolarize(maskQubits(mask)...)
}

func (n *noiseEngine) ZMask(mask uint64) error {
	if err := n.eng.ZMask(mask); err != nil {
		return err
	}
	return n.depolarize(maskQubits(mask)...)
}

func (n *noiseEngine) Swap(a, b int) error {
	if err := n.eng.Swap(a, b); err != nil {
		return err
	}
	return n.depolarize(a, b)
}

func (n *noiseEngine) CSwap(controls []int, a, b int, perm uint64) error {
	if err := n.eng.CSwap(controls, a, b, perm); err != nil {
		return err
	}
	return n.depolarize(append(append([]int{}, controls...), a, b)...)
}

func (n *noiseEngine) Prob(q int) (float64, error)          { return n.eng.Prob(q) }
func (n *noiseEngine) ProbAll() ([]float64, error)          { return n.eng.ProbAll() }
func (n *noiseEngine) ProbMask(qs []int) ([]float64, error) { return n.eng.ProbMask(qs) }
func (n *noiseEngine) Amplitudes() ([]Complex, error)       { return n.eng.Amplitudes() }

func (n *noiseEngine) M(q int) (bool, error) { return n.eng.M(q) }

func (n *noiseEngine) ForceM(q int, result bool) (bool, error) {
	return n.eng.ForceM(q, result)
}

func (n *noiseEngine) MAll() (uint64, error) { return n.eng.MAll() }

func (n *noiseEngine) MultiShot(qPowers []uint64, shots int) (map[uint64]int, error) {
	return n.eng.MultiShot(qPowers, shots)
}

func (n *noiseEngine) ExpectationPauli(qs []int, paulis []Pauli) (float64, error) {
	return n.eng.ExpectationPauli(qs, paulis)
}

func (n *noiseEngine) VariancePauli(qs []int, paulis []Pauli) (float64, error) {
	return n.eng.VariancePauli(qs, paulis)
}

package qregsim

import (
	"fmt"
	"math"
	"math/bits"
	"math/rand/v2"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"
)

const (
	minParallelQubits  = 12
	hybridSwitchQubits = 18
)

// denseEngine holds the full 2^n amplitude array. The GPU flag turns on
// chunked goroutine kernels; the CPU/GPU-hybrid flag defers the fan-out
// until the register is large enough to pay for it.
type denseEngine struct {
	amps     []Complex
	qubits   int
	rng      *rand.Rand
	parallel bool
	hybrid   bool
	maxMB    int
}

func newDenseEngine(qubits int, opts Options, rng *rand.Rand) (*denseEngine, error) {
	if err := allocGuard(qubits, opts.MaxAllocMB); err != nil {
		return nil, err
	}
	amps := make([]Complex, uint64(1)<<qubits)
	amps[0] = 1
	return &denseEngine{
		amps:     amps,
		qubits:   qubits,
		rng:      rng,
		parallel: opts.GPU,
		hybrid:   opts.HybridCPUGPU,
		maxMB:    opts.MaxAllocMB,
	}, nil
}

func (d *denseEngine) QubitCount() int   { return d.qubits }
func (d *denseEngine) MaxQPower() uint64 { return uint64(len(d.amps)) }

func (d *denseEngine) parallelNow() bool {
	if d.hybrid {
		return d.qubits >= hybridSwitchQubits
	}
	return d.parallel && d.qubits >= minParallelQubits
}

// run splits the index space over workers when the register is large enough.
// Pair kernels only write the pair owned by the low index they scan, so any
// range split is race-free.
func (d *denseEngine) run(fn func(lo, hi uint64)) {
	n := uint64(len(d.amps))
	if !d.parallelNow() {
		fn(0, n)
		return
	}
	workers := uint64(runtime.GOMAXPROCS(0))
	if workers < 2 {
		fn(0, n)
		return
	}
	chunk := n / workers
	var g errgroup.Group
	for w := range workers {
		lo := w * chunk
		hi := lo + chunk
		if w == workers-1 {
			hi = n
		}
		g.Go(func() error {
			fn(lo, hi)
			return nil
		})
	}
	_ = g.Wait()
}

func (d *denseEngine) Allocate(count int) error {
	if count <= 0 {
		return nil
	}
	if err := allocGuard(d.qubits+count, d.maxMB); err != nil {
		return err
	}
	next := make([]Complex, uint64(len(d.amps))<<count)
	copy(next, d.amps)
	d.amps = next
	d.qubits += count
	return nil
}

func (d *denseEngine) Dispose(q int) error {
	p, _ := d.Prob(q)
	val := p >= 0.5
	half := make([]Complex, uint64(len(d.amps))>>1)
	for i := range uint64(len(half)) {
		half[i] = d.amps[insertBit(i, q, val)]
	}
	renormalize(half)
	d.amps = half
	d.qubits--
	return nil
}

func (d *denseEngine) Compose(o Engine) error {
	other, ok := o.(*denseEngine)
	if !ok {
		return fmt.Errorf("compose across representations: %T", o)
	}
	if err := allocGuard(d.qubits+other.qubits, d.maxMB); err != nil {
		return err
	}
	next := make([]Complex, uint64(len(d.amps))*uint64(len(other.amps)))
	for hi, ah := range other.amps {
		if ah == 0 {
			continue
		}
		base := uint64(hi) << d.qubits
		for lo, al := range d.amps {
			next[base|uint64(lo)] = ah * al
		}
	}
	d.amps = next
	d.qubits += other.qubits
	return nil
}

func insertBit(i uint64, pos int, val bool) uint64 {
	p := pow2(pos)
	low := i & (p - 1)
	out := ((i &^ (p - 1)) << 1) | low
	if val {
		out |= p
	}
	return out
}

// mtrxPairs applies m to every (i, i|bit) pair in [lo, hi) whose index
// satisfies the control condition.
func mtrxPairs(amps []Complex, lo, hi, bit, cmask, cwant uint64, m Mtrx2) {
	for i := lo; i < hi; i++ {
		if i&bit != 0 || i&cmask != cwant {
			continue
		}
		j := i | bit
		a0, a1 := amps[i], amps[j]
		amps[i] = m[0]*a0 + m[1]*a1
		amps[j] = m[2]*a0 + m[3]*a1
	}
}

func phaseDiag(amps []Complex, lo, hi, bit, cmask, cwant uint64, tl, br Complex) {
	for i := lo; i < hi; i++ {
		if i&cmask != cwant {
			continue
		}
		if i&bit != 0 {
			amps[i] *= br
		} else {
			amps[i] *= tl
		}
	}
}

func xMaskAmps(amps []Complex, lo, hi, mask uint64) {
	for i := lo; i < hi; i++ {
		j := i ^ mask
		if i < j {
			amps[i], amps[j] = amps[j], amps[i]
		}
	}
}

// yFactor is the phase a basis index picks up under a Y broadcast: i per
// flipped-up bit, -i per flipped-down bit.
func yFactor(idx, mask uint64) Complex {
	k := bits.OnesCount64(mask)
	f := Complex(1)
	switch k % 4 {
	case 1:
		f = 1i
	case 2:
		f = -1
	case 3:
		f = -1i
	}
	if bits.OnesCount64(idx&mask)%2 == 1 {
		f = -f
	}
	return f
}

func yMaskAmps(amps []Complex, lo, hi, mask uint64) {
	for i := lo; i < hi; i++ {
		j := i ^ mask
		if i < j {
			fi := yFactor(i, mask)
			fj := yFactor(j, mask)
			amps[i], amps[j] = fj*amps[j], fi*amps[i]
		}
	}
}

func zMaskAmps(amps []Complex, lo, hi, mask uint64) {
	for i := lo; i < hi; i++ {
		if bits.OnesCount64(i&mask)%2 == 1 {
			amps[i] = -amps[i]
		}
	}
}

func swapAmps(amps []Complex, lo, hi, pa, pb, cmask, cwant uint64) {
	for i := lo; i < hi; i++ {
		if i&pa == 0 || i&pb != 0 || i&cmask != cwant {
			continue
		}
		j := (i &^ pa) | pb
		amps[i], amps[j] = amps[j], amps[i]
	}
}

func (d *denseEngine) Mtrx(m Mtrx2, q int) error {
	d.run(func(lo, hi uint64) { mtrxPairs(d.amps, lo, hi, pow2(q), 0, 0, m) })
	return nil
}

func (d *denseEngine) Phase(tl, br Complex, q int) error {
	d.run(func(lo, hi uint64) { phaseDiag(d.amps, lo, hi, pow2(q), 0, 0, tl, br) })
	return nil
}

func (d *denseEngine) UCMtrx(controls []int, m Mtrx2, q int, perm uint64) error {
	cmask, cwant := ctrlBits(controls, perm)
	d.run(func(lo, hi uint64) { mtrxPairs(d.amps, lo, hi, pow2(q), cmask, cwant, m) })
	return nil
}

func (d *denseEngine) UCPhase(controls []int, tl, br Complex, q int, perm uint64) error {
	cmask, cwant := ctrlBits(controls, perm)
	d.run(func(lo, hi uint64) { phaseDiag(d.amps, lo, hi, pow2(q), cmask, cwant, tl, br) })
	return nil
}

func (d *denseEngine) XMask(mask uint64) error {
	d.run(func(lo, hi uint64) { xMaskAmps(d.amps, lo, hi, mask) })
	return nil
}

func (d *denseEngine) YMask(mask uint64) error {
	d.run(func(lo, hi uint64) { yMaskAmps(d.amps, lo, hi, mask) })
	return nil
}

func (d *denseEngine) ZMask(mask uint64) error {
	d.run(func(lo, hi uint64) { zMaskAmps(d.amps, lo, hi, mask) })
	return nil
}

func (d *denseEngine) Swap(a, b int) error {
	if a == b {
		return nil
	}
	d.run(func(lo, hi uint64) { swapAmps(d.amps, lo, hi, pow2(a), pow2(b), 0, 0) })
	return nil
}

func (d *denseEngine) CSwap(controls []int, a, b int, perm uint64) error {
	if a == b {
		return nil
	}
	cmask, cwant := ctrlBits(controls, perm)
	d.run(func(lo, hi uint64) { swapAmps(d.amps, lo, hi, pow2(a), pow2(b), cmask, cwant) })
	return nil
}

func (d *denseEngine) Prob(q int) (float64, error) {
	bit := pow2(q)
	p := 0.0
	for i, a := range d.amps {
		if uint64(i)&bit != 0 {
			p += probAmp(a)
		}
	}
	return p, nil
}

func (d *denseEngine) ProbAll() ([]float64, error) {
	out := make([]float64, len(d.amps))
	for i, a := range d.amps {
		out[i] = probAmp(a)
	}
	return out, nil
}

func (d *denseEngine) ProbMask(qs []int) ([]float64, error) {
	out := make([]float64, uint64(1)<<len(qs))
	for i, a := range d.amps {
		out[subIndex(uint64(i), qs)] += probAmp(a)
	}
	return out, nil
}

// subIndex projects a full basis index onto the listed qubits: bit j of the
// result is the value of qs[j].
func subIndex(i uint64, qs []int) uint64 {
	var sub uint64
	for j, q := range qs {
		if i&pow2(q) != 0 {
			sub |= pow2(j)
		}
	}
	return sub
}

func (d *denseEngine) Amplitudes() ([]Complex, error) {
	out := make([]Complex, len(d.amps))
	copy(out, d.amps)
	return out, nil
}

func (d *denseEngine) collapse(q int, val bool) {
	bit := pow2(q)
	kept := 0.0
	for i := range d.amps {
		if (uint64(i)&bit != 0) == val {
			kept += probAmp(d.amps[i])
		} else {
			d.amps[i] = 0
		}
	}
	if kept > 0 {
		f := complex(1/math.Sqrt(kept), 0)
		for i := range d.amps {
			d.amps[i] *= f
		}
	}
}

func (d *denseEngine) M(q int) (bool, error) {
	p1, _ := d.Prob(q)
	val := d.rng.Float64() < p1
	d.collapse(q, val)
	return val, nil
}

func (d *denseEngine) ForceM(q int, result bool) (bool, error) {
	p1, _ := d.Prob(q)
	p := p1
	if !result {
		p = 1 - p1
	}
	if p < 1e-12 {
		return false, fmt.Errorf("%w: qubit %d to %t", ErrPostselect, q, result)
	}
	d.collapse(q, result)
	return result, nil
}

func (d *denseEngine) MAll() (uint64, error) {
	r := d.rng.Float64()
	cum := 0.0
	idx := uint64(len(d.amps) - 1)
	for i, a := range d.amps {
		cum += probAmp(a)
		if r < cum {
			idx = uint64(i)
			break
		}
	}
	for i := range d.amps {
		d.amps[i] = 0
	}
	d.amps[idx] = 1
	return idx, nil
}

func (d *denseEngine) MultiShot(qPowers []uint64, shots int) (map[uint64]int, error) {
	return sampleDist(d.rng, shots, len(d.amps), qPowers, func(i uint64) float64 {
		return probAmp(d.amps[i])
	})
}

// sampleDist draws shots from a frozen distribution in one cumulative pass:
// sorted uniforms against the running total, each landing index projected
// onto the qubit powers.
func sampleDist(rng *rand.Rand, shots, size int, qPowers []uint64, prob func(uint64) float64) (map[uint64]int, error) {
	rs := make([]float64, shots)
	for i := range rs {
		rs[i] = rng.Float64()
	}
	slices.Sort(rs)

	counts := make(map[uint64]int)
	cum := 0.0
	si := 0
	var lastKey uint64
	haveKey := false
	for i := uint64(0); i < uint64(size) && si < shots; i++ {
		p := prob(i)
		if p <= 0 {
			continue
		}
		cum += p
		lastKey = packPowers(i, qPowers)
		haveKey = true
		for si < shots && rs[si] < cum {
			counts[lastKey]++
			si++
		}
	}
	// Rounding residue: stragglers land on the last populated outcome.
	if si < shots && haveKey {
		counts[lastKey] += shots - si
	}
	return counts, nil
}

func packPowers(i uint64, qPowers []uint64) uint64 {
	var key uint64
	for j, p := range qPowers {
		if i&p != 0 {
			key |= pow2(j)
		}
	}
	return key
}

func (d *denseEngine) applyPauli(amps []Complex, qs []int, paulis []Pauli) {
	n := uint64(len(amps))
	for k, q := range qs {
		switch paulis[k] {
		case PauliX:
			xMaskAmps(amps, 0, n, pow2(q))
		case PauliY:
			yMaskAmps(amps, 0, n, pow2(q))
		case PauliZ:
			zMaskAmps(amps, 0, n, pow2(q))
		}
	}
}

func dotRe(a, b []Complex) float64 {
	t := 0.0
	for i := range a {
		ar, ai := real(a[i]), imag(a[i])
		br, bi := real(b[i]), imag(b[i])
		t += ar*br + ai*bi
	}
	return t
}

func (d *denseEngine) ExpectationPauli(qs []int, paulis []Pauli) (float64, error) {
	v := make([]Complex, len(d.amps))
	copy(v, d.amps)
	d.applyPauli(v, qs, paulis)
	return dotRe(d.amps, v), nil
}

func (d *denseEngine) VariancePauli(qs []int, paulis []Pauli) (float64, error) {
	v := make([]Complex, len(d.amps))
	copy(v, d.amps)
	d.applyPauli(v, qs, paulis)
	e := dotRe(d.amps, v)
	d.applyPauli(v, qs, paulis)
	e2 := dotRe(d.amps, v)
	return e2 - e*e, nil
}

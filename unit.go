package qregsim

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"golang.org/x/sync/errgroup"
)

// cluster is one separable factor of the register: an inner engine plus the
// global index living at each of its local slots.
type cluster struct {
	eng    Engine
	qubits []int
}

// unitEngine factors the register into separable clusters. Qubits start as
// singletons, entangling operations merge the clusters they touch, and
// measurement splits the measured qubit back out. Reads combine per-cluster
// results as a product. Cross-cluster Swap is a relabeling, not a gate.
type unitEngine struct {
	clusters []*cluster
	n        int
	inner    engineFactory
	parallel bool
	rng      *rand.Rand
}

func newUnitEngine(qubits int, inner engineFactory, parallel bool, rng *rand.Rand) (*unitEngine, error) {
	u := &unitEngine{inner: inner, parallel: parallel, rng: rng}
	if err := u.Allocate(qubits); err != nil {
		return nil, err
	}
	return u, nil
}

func (u *unitEngine) QubitCount() int   { return u.n }
func (u *unitEngine) MaxQPower() uint64 { return uint64(1) << u.n }

func (u *unitEngine) find(q int) (*cluster, int) {
	for _, c := range u.clusters {
		for i, g := range c.qubits {
			if g == q {
				return c, i
			}
		}
	}
	return nil, -1
}

func local(c *cluster, q int) int {
	for i, g := range c.qubits {
		if g == q {
			return i
		}
	}
	return -1
}

func (u *unitEngine) drop(c *cluster) {
	u.clusters = slices.DeleteFunc(u.clusters, func(o *cluster) bool { return o == c })
}

// merge entangles two clusters: the larger absorbs the smaller at its high
// end, matching Compose index order.
func (u *unitEngine) merge(a, b *cluster) (*cluster, error) {
	if a == b {
		return a, nil
	}
	if len(b.qubits) > len(a.qubits) {
		a, b = b, a
	}
	if err := a.eng.Compose(b.eng); err != nil {
		return nil, err
	}
	a.qubits = append(a.qubits, b.qubits...)
	u.drop(b)
	return a, nil
}

func (u *unitEngine) join(qs ...int) (*cluster, error) {
	c, _ := u.find(qs[0])
	for _, q := range qs[1:] {
		o, _ := u.find(q)
		var err error
		if c, err = u.merge(c, o); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (u *unitEngine) Allocate(count int) error {
	if count <= 0 {
		return nil
	}
	if u.n+count > MaxQubits {
		return fmt.Errorf("%w: %d qubits", ErrCapacity, u.n+count)
	}
	for i := range count {
		s, err := u.inner(1)
		if err != nil {
			return err
		}
		u.clusters = append(u.clusters, &cluster{eng: s, qubits: []int{u.n + i}})
	}
	u.n += count
	return nil
}

func (u *unitEngine) Dispose(q int) error {
	c, li := u.find(q)
	if len(c.qubits) == 1 {
		u.drop(c)
	} else {
		if err := c.eng.Dispose(li); err != nil {
			return err
		}
		c.qubits = slices.Delete(c.qubits, li, li+1)
	}
	for _, o := range u.clusters {
		for i, g := range o.qubits {
			if g > q {
				o.qubits[i] = g - 1
			}
		}
	}
	u.n--
	return nil
}

func (u *unitEngine) Compose(o Engine) error {
	other, ok := o.(*unitEngine)
	if !ok {
		return fmt.Errorf("compose across representations: %T", o)
	}
	for _, c := range other.clusters {
		for i, g := range c.qubits {
			c.qubits[i] = g + u.n
		}
	}
	u.clusters = append(u.clusters, other.clusters...)
	u.n += other.n
	return nil
}

func (u *unitEngine) Mtrx(m Mtrx2, q int) error {
	c, li := u.find(q)
	return c.eng.Mtrx(m, li)
}

func (u *unitEngine) Phase(tl, br Complex, q int) error {
	c, li := u.find(q)
	return c.eng.Phase(tl, br, li)
}

func (u *unitEngine) UCMtrx(controls []int, m Mtrx2, q int, perm uint64) error {
	if len(controls) == 0 {
		return u.Mtrx(m, q)
	}
	c, err := u.join(append(slices.Clone(controls), q)...)
	if err != nil {
		return err
	}
	lc := make([]int, len(controls))
	for i, cc := range controls {
		lc[i] = local(c, cc)
	}
	return c.eng.UCMtrx(lc, m, local(c, q), perm)
}

func (u *unitEngine) UCPhase(controls []int, tl, br Complex, q int, perm uint64) error {
	if len(controls) == 0 {
		return u.Phase(tl, br, q)
	}
	c, err := u.join(append(slices.Clone(controls), q)...)
	if err != nil {
		return err
	}
	lc := make([]int, len(controls))
	for i, cc := range controls {
		lc[i] = local(c, cc)
	}
	return c.eng.UCPhase(lc, tl, br, local(c, q), perm)
}

// maskEach splits a register-wide mask into one local submask per touched
// cluster, fanning out when Schmidt parallelism is on.
func (u *unitEngine) maskEach(mask uint64, apply func(eng Engine, sub uint64) error) error {
	type job struct {
		eng Engine
		sub uint64
	}
	var jobs []job
	for _, c := range u.clusters {
		var sub uint64
		for k, g := range c.qubits {
			if mask&pow2(g) != 0 {
				sub |= pow2(k)
			}
		}
		if sub != 0 {
			jobs = append(jobs, job{c.eng, sub})
		}
	}
	if u.parallel && len(jobs) > 1 {
		var g errgroup.Group
		for _, jb := range jobs {
			g.Go(func() error { return apply(jb.eng, jb.sub) })
		}
		return g.Wait()
	}
	for _, jb := range jobs {
		if err := apply(jb.eng, jb.sub); err != nil {
			return err
		}
	}
	return nil
}

func (u *unitEngine) XMask(mask uint64) error {
	return u.maskEach(mask, func(eng Engine, sub uint64) error { return eng.XMask(sub) })
}

func (u *unitEngine) YMask(mask uint64) error {
	return u.maskEach(mask, func(eng Engine, sub uint64) error { return eng.YMask(sub) })
}

func (u *unitEngine) ZMask(mask uint64) error {
	return u.maskEach(mask, func(eng Engine, sub uint64) error { return eng.ZMask(sub) })
}

func (u *unitEngine) Swap(a, b int) error {
	if a == b {
		return nil
	}
	ca, la := u.find(a)
	cb, lb := u.find(b)
	if ca == cb {
		return ca.eng.Swap(la, lb)
	}
	ca.qubits[la], cb.qubits[lb] = b, a
	return nil
}

func (u *unitEngine) CSwap(controls []int, a, b int, perm uint64) error {
	if len(controls) == 0 {
		return u.Swap(a, b)
	}
	qs := append(slices.Clone(controls), a, b)
	c, err := u.join(qs...)
	if err != nil {
		return err
	}
	lc := make([]int, len(controls))
	for i, cc := range controls {
		lc[i] = local(c, cc)
	}
	return c.eng.CSwap(lc, local(c, a), local(c, b), perm)
}

func (u *unitEngine) Prob(q int) (float64, error) {
	c, li := u.find(q)
	return c.eng.Prob(li)
}

// gather collects per-cluster full reads, fanning out when Schmidt
// parallelism is on.
func gather[T any](u *unitEngine, read func(c *cluster) ([]T, error)) ([][]T, error) {
	out := make([][]T, len(u.clusters))
	if u.parallel && len(u.clusters) > 1 {
		var g errgroup.Group
		for ci, c := range u.clusters {
			g.Go(func() error {
				r, err := read(c)
				out[ci] = r
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return out, nil
	}
	for ci, c := range u.clusters {
		r, err := read(c)
		if err != nil {
			return nil, err
		}
		out[ci] = r
	}
	return out, nil
}

func localIndex(i uint64, globals []int) uint64 {
	var li uint64
	for k, g := range globals {
		if i&pow2(g) != 0 {
			li |= pow2(k)
		}
	}
	return li
}

func (u *unitEngine) ProbAll() ([]float64, error) {
	parts, err := gather(u, func(c *cluster) ([]float64, error) { return c.eng.ProbAll() })
	if err != nil {
		return nil, err
	}
	out := make([]float64, u.MaxQPower())
	for i := range out {
		p := 1.0
		for ci, c := range u.clusters {
			p *= parts[ci][localIndex(uint64(i), c.qubits)]
		}
		out[i] = p
	}
	return out, nil
}

func (u *unitEngine) ProbMask(qs []int) ([]float64, error) {
	type part struct {
		probs []float64
		js    []int
	}
	var parts []part
	for _, c := range u.clusters {
		var lqs, js []int
		for j, q := range qs {
			if li := local(c, q); li >= 0 {
				lqs = append(lqs, li)
				js = append(js, j)
			}
		}
		if len(lqs) == 0 {
			continue
		}
		probs, err := c.eng.ProbMask(lqs)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part{probs, js})
	}
	out := make([]float64, uint64(1)<<len(qs))
	for r := range out {
		p := 1.0
		for _, pt := range parts {
			var sub uint64
			for k, j := range pt.js {
				if uint64(r)&pow2(j) != 0 {
					sub |= pow2(k)
				}
			}
			p *= pt.probs[sub]
		}
		out[r] = p
	}
	return out, nil
}

func (u *unitEngine) Amplitudes() ([]Complex, error) {
	parts, err := gather(u, func(c *cluster) ([]Complex, error) { return c.eng.Amplitudes() })
	if err != nil {
		return nil, err
	}
	out := make([]Complex, u.MaxQPower())
	for i := range out {
		a := Complex(1)
		for ci, c := range u.clusters {
			a *= parts[ci][localIndex(uint64(i), c.qubits)]
		}
		out[i] = a
	}
	return out, nil
}

// splitOff factors a freshly measured qubit out of its cluster into a
// singleton basis state.
func (u *unitEngine) splitOff(c *cluster, li, q int, val bool) error {
	if err := c.eng.Dispose(li); err != nil {
		return err
	}
	c.qubits = slices.Delete(c.qubits, li, li+1)
	s, err := u.inner(1)
	if err != nil {
		return err
	}
	if val {
		if err := s.XMask(1); err != nil {
			return err
		}
	}
	u.clusters = append(u.clusters, &cluster{eng: s, qubits: []int{q}})
	return nil
}

func (u *unitEngine) M(q int) (bool, error) {
	c, li := u.find(q)
	out, err := c.eng.M(li)
	if err != nil {
		return out, err
	}
	if len(c.qubits) > 1 {
		if err := u.splitOff(c, li, q, out); err != nil {
			return out, err
		}
	}
	return out, nil
}

func (u *unitEngine) ForceM(q int, result bool) (bool, error) {
	c, li := u.find(q)
	out, err := c.eng.ForceM(li, result)
	if err != nil {
		return out, err
	}
	if len(c.qubits) > 1 {
		if err := u.splitOff(c, li, q, out); err != nil {
			return out, err
		}
	}
	return out, nil
}

func (u *unitEngine) MAll() (uint64, error) {
	var idx uint64
	for _, c := range u.clusters {
		li, err := c.eng.MAll()
		if err != nil {
			return 0, err
		}
		for k, g := range c.qubits {
			if li&pow2(k) != 0 {
				idx |= pow2(g)
			}
		}
	}
	return idx, nil
}

func globalize(key uint64, globals []int) uint64 {
	var idx uint64
	for k, g := range globals {
		if key&pow2(k) != 0 {
			idx |= pow2(g)
		}
	}
	return idx
}

func (u *unitEngine) MultiShot(qPowers []uint64, shots int) (map[uint64]int, error) {
	// Sample each cluster independently, then pair shots across clusters in
	// random order.
	rows := make([][]uint64, len(u.clusters))
	for ci, c := range u.clusters {
		powers := make([]uint64, len(c.qubits))
		for k := range powers {
			powers[k] = pow2(k)
		}
		counts, err := c.eng.MultiShot(powers, shots)
		if err != nil {
			return nil, err
		}
		list := make([]uint64, 0, shots)
		for key, n := range counts {
			g := globalize(key, c.qubits)
			for range n {
				list = append(list, g)
			}
		}
		u.rng.Shuffle(len(list), func(a, b int) { list[a], list[b] = list[b], list[a] })
		rows[ci] = list
	}
	out := make(map[uint64]int)
	for s := range shots {
		var idx uint64
		for ci := range rows {
			idx |= rows[ci][s]
		}
		out[packPowers(idx, qPowers)]++
	}
	return out, nil
}

type obsPart struct {
	c  *cluster
	qs []int
	ps []Pauli
}

func (u *unitEngine) obsParts(qs []int, paulis []Pauli) []obsPart {
	var parts []obsPart
	for k, q := range qs {
		c, li := u.find(q)
		var pt *obsPart
		for i := range parts {
			if parts[i].c == c {
				pt = &parts[i]
				break
			}
		}
		if pt == nil {
			parts = append(parts, obsPart{c: c})
			pt = &parts[len(parts)-1]
		}
		pt.qs = append(pt.qs, li)
		pt.ps = append(pt.ps, paulis[k])
	}
	return parts
}

func (u *unitEngine) ExpectationPauli(qs []int, paulis []Pauli) (float64, error) {
	e := 1.0
	for _, pt := range u.obsParts(qs, paulis) {
		v, err := pt.c.eng.ExpectationPauli(pt.qs, pt.ps)
		if err != nil {
			return 0, err
		}
		e *= v
	}
	return e, nil
}

func (u *unitEngine) VariancePauli(qs []int, paulis []Pauli) (float64, error) {
	// For a product state <P^2> factorizes like <P> does.
	sq, esq := 1.0, 1.0
	for _, pt := range u.obsParts(qs, paulis) {
		e, err := pt.c.eng.ExpectationPauli(pt.qs, pt.ps)
		if err != nil {
			return 0, err
		}
		v, err := pt.c.eng.VariancePauli(pt.qs, pt.ps)
		if err != nil {
			return 0, err
		}
		sq *= v + e*e
		esq *= e * e
	}
	return sq - esq, nil
}

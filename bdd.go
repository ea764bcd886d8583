package qregsim

import (
	"fmt"
	"math"
	"math/cmplx"
	"math/rand/v2"
	"slices"
)

// bddEps buckets edge weights for hash-consing; weights closer than this are
// the same edge.
const bddEps = 1e-12

// bddEdge is a weighted pointer into the diagram. A nil node is the
// terminal: the accumulated weight is the amplitude. The zero edge has a nil
// node and weight 0 and stands for a zero subvector of any width.
type bddEdge struct {
	w Complex
	n *bddNode
}

// bddNode branches on qubit q. Diagrams keep full levels: children of a
// level-q node sit at level q-1, terminal below level 0. Nodes are
// hash-consed and immutable, which lets the per-node caches live for the
// engine's lifetime.
type bddNode struct {
	q  int
	lo bddEdge
	hi bddEdge
}

type nodeKey struct {
	q        int
	lo, hi   *bddNode
	low, hiw [2]int64
}

type addKey struct {
	xn, yn *bddNode
	xw, yw [2]int64
}

type ipKey struct {
	a, b *bddNode
}

// bddEngine stores the state as a decision diagram with complex edge
// weights. Product-heavy and stabilizer-like states stay polynomial; fully
// generic states degrade to dense-equivalent node counts.
type bddEngine struct {
	root  bddEdge
	n     int
	rng   *rand.Rand
	table map[nodeKey]*bddNode
	nrm   map[*bddNode]float64
	adds  map[addKey]bddEdge
	ips   map[ipKey]Complex
}

func newBDDEngine(qubits int, rng *rand.Rand) (*bddEngine, error) {
	if qubits > MaxQubits {
		return nil, fmt.Errorf("%w: %d qubits", ErrCapacity, qubits)
	}
	b := &bddEngine{
		rng:   rng,
		table: make(map[nodeKey]*bddNode),
		nrm:   make(map[*bddNode]float64),
		adds:  make(map[addKey]bddEdge),
		ips:   make(map[ipKey]Complex),
	}
	b.root = bddEdge{w: 1}
	for lvl := range qubits {
		b.root = b.makeNode(lvl, b.root, bddEdge{})
	}
	b.n = qubits
	return b, nil
}

func (b *bddEngine) QubitCount() int   { return b.n }
func (b *bddEngine) MaxQPower() uint64 { return uint64(1) << b.n }

func isZeroW(w Complex) bool {
	return real(w)*real(w)+imag(w)*imag(w) < bddEps*bddEps
}

func isZeroE(e bddEdge) bool { return e.n == nil && isZeroW(e.w) }

func scaleEdge(e bddEdge, w Complex) bddEdge {
	if isZeroE(e) || isZeroW(w) {
		return bddEdge{}
	}
	return bddEdge{e.w * w, e.n}
}

func roundW(w Complex) [2]int64 {
	return [2]int64{
		int64(math.Round(real(w) / bddEps)),
		int64(math.Round(imag(w) / bddEps)),
	}
}

// makeNode normalizes a child pair (first nonzero child weight becomes 1,
// the factor moves to the incoming edge) and hash-conses the node.
func (b *bddEngine) makeNode(q int, lo, hi bddEdge) bddEdge {
	if isZeroW(lo.w) {
		lo = bddEdge{}
	}
	if isZeroW(hi.w) {
		hi = bddEdge{}
	}
	if isZeroE(lo) && isZeroE(hi) {
		return bddEdge{}
	}
	var top Complex
	if !isZeroE(lo) {
		top = lo.w
		lo.w = 1
		hi.w /= top
		if isZeroW(hi.w) {
			hi = bddEdge{}
		}
	} else {
		top = hi.w
		hi.w = 1
	}
	key := nodeKey{q, lo.n, hi.n, roundW(lo.w), roundW(hi.w)}
	n, ok := b.table[key]
	if !ok {
		n = &bddNode{q, lo, hi}
		b.table[key] = n
	}
	return bddEdge{top, n}
}

func (b *bddEngine) add(x, y bddEdge) bddEdge {
	if isZeroE(x) {
		return y
	}
	if isZeroE(y) {
		return x
	}
	if x.n == nil && y.n == nil {
		return bddEdge{x.w + y.w, nil}
	}
	key := addKey{x.n, y.n, roundW(x.w), roundW(y.w)}
	if r, ok := b.adds[key]; ok {
		return r
	}
	lo := b.add(scaleEdge(x.n.lo, x.w), scaleEdge(y.n.lo, y.w))
	hi := b.add(scaleEdge(x.n.hi, x.w), scaleEdge(y.n.hi, y.w))
	r := b.makeNode(x.n.q, lo, hi)
	b.adds[key] = r
	return r
}

// norm2 is the squared norm of a unit-weight subtree.
func (b *bddEngine) norm2(n *bddNode) float64 {
	if n == nil {
		return 1
	}
	if v, ok := b.nrm[n]; ok {
		return v
	}
	v := probAmp(n.lo.w)*b.norm2(n.lo.n) + probAmp(n.hi.w)*b.norm2(n.hi.n)
	b.nrm[n] = v
	return v
}

// mtrxApply carries one gate application down the diagram. Controls at a
// level select the branch to transform; below-target controls are handled by
// splitting each target child into its satisfying and spectating parts.
type mtrxApply struct {
	b            *bddEngine
	m            Mtrx2
	t            int
	cmask, cwant uint64
	lowest       int
	memo         map[*bddNode]bddEdge
}

func (b *bddEngine) applyMtrx(e bddEdge, m Mtrx2, t int, controls []int, perm uint64) bddEdge {
	cmask, cwant := ctrlBits(controls, perm)
	lowest := t
	for _, c := range controls {
		lowest = min(lowest, c)
	}
	a := &mtrxApply{b: b, m: m, t: t, cmask: cmask, cwant: cwant, lowest: lowest,
		memo: make(map[*bddNode]bddEdge)}
	return a.edge(e)
}

func (a *mtrxApply) edge(e bddEdge) bddEdge {
	if e.n == nil || e.n.q < a.lowest {
		return e
	}
	if r, ok := a.memo[e.n]; ok {
		return scaleEdge(r, e.w)
	}
	n := e.n
	lvl := n.q
	var lo, hi bddEdge
	switch {
	case a.cmask&pow2(lvl) != 0:
		if a.cwant&pow2(lvl) != 0 {
			lo, hi = n.lo, a.edge(n.hi)
		} else {
			lo, hi = a.edge(n.lo), n.hi
		}
	case lvl == a.t:
		slo, shi := n.lo, n.hi
		var ulo, uhi bddEdge
		if a.cmask&(pow2(lvl)-1) != 0 {
			slo = a.b.filter(n.lo, a.cmask, a.cwant)
			shi = a.b.filter(n.hi, a.cmask, a.cwant)
			ulo = a.b.add(n.lo, scaleEdge(slo, -1))
			uhi = a.b.add(n.hi, scaleEdge(shi, -1))
		}
		lo = a.b.add(ulo, a.b.add(scaleEdge(slo, a.m[0]), scaleEdge(shi, a.m[1])))
		hi = a.b.add(uhi, a.b.add(scaleEdge(slo, a.m[2]), scaleEdge(shi, a.m[3])))
	default:
		lo, hi = a.edge(n.lo), a.edge(n.hi)
	}
	r := a.b.makeNode(lvl, lo, hi)
	a.memo[n] = r
	return scaleEdge(r, e.w)
}

// filter keeps the paths satisfying every control at or below the edge's
// level, zeroing the rest.
func (b *bddEngine) filter(e bddEdge, cmask, cwant uint64) bddEdge {
	if e.n == nil {
		return e
	}
	lvl := e.n.q
	if cmask&(pow2(lvl+1)-1) == 0 {
		return e
	}
	var lo, hi bddEdge
	if cmask&pow2(lvl) != 0 {
		if cwant&pow2(lvl) != 0 {
			hi = b.filter(e.n.hi, cmask, cwant)
		} else {
			lo = b.filter(e.n.lo, cmask, cwant)
		}
	} else {
		lo = b.filter(e.n.lo, cmask, cwant)
		hi = b.filter(e.n.hi, cmask, cwant)
	}
	return scaleEdge(b.makeNode(lvl, lo, hi), e.w)
}

func (b *bddEngine) Allocate(count int) error {
	if count <= 0 {
		return nil
	}
	if b.n+count > MaxQubits {
		return fmt.Errorf("%w: %d qubits", ErrCapacity, b.n+count)
	}
	for range count {
		b.root = b.makeNode(b.n, b.root, bddEdge{})
		b.n++
	}
	return nil
}

func (b *bddEngine) Dispose(q int) error {
	p, err := b.Prob(q)
	if err != nil {
		return err
	}
	val := p >= 0.5
	b.root = b.contract(b.root, q, val, make(map[*bddNode]bddEdge))
	b.n--
	if t := probAmp(b.root.w) * b.norm2(b.root.n); t > 0 {
		b.root.w /= complex(math.Sqrt(t), 0)
	}
	return nil
}

// contract drops level q, keeping the val branch and shifting levels above
// down by one.
func (b *bddEngine) contract(e bddEdge, q int, val bool, memo map[*bddNode]bddEdge) bddEdge {
	if e.n == nil {
		return e
	}
	n := e.n
	if n.q == q {
		br := n.lo
		if val {
			br = n.hi
		}
		return scaleEdge(br, e.w)
	}
	if r, ok := memo[n]; ok {
		return scaleEdge(r, e.w)
	}
	lo := b.contract(n.lo, q, val, memo)
	hi := b.contract(n.hi, q, val, memo)
	r := b.makeNode(n.q-1, lo, hi)
	memo[n] = r
	return scaleEdge(r, e.w)
}

func (b *bddEngine) Compose(o Engine) error {
	other, ok := o.(*bddEngine)
	if !ok {
		return fmt.Errorf("compose across representations: %T", o)
	}
	if b.n+other.n > MaxQubits {
		return fmt.Errorf("%w: %d qubits", ErrCapacity, b.n+other.n)
	}
	b.root = b.graft(other.root, b.root, b.n, make(map[*bddNode]bddEdge))
	b.n += other.n
	return nil
}

// graft re-conses the other diagram into this table, shifted up by offset,
// with our root replacing its terminal.
func (b *bddEngine) graft(e, base bddEdge, offset int, memo map[*bddNode]bddEdge) bddEdge {
	if e.n == nil {
		if isZeroW(e.w) {
			return bddEdge{}
		}
		return scaleEdge(base, e.w)
	}
	if r, ok := memo[e.n]; ok {
		return scaleEdge(r, e.w)
	}
	lo := b.graft(e.n.lo, base, offset, memo)
	hi := b.graft(e.n.hi, base, offset, memo)
	r := b.makeNode(e.n.q+offset, lo, hi)
	memo[e.n] = r
	return scaleEdge(r, e.w)
}

func (b *bddEngine) Mtrx(m Mtrx2, q int) error {
	b.root = b.applyMtrx(b.root, m, q, nil, 0)
	return nil
}

func (b *bddEngine) Phase(tl, br Complex, q int) error {
	b.root = b.applyMtrx(b.root, Mtrx2{tl, 0, 0, br}, q, nil, 0)
	return nil
}

func (b *bddEngine) UCMtrx(controls []int, m Mtrx2, q int, perm uint64) error {
	b.root = b.applyMtrx(b.root, m, q, controls, perm)
	return nil
}

func (b *bddEngine) UCPhase(controls []int, tl, br Complex, q int, perm uint64) error {
	b.root = b.applyMtrx(b.root, Mtrx2{tl, 0, 0, br}, q, controls, perm)
	return nil
}

func (b *bddEngine) XMask(mask uint64) error {
	for q := 0; mask != 0; q++ {
		if mask&1 != 0 {
			b.root = b.applyMtrx(b.root, mtrxX, q, nil, 0)
		}
		mask >>= 1
	}
	return nil
}

func (b *bddEngine) YMask(mask uint64) error {
	for q := 0; mask != 0; q++ {
		if mask&1 != 0 {
			b.root = b.applyMtrx(b.root, mtrxY, q, nil, 0)
		}
		mask >>= 1
	}
	return nil
}

func (b *bddEngine) ZMask(mask uint64) error {
	for q := 0; mask != 0; q++ {
		if mask&1 != 0 {
			b.root = b.applyMtrx(b.root, mtrxZ, q, nil, 0)
		}
		mask >>= 1
	}
	return nil
}

func (b *bddEngine) Swap(a, q int) error {
	if a == q {
		return nil
	}
	// Three alternating CNOTs.
	if err := b.UCMtrx([]int{a}, mtrxX, q, 1); err != nil {
		return err
	}
	if err := b.UCMtrx([]int{q}, mtrxX, a, 1); err != nil {
		return err
	}
	return b.UCMtrx([]int{a}, mtrxX, q, 1)
}

func (b *bddEngine) CSwap(controls []int, x, y int, perm uint64) error {
	if x == y {
		return nil
	}
	cx := append(slices.Clone(controls), x)
	cy := append(slices.Clone(controls), y)
	p := perm | pow2(len(controls))
	if err := b.UCMtrx(cx, mtrxX, y, p); err != nil {
		return err
	}
	if err := b.UCMtrx(cy, mtrxX, x, p); err != nil {
		return err
	}
	return b.UCMtrx(cx, mtrxX, y, p)
}

func (b *bddEngine) Prob(q int) (float64, error) {
	return probAmp(b.root.w) * b.probBit(b.root.n, q, make(map[*bddNode]float64)), nil
}

func (b *bddEngine) probBit(n *bddNode, q int, memo map[*bddNode]float64) float64 {
	if n == nil {
		return 0
	}
	if n.q == q {
		return probAmp(n.hi.w) * b.norm2(n.hi.n)
	}
	if v, ok := memo[n]; ok {
		return v
	}
	v := probAmp(n.lo.w)*b.probBit(n.lo.n, q, memo) +
		probAmp(n.hi.w)*b.probBit(n.hi.n, q, memo)
	memo[n] = v
	return v
}

func (b *bddEngine) ProbAll() ([]float64, error) {
	out := make([]float64, b.MaxQPower())
	b.fill(b.root, 0, func(i uint64, w Complex) { out[i] = probAmp(w) })
	return out, nil
}

func (b *bddEngine) ProbMask(qs []int) ([]float64, error) {
	out := make([]float64, uint64(1)<<len(qs))
	b.fill(b.root, 0, func(i uint64, w Complex) { out[subIndex(i, qs)] += probAmp(w) })
	return out, nil
}

func (b *bddEngine) Amplitudes() ([]Complex, error) {
	out := make([]Complex, b.MaxQPower())
	b.fill(b.root, 0, func(i uint64, w Complex) { out[i] = w })
	return out, nil
}

func (b *bddEngine) fill(e bddEdge, base uint64, emit func(i uint64, w Complex)) {
	if isZeroE(e) {
		return
	}
	if e.n == nil {
		emit(base, e.w)
		return
	}
	b.fill(scaleEdge(e.n.lo, e.w), base, emit)
	b.fill(scaleEdge(e.n.hi, e.w), base|pow2(e.n.q), emit)
}

// project zeroes the non-matching branch at level q.
func (b *bddEngine) project(e bddEdge, q int, val bool, memo map[*bddNode]bddEdge) bddEdge {
	if e.n == nil {
		return e
	}
	n := e.n
	if n.q == q {
		lo, hi := n.lo, bddEdge{}
		if val {
			lo, hi = bddEdge{}, n.hi
		}
		return scaleEdge(b.makeNode(q, lo, hi), e.w)
	}
	if r, ok := memo[n]; ok {
		return scaleEdge(r, e.w)
	}
	lo := b.project(n.lo, q, val, memo)
	hi := b.project(n.hi, q, val, memo)
	r := b.makeNode(n.q, lo, hi)
	memo[n] = r
	return scaleEdge(r, e.w)
}

func (b *bddEngine) collapse(q int, val bool, p float64) {
	b.root = b.project(b.root, q, val, make(map[*bddNode]bddEdge))
	if p > 0 {
		b.root.w /= complex(math.Sqrt(p), 0)
	}
}

func (b *bddEngine) M(q int) (bool, error) {
	p1, err := b.Prob(q)
	if err != nil {
		return false, err
	}
	val := b.rng.Float64() < p1
	p := p1
	if !val {
		p = 1 - p1
	}
	b.collapse(q, val, p)
	return val, nil
}

func (b *bddEngine) ForceM(q int, result bool) (bool, error) {
	p1, err := b.Prob(q)
	if err != nil {
		return false, err
	}
	p := p1
	if !result {
		p = 1 - p1
	}
	if p < 1e-12 {
		return false, fmt.Errorf("%w: qubit %d to %t", ErrPostselect, q, result)
	}
	b.collapse(q, result, p)
	return result, nil
}

// sampleIndex draws one basis index by walking the diagram with conditional
// branch probabilities.
func (b *bddEngine) sampleIndex() uint64 {
	var idx uint64
	cur := b.root
	for cur.n != nil {
		n := cur.n
		p0 := probAmp(n.lo.w) * b.norm2(n.lo.n)
		p1 := probAmp(n.hi.w) * b.norm2(n.hi.n)
		if b.rng.Float64()*(p0+p1) < p1 {
			idx |= pow2(n.q)
			cur = n.hi
		} else {
			cur = n.lo
		}
	}
	return idx
}

func (b *bddEngine) MAll() (uint64, error) {
	idx := b.sampleIndex()
	e := bddEdge{w: 1}
	for lvl := range b.n {
		if idx&pow2(lvl) != 0 {
			e = b.makeNode(lvl, bddEdge{}, e)
		} else {
			e = b.makeNode(lvl, e, bddEdge{})
		}
	}
	b.root = e
	return idx, nil
}

func (b *bddEngine) MultiShot(qPowers []uint64, shots int) (map[uint64]int, error) {
	out := make(map[uint64]int)
	for range shots {
		out[packPowers(b.sampleIndex(), qPowers)]++
	}
	return out, nil
}

// ip is the inner product <x|y> over unit-weight nodes, cached on the node
// pair.
func (b *bddEngine) ip(x, y bddEdge) Complex {
	if isZeroW(x.w) || isZeroW(y.w) {
		return 0
	}
	return cmplx.Conj(x.w) * y.w * b.ipNode(x.n, y.n)
}

func (b *bddEngine) ipNode(x, y *bddNode) Complex {
	if x == nil || y == nil {
		return 1
	}
	key := ipKey{x, y}
	if v, ok := b.ips[key]; ok {
		return v
	}
	v := b.ip(x.lo, y.lo) + b.ip(x.hi, y.hi)
	b.ips[key] = v
	return v
}

func (b *bddEngine) pauliEdge(qs []int, paulis []Pauli) bddEdge {
	phi := b.root
	for k, q := range qs {
		switch paulis[k] {
		case PauliX:
			phi = b.applyMtrx(phi, mtrxX, q, nil, 0)
		case PauliY:
			phi = b.applyMtrx(phi, mtrxY, q, nil, 0)
		case PauliZ:
			phi = b.applyMtrx(phi, mtrxZ, q, nil, 0)
		}
	}
	return phi
}

func (b *bddEngine) ExpectationPauli(qs []int, paulis []Pauli) (float64, error) {
	return real(b.ip(b.root, b.pauliEdge(qs, paulis))), nil
}

func (b *bddEngine) VariancePauli(qs []int, paulis []Pauli) (float64, error) {
	phi := b.pauliEdge(qs, paulis)
	e := real(b.ip(b.root, phi))
	phi2 := phi
	for k, q := range qs {
		switch paulis[k] {
		case PauliX:
			phi2 = b.applyMtrx(phi2, mtrxX, q, nil, 0)
		case PauliY:
			phi2 = b.applyMtrx(phi2, mtrxY, q, nil, 0)
		case PauliZ:
			phi2 = b.applyMtrx(phi2, mtrxZ, q, nil, 0)
		}
	}
	return real(b.ip(b.root, phi2)) - e*e, nil
}

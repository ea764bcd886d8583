package qregsim

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/charmbracelet/log"
)

type cliffOp int

const (
	cliffI cliffOp = iota
	cliffX
	cliffY
	cliffZ
	cliffH
	cliffS
	cliffInvS
	cliffSqrtX
	cliffInvSqrtX
)

// classifyMtrx matches a single-qubit matrix against the Clifford set, up to
// global phase. Only valid for uncontrolled application: under a control the
// phase is physical.
func classifyMtrx(m Mtrx2) (cliffOp, bool) {
	if m.IsDiagonal() {
		return classifyPhase(m[0], m[3])
	}
	table := []struct {
		op cliffOp
		m  Mtrx2
	}{
		{cliffX, mtrxX},
		{cliffY, mtrxY},
		{cliffH, mtrxH},
		{cliffSqrtX, mtrxSqrtX},
		{cliffInvSqrtX, mtrxInvSqrtX},
	}
	for _, c := range table {
		if _, ok := sameUpToPhase(m, c.m); ok {
			return c.op, true
		}
	}
	return 0, false
}

func classifyPhase(tl, br Complex) (cliffOp, bool) {
	if approxEq(tl, 0) || approxEq(br, 0) {
		return 0, false
	}
	ratio := br / tl
	switch {
	case approxEq(ratio, 1):
		return cliffI, true
	case approxEq(ratio, 1i):
		return cliffS, true
	case approxEq(ratio, -1):
		return cliffZ, true
	case approxEq(ratio, -1i):
		return cliffInvS, true
	}
	return 0, false
}

// hybridEngine keeps a stabilizer tableau and an operation journal while the
// circuit stays Clifford, and switches permanently to the inner
// representation (journal replay) at the first operation the tableau cannot
// express. Dense reads on a live tableau replay into a throwaway inner
// engine instead of giving the tableau up.
//
// External qubit indices map to tableau columns through cols; released
// columns are parked in |0> and reused by later allocations, so column count
// only grows when the pool is empty.
type hybridEngine struct {
	tab   *stabilizerTableau
	cols  []int
	free  []int
	j     *journal
	inner engineFactory
	base  int
	eng   Engine
	rng   *rand.Rand
	lg    *log.Logger
}

func newHybridEngine(qubits int, inner engineFactory, opts Options, rng *rand.Rand, lg *log.Logger) (*hybridEngine, error) {
	if qubits > MaxQubits {
		return nil, fmt.Errorf("%w: %d qubits", ErrCapacity, qubits)
	}
	cols := make([]int, qubits)
	for i := range cols {
		cols[i] = i
	}
	return &hybridEngine{
		tab:   newStabilizerTableau(qubits, rng),
		cols:  cols,
		j:     newJournal(false),
		inner: inner,
		base:  qubits,
		rng:   rng,
		lg:    lg,
	}, nil
}

func (h *hybridEngine) QubitCount() int {
	if h.eng != nil {
		return h.eng.QubitCount()
	}
	return len(h.cols)
}

func (h *hybridEngine) MaxQPower() uint64 { return uint64(1) << h.QubitCount() }

// switchToEngine replays the journal into the inner representation and drops
// the tableau for good.
func (h *hybridEngine) switchToEngine() error {
	eng, err := h.inner(h.base)
	if err != nil {
		return err
	}
	if err := h.j.replay(eng); err != nil {
		return err
	}
	h.lg.Debug("tableau cannot express operation, switching representation",
		"qubits", len(h.cols), "ops", len(h.j.ops))
	h.eng = eng
	h.tab = nil
	h.cols = nil
	h.free = nil
	h.j = nil
	return nil
}

// temp materializes a throwaway inner engine for dense reads while the
// tableau stays authoritative.
func (h *hybridEngine) temp() (Engine, error) {
	eng, err := h.inner(h.base)
	if err != nil {
		return nil, err
	}
	if err := h.j.replay(eng); err != nil {
		return nil, err
	}
	return eng, nil
}

func (h *hybridEngine) applyCliff(op cliffOp, col int) {
	switch op {
	case cliffX:
		h.tab.xGate(col)
	case cliffY:
		h.tab.yGate(col)
	case cliffZ:
		h.tab.zGate(col)
	case cliffH:
		h.tab.hGate(col)
	case cliffS:
		h.tab.sGate(col)
	case cliffInvS:
		h.tab.invSGate(col)
	case cliffSqrtX:
		h.tab.hGate(col)
		h.tab.sGate(col)
		h.tab.hGate(col)
	case cliffInvSqrtX:
		h.tab.hGate(col)
		h.tab.invSGate(col)
		h.tab.hGate(col)
	}
}

func (h *hybridEngine) Allocate(count int) error {
	if h.eng != nil {
		return h.eng.Allocate(count)
	}
	if count <= 0 {
		return nil
	}
	grow := count - len(h.free)
	if grow > 0 && h.tab.n+grow > MaxQubits {
		return fmt.Errorf("%w: %d columns", ErrCapacity, h.tab.n+grow)
	}
	for range count {
		var col int
		if len(h.free) > 0 {
			col = h.free[len(h.free)-1]
			h.free = h.free[:len(h.free)-1]
		} else {
			col = h.tab.allocate()
		}
		h.cols = append(h.cols, col)
	}
	h.j.recordAllocate(count)
	return nil
}

func (h *hybridEngine) Dispose(q int) error {
	if h.eng != nil {
		return h.eng.Dispose(q)
	}
	col := h.cols[q]
	// Park the column in |0> for reuse.
	if out, _ := h.tab.measure(col, false, false); out {
		h.tab.xGate(col)
	}
	h.free = append(h.free, col)
	h.cols = slices.Delete(h.cols, q, q+1)
	h.j.recordDispose(q)
	return nil
}

func (h *hybridEngine) Compose(o Engine) error {
	other, ok := o.(*hybridEngine)
	if !ok {
		return fmt.Errorf("compose across representations: %T", o)
	}
	if h.eng == nil && other.eng == nil {
		offset := h.tab.n
		ext := len(h.cols)
		h.tab.compose(other.tab)
		for _, c := range other.cols {
			h.cols = append(h.cols, c+offset)
		}
		for _, c := range other.free {
			h.free = append(h.free, c+offset)
		}
		h.j.push(opRecord{kind: opAllocate, count: other.base})
		other.j.rebase(ext)
		h.j.ops = append(h.j.ops, other.j.ops...)
		h.j.last = make(map[int]int)
		return nil
	}
	if h.eng == nil {
		if err := h.switchToEngine(); err != nil {
			return err
		}
	}
	if other.eng == nil {
		if err := other.switchToEngine(); err != nil {
			return err
		}
	}
	return h.eng.Compose(other.eng)
}

func (h *hybridEngine) Mtrx(m Mtrx2, q int) error {
	if h.eng != nil {
		return h.eng.Mtrx(m, q)
	}
	op, ok := classifyMtrx(m)
	if !ok {
		if err := h.switchToEngine(); err != nil {
			return err
		}
		return h.eng.Mtrx(m, q)
	}
	h.j.recordMtrx(m, q)
	h.applyCliff(op, h.cols[q])
	return nil
}

func (h *hybridEngine) Phase(tl, br Complex, q int) error {
	if h.eng != nil {
		return h.eng.Phase(tl, br, q)
	}
	op, ok := classifyPhase(tl, br)
	if !ok {
		if err := h.switchToEngine(); err != nil {
			return err
		}
		return h.eng.Phase(tl, br, q)
	}
	h.j.recordPhase(tl, br, q)
	h.applyCliff(op, h.cols[q])
	return nil
}

// ctrlGate is a tableau two-qubit gate reachable from a single-control
// primitive.
type ctrlGate func(t *stabilizerTableau, c, tq int)

// classifyCtrl matches an exact controlled matrix: only CNOT, CY, CZ
// survive. No phase freedom here.
func classifyCtrl(m Mtrx2) (ctrlGate, bool) {
	eq := func(a, b Mtrx2) bool {
		for i := range a {
			if !approxEq(a[i], b[i]) {
				return false
			}
		}
		return true
	}
	switch {
	case eq(m, mtrxX):
		return (*stabilizerTableau).cnot, true
	case eq(m, mtrxY):
		return (*stabilizerTableau).cy, true
	case eq(m, mtrxZ):
		return (*stabilizerTableau).cz, true
	}
	return nil, false
}

// sandwich runs fn with X flips around controls whose permutation bit wants
// a false value.
func (h *hybridEngine) sandwich(controls []int, perm uint64, fn func()) {
	for i, c := range controls {
		if perm&pow2(i) == 0 {
			h.tab.xGate(h.cols[c])
		}
	}
	fn()
	for i, c := range controls {
		if perm&pow2(i) == 0 {
			h.tab.xGate(h.cols[c])
		}
	}
}

func (h *hybridEngine) UCMtrx(controls []int, m Mtrx2, q int, perm uint64) error {
	if h.eng != nil {
		return h.eng.UCMtrx(controls, m, q, perm)
	}
	if len(controls) == 0 {
		return h.Mtrx(m, q)
	}
	if len(controls) == 1 {
		if gate, ok := classifyCtrl(m); ok {
			h.j.recordUCMtrx(controls, m, q, perm)
			h.sandwich(controls, perm, func() {
				gate(h.tab, h.cols[controls[0]], h.cols[q])
			})
			return nil
		}
	}
	if err := h.switchToEngine(); err != nil {
		return err
	}
	return h.eng.UCMtrx(controls, m, q, perm)
}

func (h *hybridEngine) UCPhase(controls []int, tl, br Complex, q int, perm uint64) error {
	if h.eng != nil {
		return h.eng.UCPhase(controls, tl, br, q, perm)
	}
	if len(controls) == 0 {
		return h.Phase(tl, br, q)
	}
	if len(controls) == 1 && isPM1(tl) && isPM1(br) {
		h.j.recordUCPhase(controls, tl, br, q, perm)
		h.sandwich(controls, perm, func() {
			c, t := h.cols[controls[0]], h.cols[q]
			negTL, negBR := approxEq(tl, -1), approxEq(br, -1)
			switch {
			case !negTL && !negBR:
				// identity
			case !negTL && negBR:
				h.tab.cz(c, t)
			case negTL && !negBR:
				h.tab.zGate(c)
				h.tab.cz(c, t)
			default:
				h.tab.zGate(c)
			}
		})
		return nil
	}
	if err := h.switchToEngine(); err != nil {
		return err
	}
	return h.eng.UCPhase(controls, tl, br, q, perm)
}

func isPM1(v Complex) bool {
	return approxEq(v, 1) || approxEq(v, -1)
}

func (h *hybridEngine) XMask(mask uint64) error {
	if h.eng != nil {
		return h.eng.XMask(mask)
	}
	h.j.recordMask(opXMask, mask)
	for q := 0; mask != 0; q++ {
		if mask&1 != 0 {
			h.tab.xGate(h.cols[q])
		}
		mask >>= 1
	}
	return nil
}

func (h *hybridEngine) YMask(mask uint64) error {
	if h.eng != nil {
		return h.eng.YMask(mask)
	}
	h.j.recordMask(opYMask, mask)
	for q := 0; mask != 0; q++ {
		if mask&1 != 0 {
			h.tab.yGate(h.cols[q])
		}
		mask >>= 1
	}
	return nil
}

func (h *hybridEngine) ZMask(mask uint64) error {
	if h.eng != nil {
		return h.eng.ZMask(mask)
	}
	h.j.recordMask(opZMask, mask)
	for q := 0; mask != 0; q++ {
		if mask&1 != 0 {
			h.tab.zGate(h.cols[q])
		}
		mask >>= 1
	}
	return nil
}

func (h *hybridEngine) Swap(a, b int) error {
	if h.eng != nil {
		return h.eng.Swap(a, b)
	}
	h.j.recordSwap(a, b)
	h.cols[a], h.cols[b] = h.cols[b], h.cols[a]
	return nil
}

func (h *hybridEngine) CSwap(controls []int, a, b int, perm uint64) error {
	if h.eng != nil {
		return h.eng.CSwap(controls, a, b, perm)
	}
	if len(controls) == 0 {
		return h.Swap(a, b)
	}
	if err := h.switchToEngine(); err != nil {
		return err
	}
	return h.eng.CSwap(controls, a, b, perm)
}

func (h *hybridEngine) Prob(q int) (float64, error) {
	if h.eng != nil {
		return h.eng.Prob(q)
	}
	return h.tab.prob(h.cols[q]), nil
}

func (h *hybridEngine) ProbAll() ([]float64, error) {
	if h.eng != nil {
		return h.eng.ProbAll()
	}
	eng, err := h.temp()
	if err != nil {
		return nil, err
	}
	return eng.ProbAll()
}

func (h *hybridEngine) ProbMask(qs []int) ([]float64, error) {
	if h.eng != nil {
		return h.eng.ProbMask(qs)
	}
	eng, err := h.temp()
	if err != nil {
		return nil, err
	}
	return eng.ProbMask(qs)
}

func (h *hybridEngine) Amplitudes() ([]Complex, error) {
	if h.eng != nil {
		return h.eng.Amplitudes()
	}
	eng, err := h.temp()
	if err != nil {
		return nil, err
	}
	return eng.Amplitudes()
}

func (h *hybridEngine) M(q int) (bool, error) {
	if h.eng != nil {
		return h.eng.M(q)
	}
	out, _ := h.tab.measure(h.cols[q], false, false)
	h.j.recordForceM(q, out)
	return out, nil
}

func (h *hybridEngine) ForceM(q int, result bool) (bool, error) {
	if h.eng != nil {
		return h.eng.ForceM(q, result)
	}
	out, ok := h.tab.measure(h.cols[q], true, result)
	if !ok {
		return out, fmt.Errorf("%w: qubit %d to %t", ErrPostselect, q, result)
	}
	h.j.recordForceM(q, out)
	return out, nil
}

func (h *hybridEngine) MAll() (uint64, error) {
	if h.eng != nil {
		return h.eng.MAll()
	}
	var idx uint64
	for q := range h.cols {
		out, _ := h.tab.measure(h.cols[q], false, false)
		h.j.recordForceM(q, out)
		if out {
			idx |= pow2(q)
		}
	}
	return idx, nil
}

func (h *hybridEngine) MultiShot(qPowers []uint64, shots int) (map[uint64]int, error) {
	if h.eng != nil {
		return h.eng.MultiShot(qPowers, shots)
	}
	counts := make(map[uint64]int)
	for range shots {
		c := h.tab.clone()
		var idx uint64
		for q := range h.cols {
			if out, _ := c.measure(h.cols[q], false, false); out {
				idx |= pow2(q)
			}
		}
		counts[packPowers(idx, qPowers)]++
	}
	return counts, nil
}

// pauliMasks translates an observable to tableau-column X/Z support.
func (h *hybridEngine) pauliMasks(qs []int, paulis []Pauli) (px, pz uint64) {
	for k, q := range qs {
		p := pow2(h.cols[q])
		switch paulis[k] {
		case PauliX:
			px |= p
		case PauliY:
			px |= p
			pz |= p
		case PauliZ:
			pz |= p
		}
	}
	return px, pz
}

func uniqueWires(qs []int) bool {
	seen := make(map[int]bool, len(qs))
	for _, q := range qs {
		if seen[q] {
			return false
		}
		seen[q] = true
	}
	return true
}

func (h *hybridEngine) ExpectationPauli(qs []int, paulis []Pauli) (float64, error) {
	if h.eng != nil {
		return h.eng.ExpectationPauli(qs, paulis)
	}
	px, pz := h.pauliMasks(qs, paulis)
	if px == 0 && pz == 0 {
		return 1, nil
	}
	if h.tab.anticommutesWith(px, pz) {
		return 0, nil
	}
	eng, err := h.temp()
	if err != nil {
		return 0, err
	}
	return eng.ExpectationPauli(qs, paulis)
}

func (h *hybridEngine) VariancePauli(qs []int, paulis []Pauli) (float64, error) {
	if h.eng != nil {
		return h.eng.VariancePauli(qs, paulis)
	}
	px, pz := h.pauliMasks(qs, paulis)
	if px == 0 && pz == 0 {
		return 0, nil
	}
	if uniqueWires(qs) && h.tab.anticommutesWith(px, pz) {
		// Pauli squared is identity, so the variance is 1 - 0^2.
		return 1, nil
	}
	eng, err := h.temp()
	if err != nil {
		return 0, err
	}
	return eng.VariancePauli(qs, paulis)
}

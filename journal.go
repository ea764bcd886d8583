package qregsim

import (
	"fmt"
	"strings"
)

type opKind int

const (
	opAllocate opKind = iota
	opDispose
	opMtrx
	opPhase
	opUCMtrx
	opUCPhase
	opXMask
	opYMask
	opZMask
	opSwap
	opCSwap
	opForceM
)

// opRecord is one primitive in a recorded program. Measurements carry the
// outcome they produced, so a replay reproduces the same trajectory.
type opRecord struct {
	kind     opKind
	q        int
	a, b     int
	controls []int
	perm     uint64
	mask     uint64
	m        Mtrx2
	tl, br   Complex
	count    int
	outcome  bool
}

// journal records primitives for deferred or repeated execution. With fuse
// set, consecutive uncontrolled single-qubit operations on the same target
// are multiplied together at append time, and products that reduce to a
// scalar become a plain phase.
type journal struct {
	ops  []opRecord
	last map[int]int // qubit -> index of the op that touched it last
	fuse bool
}

func newJournal(fuse bool) *journal {
	return &journal{last: make(map[int]int), fuse: fuse}
}

func (j *journal) touch(idx int, qs ...int) {
	for _, q := range qs {
		j.last[q] = idx
	}
}

func (j *journal) touchMask(idx int, mask uint64) {
	for q := 0; mask != 0; q++ {
		if mask&1 != 0 {
			j.last[q] = idx
		}
		mask >>= 1
	}
}

func (j *journal) push(r opRecord) int {
	j.ops = append(j.ops, r)
	return len(j.ops) - 1
}

// fusable returns the index of the previous op when it is an uncontrolled
// single-qubit gate on q and nothing else touched q since.
func (j *journal) fusable(q int) (int, bool) {
	idx, ok := j.last[q]
	if !ok || !j.fuse {
		return 0, false
	}
	r := &j.ops[idx]
	if r.q != q {
		return 0, false
	}
	if r.kind == opMtrx || r.kind == opPhase {
		return idx, true
	}
	return 0, false
}

func (r *opRecord) asMtrx() Mtrx2 {
	if r.kind == opPhase {
		return Mtrx2{r.tl, 0, 0, r.br}
	}
	return r.m
}

func (j *journal) recordMtrx(m Mtrx2, q int) {
	if idx, ok := j.fusable(q); ok {
		fused := m.Mul(j.ops[idx].asMtrx())
		j.replaceSingle(idx, fused, q)
		return
	}
	j.touch(j.push(opRecord{kind: opMtrx, q: q, m: m}), q)
}

func (j *journal) recordPhase(tl, br Complex, q int) {
	if idx, ok := j.fusable(q); ok {
		fused := Mtrx2{tl, 0, 0, br}.Mul(j.ops[idx].asMtrx())
		j.replaceSingle(idx, fused, q)
		return
	}
	j.touch(j.push(opRecord{kind: opPhase, q: q, tl: tl, br: br}), q)
}

// replaceSingle rewrites the op at idx with the fused product, reducing a
// diagonal to a phase record. The op slot is kept in place so indices in
// last stay valid.
func (j *journal) replaceSingle(idx int, m Mtrx2, q int) {
	if m.IsDiagonal() {
		j.ops[idx] = opRecord{kind: opPhase, q: q, tl: m[0], br: m[3]}
		return
	}
	j.ops[idx] = opRecord{kind: opMtrx, q: q, m: m}
}

func (j *journal) recordUCMtrx(controls []int, m Mtrx2, q int, perm uint64) {
	c := append([]int(nil), controls...)
	idx := j.push(opRecord{kind: opUCMtrx, q: q, controls: c, perm: perm, m: m})
	j.touch(idx, q)
	j.touch(idx, c...)
}

func (j *journal) recordUCPhase(controls []int, tl, br Complex, q int, perm uint64) {
	c := append([]int(nil), controls...)
	idx := j.push(opRecord{kind: opUCPhase, q: q, controls: c, perm: perm, tl: tl, br: br})
	j.touch(idx, q)
	j.touch(idx, c...)
}

func (j *journal) recordMask(kind opKind, mask uint64) {
	j.touchMask(j.push(opRecord{kind: kind, mask: mask}), mask)
}

func (j *journal) recordSwap(a, b int) {
	j.touch(j.push(opRecord{kind: opSwap, a: a, b: b}), a, b)
}

func (j *journal) recordCSwap(controls []int, a, b int, perm uint64) {
	c := append([]int(nil), controls...)
	idx := j.push(opRecord{kind: opCSwap, a: a, b: b, controls: c, perm: perm})
	j.touch(idx, a, b)
	j.touch(idx, c...)
}

func (j *journal) recordAllocate(count int) {
	j.push(opRecord{kind: opAllocate, count: count})
}

func (j *journal) recordDispose(q int) {
	// Indices above q shift down, invalidating adjacency bookkeeping.
	j.push(opRecord{kind: opDispose, q: q})
	j.last = make(map[int]int)
}

func (j *journal) recordForceM(q int, outcome bool) {
	j.touch(j.push(opRecord{kind: opForceM, q: q, outcome: outcome}), q)
}

// replay applies the recorded program to a fresh engine.
func (j *journal) replay(eng Engine) error {
	for i := range j.ops {
		r := &j.ops[i]
		var err error
		switch r.kind {
		case opAllocate:
			err = eng.Allocate(r.count)
		case opDispose:
			err = eng.Dispose(r.q)
		case opMtrx:
			err = eng.Mtrx(r.m, r.q)
		case opPhase:
			err = eng.Phase(r.tl, r.br, r.q)
		case opUCMtrx:
			err = eng.UCMtrx(r.controls, r.m, r.q, r.perm)
		case opUCPhase:
			err = eng.UCPhase(r.controls, r.tl, r.br, r.q, r.perm)
		case opXMask:
			err = eng.XMask(r.mask)
		case opYMask:
			err = eng.YMask(r.mask)
		case opZMask:
			err = eng.ZMask(r.mask)
		case opSwap:
			err = eng.Swap(r.a, r.b)
		case opCSwap:
			err = eng.CSwap(r.controls, r.a, r.b, r.perm)
		case opForceM:
			_, err = eng.ForceM(r.q, r.outcome)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// rebase shifts every qubit reference up by offset, for absorbing a journal
// into a wider register.
func (j *journal) rebase(offset int) {
	for i := range j.ops {
		r := &j.ops[i]
		r.q += offset
		r.a += offset
		r.b += offset
		r.mask <<= offset
		for k := range r.controls {
			r.controls[k] += offset
		}
	}
	last := make(map[int]int, len(j.last))
	for q, idx := range j.last {
		last[q+offset] = idx
	}
	j.last = last
}

func (j *journal) String() string {
	var sb strings.Builder
	for i := range j.ops {
		r := &j.ops[i]
		switch r.kind {
		case opAllocate:
			fmt.Fprintf(&sb, "alloc %d\n", r.count)
		case opDispose:
			fmt.Fprintf(&sb, "dispose q%d\n", r.q)
		case opMtrx:
			fmt.Fprintf(&sb, "mtrx q%d\n", r.q)
		case opPhase:
			fmt.Fprintf(&sb, "phase q%d\n", r.q)
		case opUCMtrx:
			fmt.Fprintf(&sb, "mtrx q%d c%v p%d\n", r.q, r.controls, r.perm)
		case opUCPhase:
			fmt.Fprintf(&sb, "phase q%d c%v p%d\n", r.q, r.controls, r.perm)
		case opXMask:
			fmt.Fprintf(&sb, "x 0b%b\n", r.mask)
		case opYMask:
			fmt.Fprintf(&sb, "y 0b%b\n", r.mask)
		case opZMask:
			fmt.Fprintf(&sb, "z 0b%b\n", r.mask)
		case opSwap:
			fmt.Fprintf(&sb, "swap q%d q%d\n", r.a, r.b)
		case opCSwap:
			fmt.Fprintf(&sb, "swap q%d q%d c%v p%d\n", r.a, r.b, r.controls, r.perm)
		case opForceM:
			fmt.Fprintf(&sb, "m q%d -> %t\n", r.q, r.outcome)
		}
	}
	return sb.String()
}

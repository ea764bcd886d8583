package qregsim

import (
	"math/rand/v2"
	"slices"
)

// stabRow is one tableau generator: Pauli X/Z support packed by column, plus
// a sign bit.
type stabRow struct {
	x, z uint64
	r    uint8
}

// stabilizerTableau is a CHP-style destabilizer/stabilizer tableau. Rows
// 0..n-1 are destabilizers, n..2n-1 stabilizers. It covers the Clifford
// subset with native measurement; the hybrid layer owns classification and
// fallback.
type stabilizerTableau struct {
	rows []stabRow
	n    int
	rng  *rand.Rand
}

func newStabilizerTableau(n int, rng *rand.Rand) *stabilizerTableau {
	t := &stabilizerTableau{rows: make([]stabRow, 2*n), n: n, rng: rng}
	for i := range n {
		t.rows[i].x = pow2(i)
		t.rows[n+i].z = pow2(i)
	}
	return t
}

func (t *stabilizerTableau) clone() *stabilizerTableau {
	return &stabilizerTableau{rows: slices.Clone(t.rows), n: t.n, rng: t.rng}
}

// allocate appends one fresh |0> column and its generator pair.
func (t *stabilizerTableau) allocate() int {
	col := t.n
	t.rows = slices.Insert(t.rows, t.n, stabRow{x: pow2(col)})
	t.rows = append(t.rows, stabRow{z: pow2(col)})
	t.n++
	return col
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// rowsumInto multiplies src into dst, tracking the sign mod 4.
func (t *stabilizerTableau) rowsumInto(dst *stabRow, src stabRow) {
	sum := 2*int(dst.r) + 2*int(src.r)
	for q := range t.n {
		p := pow2(q)
		x1, z1 := src.x&p, src.z&p
		x2, z2 := dst.x&p, dst.z&p
		switch {
		case x1 == 0 && z1 == 0:
		case x1 != 0 && z1 != 0:
			sum += b2i(z2 != 0) - b2i(x2 != 0)
		case x1 != 0:
			if z2 != 0 {
				sum += 2*b2i(x2 != 0) - 1
			}
		default:
			if x2 != 0 {
				sum += 1 - 2*b2i(z2 != 0)
			}
		}
	}
	dst.x ^= src.x
	dst.z ^= src.z
	if ((sum % 4) + 4) % 4 == 2 {
		dst.r = 1
	} else {
		dst.r = 0
	}
}

func (t *stabilizerTableau) rowsum(h, i int) {
	t.rowsumInto(&t.rows[h], t.rows[i])
}

func (t *stabilizerTableau) hGate(q int) {
	p := pow2(q)
	for i := range t.rows {
		row := &t.rows[i]
		if row.x&p != 0 && row.z&p != 0 {
			row.r ^= 1
		}
		xb, zb := row.x&p, row.z&p
		row.x = (row.x &^ p) | zb
		row.z = (row.z &^ p) | xb
	}
}

func (t *stabilizerTableau) sGate(q int) {
	p := pow2(q)
	for i := range t.rows {
		row := &t.rows[i]
		if row.x&p != 0 && row.z&p != 0 {
			row.r ^= 1
		}
		row.z ^= row.x & p
	}
}

func (t *stabilizerTableau) invSGate(q int) {
	t.sGate(q)
	t.sGate(q)
	t.sGate(q)
}

func (t *stabilizerTableau) xGate(q int) {
	p := pow2(q)
	for i := range t.rows {
		if t.rows[i].z&p != 0 {
			t.rows[i].r ^= 1
		}
	}
}

func (t *stabilizerTableau) yGate(q int) {
	p := pow2(q)
	for i := range t.rows {
		row := &t.rows[i]
		if (row.x&p != 0) != (row.z&p != 0) {
			row.r ^= 1
		}
	}
}

func (t *stabilizerTableau) zGate(q int) {
	p := pow2(q)
	for i := range t.rows {
		if t.rows[i].x&p != 0 {
			t.rows[i].r ^= 1
		}
	}
}

func (t *stabilizerTableau) cnot(c, tq int) {
	pc, pt := pow2(c), pow2(tq)
	for i := range t.rows {
		row := &t.rows[i]
		if row.x&pc != 0 && row.z&pt != 0 {
			xt := row.x&pt != 0
			zc := row.z&pc != 0
			if xt == zc {
				row.r ^= 1
			}
		}
		if row.x&pc != 0 {
			row.x ^= pt
		}
		if row.z&pt != 0 {
			row.z ^= pc
		}
	}
}

func (t *stabilizerTableau) cz(c, tq int) {
	t.hGate(tq)
	t.cnot(c, tq)
	t.hGate(tq)
}

func (t *stabilizerTableau) cy(c, tq int) {
	t.invSGate(tq)
	t.cnot(c, tq)
	t.sGate(tq)
}

func (t *stabilizerTableau) swap(a, b int) {
	t.cnot(a, b)
	t.cnot(b, a)
	t.cnot(a, b)
}

// randomAt returns a stabilizer row with X support on q, or -1 when the
// measurement outcome is determinate.
func (t *stabilizerTableau) randomAt(q int) int {
	p := pow2(q)
	for i := t.n; i < 2*t.n; i++ {
		if t.rows[i].x&p != 0 {
			return i
		}
	}
	return -1
}

// determinate computes the fixed outcome of measuring q. Caller must have
// checked randomAt(q) < 0.
func (t *stabilizerTableau) determinate(q int) bool {
	p := pow2(q)
	var scratch stabRow
	for i := range t.n {
		if t.rows[i].x&p != 0 {
			t.rowsumInto(&scratch, t.rows[i+t.n])
		}
	}
	return scratch.r == 1
}

// measure collapses column q. forced selects the outcome on the random
// branch; on the determinate branch a mismatch is reported.
func (t *stabilizerTableau) measure(q int, force bool, want bool) (bool, bool) {
	p := t.randomAt(q)
	if p < 0 {
		out := t.determinate(q)
		if force && out != want {
			return out, false
		}
		return out, true
	}
	pq := pow2(q)
	for i := range 2 * t.n {
		if i != p && t.rows[i].x&pq != 0 {
			t.rowsum(i, p)
		}
	}
	t.rows[p-t.n] = t.rows[p]
	out := t.rng.Uint64()&1 == 1
	if force {
		out = want
	}
	row := stabRow{z: pq}
	if out {
		row.r = 1
	}
	t.rows[p] = row
	return out, true
}

func (t *stabilizerTableau) prob(q int) float64 {
	if t.randomAt(q) >= 0 {
		return 0.5
	}
	if t.determinate(q) {
		return 1
	}
	return 0
}

// anticommutesWith reports whether any stabilizer row anticommutes with the
// Pauli product given by its X/Z support masks.
func (t *stabilizerTableau) anticommutesWith(px, pz uint64) bool {
	for i := t.n; i < 2*t.n; i++ {
		if (parity64(t.rows[i].x&pz) ^ parity64(t.rows[i].z&px)) == 1 {
			return true
		}
	}
	return false
}

func parity64(v uint64) int {
	v ^= v >> 32
	v ^= v >> 16
	v ^= v >> 8
	v ^= v >> 4
	v ^= v >> 2
	v ^= v >> 1
	return int(v & 1)
}

// compose absorbs another tableau as a block at the high columns.
func (t *stabilizerTableau) compose(o *stabilizerTableau) {
	n1, n2 := t.n, o.n
	rows := make([]stabRow, 0, 2*(n1+n2))
	for i := range n1 {
		rows = append(rows, t.rows[i])
	}
	for i := range n2 {
		r := o.rows[i]
		rows = append(rows, stabRow{x: r.x << n1, z: r.z << n1, r: r.r})
	}
	for i := range n1 {
		rows = append(rows, t.rows[n1+i])
	}
	for i := range n2 {
		r := o.rows[n2+i]
		rows = append(rows, stabRow{x: r.x << n1, z: r.z << n1, r: r.r})
	}
	t.rows = rows
	t.n = n1 + n2
}

package qregsim

import (
	"fmt"
	"math"
	"math/bits"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// pageQubits is the in-page register width: pages hold 2^pageQubits
// amplitudes once the register outgrows a single page.
const pageQubits = 12

// pagedEngine stores the amplitude array as fixed-size pages. Gates whose
// bits all fall inside a page run the dense kernels per page; higher bits
// pair pages up and combine them elementwise. Page work fans out across
// goroutines under the same flags as the dense engine.
type pagedEngine struct {
	pages    [][]Complex
	qubits   int
	pb       int
	rng      *rand.Rand
	parallel bool
	hybrid   bool
	maxMB    int
}

func newPagedEngine(qubits int, opts Options, rng *rand.Rand) (*pagedEngine, error) {
	if err := allocGuard(qubits, opts.MaxAllocMB); err != nil {
		return nil, err
	}
	pb := min(pageQubits, qubits)
	pages := make([][]Complex, uint64(1)<<(qubits-pb))
	for i := range pages {
		pages[i] = make([]Complex, uint64(1)<<pb)
	}
	pages[0][0] = 1
	return &pagedEngine{
		pages:    pages,
		qubits:   qubits,
		pb:       pb,
		rng:      rng,
		parallel: opts.GPU,
		hybrid:   opts.HybridCPUGPU,
		maxMB:    opts.MaxAllocMB,
	}, nil
}

func (p *pagedEngine) QubitCount() int   { return p.qubits }
func (p *pagedEngine) MaxQPower() uint64 { return uint64(1) << p.qubits }

func (p *pagedEngine) pageLen() uint64 { return uint64(1) << p.pb }

func (p *pagedEngine) at(i uint64) Complex {
	return p.pages[i>>p.pb][i&(p.pageLen()-1)]
}

func (p *pagedEngine) set(i uint64, v Complex) {
	p.pages[i>>p.pb][i&(p.pageLen()-1)] = v
}

func (p *pagedEngine) parallelNow() bool {
	if p.hybrid {
		return p.qubits >= hybridSwitchQubits
	}
	return p.parallel && p.qubits >= minParallelQubits
}

// runPages visits every page index. Pair kernels only write from the page
// that owns the pair, so page-level fan-out is race-free.
func (p *pagedEngine) runPages(fn func(pg uint64)) {
	n := uint64(len(p.pages))
	if !p.parallelNow() || n < 2 {
		for pg := range n {
			fn(pg)
		}
		return
	}
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for pg := range n {
		g.Go(func() error {
			fn(pg)
			return nil
		})
	}
	_ = g.Wait()
}

// splitMasks divides a full-index mask into its in-page and page-space
// parts.
func (p *pagedEngine) splitMasks(mask uint64) (in, page uint64) {
	return mask & (p.pageLen() - 1), mask >> p.pb
}

func (p *pagedEngine) Allocate(count int) error {
	if count <= 0 {
		return nil
	}
	if err := allocGuard(p.qubits+count, p.maxMB); err != nil {
		return err
	}
	for range count {
		if p.pb < pageQubits {
			next := make([]Complex, p.pageLen()*2)
			copy(next, p.pages[0])
			p.pages[0] = next
			p.pb++
		} else {
			for range len(p.pages) {
				p.pages = append(p.pages, make([]Complex, p.pageLen()))
			}
		}
		p.qubits++
	}
	return nil
}

func (p *pagedEngine) Dispose(q int) error {
	prob, _ := p.Prob(q)
	val := prob >= 0.5
	half, err := newPagedEngine(p.qubits-1, Options{MaxAllocMB: p.maxMB}, p.rng)
	if err != nil {
		return err
	}
	total := 0.0
	for i := range uint64(1) << (p.qubits - 1) {
		a := p.at(insertBit(i, q, val))
		half.set(i, a)
		total += probAmp(a)
	}
	if total > 0 {
		f := complex(1/math.Sqrt(total), 0)
		for _, page := range half.pages {
			for k := range page {
				page[k] *= f
			}
		}
	}
	p.pages = half.pages
	p.pb = half.pb
	p.qubits--
	return nil
}

func (p *pagedEngine) Compose(o Engine) error {
	other, ok := o.(*pagedEngine)
	if !ok {
		return fmt.Errorf("compose across representations: %T", o)
	}
	if err := allocGuard(p.qubits+other.qubits, p.maxMB); err != nil {
		return err
	}
	next, err := newPagedEngine(p.qubits+other.qubits, Options{MaxAllocMB: p.maxMB}, p.rng)
	if err != nil {
		return err
	}
	next.pages[0][0] = 0
	for hi := range other.MaxQPower() {
		ah := other.at(hi)
		if ah == 0 {
			continue
		}
		base := hi << p.qubits
		for lo := range p.MaxQPower() {
			next.set(base|lo, ah*p.at(lo))
		}
	}
	p.pages = next.pages
	p.pb = next.pb
	p.qubits += other.qubits
	return nil
}

// pagePairMtrx combines two paired pages elementwise under the in-page
// control condition.
func pagePairMtrx(p0, p1 []Complex, im, iw uint64, m Mtrx2) {
	for k := range uint64(len(p0)) {
		if k&im != iw {
			continue
		}
		a0, a1 := p0[k], p1[k]
		p0[k] = m[0]*a0 + m[1]*a1
		p1[k] = m[2]*a0 + m[3]*a1
	}
}

func (p *pagedEngine) applyMtrx(controls []int, m Mtrx2, q int, perm uint64) {
	cmask, cwant := ctrlBits(controls, perm)
	im, hm := p.splitMasks(cmask)
	iw, hw := p.splitMasks(cwant)
	if q < p.pb {
		bit := pow2(q)
		p.runPages(func(pg uint64) {
			if pg&hm == hw {
				mtrxPairs(p.pages[pg], 0, p.pageLen(), bit, im, iw, m)
			}
		})
		return
	}
	pbit := uint64(1) << (q - p.pb)
	p.runPages(func(pg uint64) {
		if pg&pbit != 0 || pg&hm != hw {
			return
		}
		pagePairMtrx(p.pages[pg], p.pages[pg|pbit], im, iw, m)
	})
}

func (p *pagedEngine) Mtrx(m Mtrx2, q int) error {
	p.applyMtrx(nil, m, q, 0)
	return nil
}

func (p *pagedEngine) UCMtrx(controls []int, m Mtrx2, q int, perm uint64) error {
	p.applyMtrx(controls, m, q, perm)
	return nil
}

func pageScale(page []Complex, im, iw uint64, f Complex) {
	for k := range uint64(len(page)) {
		if k&im == iw {
			page[k] *= f
		}
	}
}

func (p *pagedEngine) applyPhase(controls []int, tl, br Complex, q int, perm uint64) {
	cmask, cwant := ctrlBits(controls, perm)
	im, hm := p.splitMasks(cmask)
	iw, hw := p.splitMasks(cwant)
	if q < p.pb {
		bit := pow2(q)
		p.runPages(func(pg uint64) {
			if pg&hm == hw {
				phaseDiag(p.pages[pg], 0, p.pageLen(), bit, im, iw, tl, br)
			}
		})
		return
	}
	pbit := uint64(1) << (q - p.pb)
	p.runPages(func(pg uint64) {
		if pg&hm != hw {
			return
		}
		f := tl
		if pg&pbit != 0 {
			f = br
		}
		pageScale(p.pages[pg], im, iw, f)
	})
}

func (p *pagedEngine) Phase(tl, br Complex, q int) error {
	p.applyPhase(nil, tl, br, q, 0)
	return nil
}

func (p *pagedEngine) UCPhase(controls []int, tl, br Complex, q int, perm uint64) error {
	p.applyPhase(controls, tl, br, q, perm)
	return nil
}

func (p *pagedEngine) XMask(mask uint64) error {
	im, hm := p.splitMasks(mask)
	if hm == 0 {
		p.runPages(func(pg uint64) { xMaskAmps(p.pages[pg], 0, p.pageLen(), im) })
		return nil
	}
	p.runPages(func(pg uint64) {
		partner := pg ^ hm
		if pg > partner {
			return
		}
		p0, p1 := p.pages[pg], p.pages[partner]
		for k := range uint64(len(p0)) {
			j := k ^ im
			p0[k], p1[j] = p1[j], p0[k]
		}
	})
	return nil
}

func (p *pagedEngine) YMask(mask uint64) error {
	im, hm := p.splitMasks(mask)
	if hm == 0 {
		p.runPages(func(pg uint64) { yMaskAmps(p.pages[pg], 0, p.pageLen(), im) })
		return nil
	}
	p.runPages(func(pg uint64) {
		partner := pg ^ hm
		if pg > partner {
			return
		}
		p0, p1 := p.pages[pg], p.pages[partner]
		base0 := pg << p.pb
		base1 := partner << p.pb
		for k := range uint64(len(p0)) {
			j := k ^ im
			fi := yFactor(base0|k, mask)
			fj := yFactor(base1|j, mask)
			p0[k], p1[j] = fj*p1[j], fi*p0[k]
		}
	})
	return nil
}

func (p *pagedEngine) ZMask(mask uint64) error {
	im, hm := p.splitMasks(mask)
	p.runPages(func(pg uint64) {
		pagePar := bits.OnesCount64(pg&hm) % 2
		page := p.pages[pg]
		for k := range uint64(len(page)) {
			if (bits.OnesCount64(k&im)+pagePar)%2 == 1 {
				page[k] = -page[k]
			}
		}
	})
	return nil
}

func (p *pagedEngine) applySwap(controls []int, a, b int, perm uint64) {
	if a == b {
		return
	}
	if a > b {
		a, b = b, a
	}
	cmask, cwant := ctrlBits(controls, perm)
	im, hm := p.splitMasks(cmask)
	iw, hw := p.splitMasks(cwant)
	switch {
	case b < p.pb:
		pa, pbBit := pow2(a), pow2(b)
		p.runPages(func(pg uint64) {
			if pg&hm == hw {
				swapAmps(p.pages[pg], 0, p.pageLen(), pa, pbBit, im, iw)
			}
		})
	case a >= p.pb:
		paPg := uint64(1) << (a - p.pb)
		pbPg := uint64(1) << (b - p.pb)
		p.runPages(func(pg uint64) {
			if pg&paPg == 0 || pg&pbPg != 0 || pg&hm != hw {
				return
			}
			p0, p1 := p.pages[pg], p.pages[(pg&^paPg)|pbPg]
			for k := range uint64(len(p0)) {
				if k&im == iw {
					p0[k], p1[k] = p1[k], p0[k]
				}
			}
		})
	default:
		// a inside the page, b above it: (a=1, b=0) trades with (a=0, b=1).
		pa := pow2(a)
		pbPg := uint64(1) << (b - p.pb)
		p.runPages(func(pg uint64) {
			if pg&pbPg != 0 || pg&hm != hw {
				return
			}
			p0, p1 := p.pages[pg], p.pages[pg|pbPg]
			for k := range uint64(len(p0)) {
				if k&pa == 0 || k&im != iw {
					continue
				}
				j := k &^ pa
				p0[k], p1[j] = p1[j], p0[k]
			}
		})
	}
}

func (p *pagedEngine) Swap(a, b int) error {
	p.applySwap(nil, a, b, 0)
	return nil
}

func (p *pagedEngine) CSwap(controls []int, a, b int, perm uint64) error {
	p.applySwap(controls, a, b, perm)
	return nil
}

func (p *pagedEngine) Prob(q int) (float64, error) {
	bit := pow2(q)
	total := 0.0
	for pg, page := range p.pages {
		base := uint64(pg) << p.pb
		for k, a := range page {
			if (base|uint64(k))&bit != 0 {
				total += probAmp(a)
			}
		}
	}
	return total, nil
}

func (p *pagedEngine) ProbAll() ([]float64, error) {
	out := make([]float64, p.MaxQPower())
	for pg, page := range p.pages {
		base := uint64(pg) << p.pb
		for k, a := range page {
			out[base|uint64(k)] = probAmp(a)
		}
	}
	return out, nil
}

func (p *pagedEngine) ProbMask(qs []int) ([]float64, error) {
	out := make([]float64, uint64(1)<<len(qs))
	for pg, page := range p.pages {
		base := uint64(pg) << p.pb
		for k, a := range page {
			out[subIndex(base|uint64(k), qs)] += probAmp(a)
		}
	}
	return out, nil
}

func (p *pagedEngine) Amplitudes() ([]Complex, error) {
	out := make([]Complex, 0, p.MaxQPower())
	for _, page := range p.pages {
		out = append(out, page...)
	}
	return out, nil
}

func (p *pagedEngine) collapse(q int, val bool) {
	bit := pow2(q)
	kept := 0.0
	for pg, page := range p.pages {
		base := uint64(pg) << p.pb
		for k := range page {
			if ((base|uint64(k))&bit != 0) == val {
				kept += probAmp(page[k])
			} else {
				page[k] = 0
			}
		}
	}
	if kept > 0 {
		f := complex(1/math.Sqrt(kept), 0)
		for _, page := range p.pages {
			for k := range page {
				page[k] *= f
			}
		}
	}
}

func (p *pagedEngine) M(q int) (bool, error) {
	p1, _ := p.Prob(q)
	val := p.rng.Float64() < p1
	p.collapse(q, val)
	return val, nil
}

func (p *pagedEngine) ForceM(q int, result bool) (bool, error) {
	p1, _ := p.Prob(q)
	pr := p1
	if !result {
		pr = 1 - p1
	}
	if pr < 1e-12 {
		return false, fmt.Errorf("%w: qubit %d to %t", ErrPostselect, q, result)
	}
	p.collapse(q, result)
	return result, nil
}

func (p *pagedEngine) MAll() (uint64, error) {
	r := p.rng.Float64()
	cum := 0.0
	idx := p.MaxQPower() - 1
	for i := range p.MaxQPower() {
		cum += probAmp(p.at(i))
		if r < cum {
			idx = i
			break
		}
	}
	for _, page := range p.pages {
		for k := range page {
			page[k] = 0
		}
	}
	p.set(idx, 1)
	return idx, nil
}

func (p *pagedEngine) MultiShot(qPowers []uint64, shots int) (map[uint64]int, error) {
	return sampleDist(p.rng, shots, int(p.MaxQPower()), qPowers, func(i uint64) float64 {
		return probAmp(p.at(i))
	})
}

func (p *pagedEngine) flatPauli(qs []int, paulis []Pauli) []Complex {
	v := make([]Complex, 0, p.MaxQPower())
	for _, page := range p.pages {
		v = append(v, page...)
	}
	n := uint64(len(v))
	for k, q := range qs {
		switch paulis[k] {
		case PauliX:
			xMaskAmps(v, 0, n, pow2(q))
		case PauliY:
			yMaskAmps(v, 0, n, pow2(q))
		case PauliZ:
			zMaskAmps(v, 0, n, pow2(q))
		}
	}
	return v
}

func (p *pagedEngine) dotSelf(v []Complex) float64 {
	t := 0.0
	i := 0
	for _, page := range p.pages {
		for _, a := range page {
			ar, ai := real(a), imag(a)
			br, bi := real(v[i]), imag(v[i])
			t += ar*br + ai*bi
			i++
		}
	}
	return t
}

func (p *pagedEngine) ExpectationPauli(qs []int, paulis []Pauli) (float64, error) {
	return p.dotSelf(p.flatPauli(qs, paulis)), nil
}

func (p *pagedEngine) VariancePauli(qs []int, paulis []Pauli) (float64, error) {
	v := p.flatPauli(qs, paulis)
	e := p.dotSelf(v)
	n := uint64(len(v))
	for k, q := range qs {
		switch paulis[k] {
		case PauliX:
			xMaskAmps(v, 0, n, pow2(q))
		case PauliY:
			yMaskAmps(v, 0, n, pow2(q))
		case PauliZ:
			zMaskAmps(v, 0, n, pow2(q))
		}
	}
	return p.dotSelf(v) - e*e, nil
}

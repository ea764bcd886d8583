package qregsim

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// QubitID is an opaque session handle for one allocated qubit. Handles come
// from a monotonic counter and are never reused, so a stale handle stays
// invalid instead of silently aliasing a newer qubit.
type QubitID int64

// ObsID indexes the session observable cache.
type ObsID int64

// Device is one simulator session: the engine stack selected by Options,
// dressed with the handle map, shot configuration, and the observable
// cache.
//
// Index-valued results (State, Probs, partial variants, Counts keys, the
// single-shot sample value) pack request wire j into bit k-1-j of the
// index, k being the request width. Sample rows instead list wire j at
// column j, on the single-shot and multi-shot paths alike.
type Device struct {
	opts    Options
	factory engineFactory
	eng     Engine
	handles map[QubitID]int
	next    QubitID
	obs     []observable
	shots   int
	rng     *rand.Rand
	id      string
	lg      *log.Logger
	taping  bool
}

// New opens a session from a device kwargs string; see ParseOptions for the
// accepted form.
func New(kwargs string) (*Device, error) {
	opts, err := ParseOptions(kwargs)
	if err != nil {
		return nil, err
	}
	return NewWithOptions(opts)
}

func NewWithOptions(opts Options) (*Device, error) {
	seed := opts.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	rng := rand.New(rand.NewPCG(seed, 0x9e3779b97f4a7c15))
	id := uuid.NewString()
	lg := opts.logger().With("session", id)
	d := &Device{
		opts:    opts,
		factory: newEngineFactory(opts, rng, lg),
		handles: make(map[QubitID]int),
		shots:   1,
		rng:     rng,
		id:      id,
		lg:      lg,
	}
	eng, err := d.factory(0)
	if err != nil {
		return nil, err
	}
	d.eng = eng
	d.lg.Debug("session open", "options", fmt.Sprintf("%+v", opts))
	return d, nil
}

// ID is the session identity carried in every log line.
func (d *Device) ID() string { return d.id }

func (d *Device) GetNumQubits() int { return d.eng.QubitCount() }

func (d *Device) GetMaxIndex() uint64 { return d.eng.MaxQPower() }

func (d *Device) Shots() int { return d.shots }

func (d *Device) TapeRecording() bool { return d.taping }

func (d *Device) StartTapeRecording() { d.taping = true }

func (d *Device) StopTapeRecording() { d.taping = false }

func (d *Device) SetShots(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: shots %d", ErrConfig, n)
	}
	d.shots = n
	return nil
}

func (d *Device) index(h QubitID) (int, error) {
	idx, ok := d.handles[h]
	if !ok {
		return 0, fmt.Errorf("%w: handle %d", ErrUnknownQubit, h)
	}
	return idx, nil
}

func (d *Device) indices(hs []QubitID) ([]int, error) {
	out := make([]int, len(hs))
	for i, h := range hs {
		idx, err := d.index(h)
		if err != nil {
			return nil, err
		}
		out[i] = idx
	}
	return out, nil
}

func (d *Device) AllocateQubit() (QubitID, error) {
	if err := d.eng.Allocate(1); err != nil {
		d.lg.Warn("allocation refused", "qubits", d.eng.QubitCount(), "err", err)
		return 0, err
	}
	h := d.next
	d.next++
	idx := d.eng.QubitCount() - 1
	d.handles[h] = idx
	d.lg.Debug("allocated qubit", "handle", h, "index", idx)
	return h, nil
}

func (d *Device) AllocateQubits(n int) ([]QubitID, error) {
	out := make([]QubitID, n)
	for i := range out {
		h, err := d.AllocateQubit()
		if err != nil {
			return nil, err
		}
		out[i] = h
	}
	return out, nil
}

// ReleaseQubit measures the qubit first so disposal cannot denormalize the
// rest of the register, then compacts the mapped indices above it.
func (d *Device) ReleaseQubit(h QubitID) error {
	idx, err := d.index(h)
	if err != nil {
		return err
	}
	if _, err := d.eng.M(idx); err != nil {
		return err
	}
	if err := d.eng.Dispose(idx); err != nil {
		return err
	}
	delete(d.handles, h)
	for k, v := range d.handles {
		if v > idx {
			d.handles[k] = v - 1
		}
	}
	d.lg.Debug("released qubit", "handle", h, "index", idx)
	return nil
}

// ReleaseAllQubits rebuilds the engine stack empty; handles stay retired.
func (d *Device) ReleaseAllQubits() error {
	eng, err := d.factory(0)
	if err != nil {
		return err
	}
	d.eng = eng
	d.handles = make(map[QubitID]int)
	d.lg.Debug("released all qubits")
	return nil
}

func (d *Device) NamedOperation(name string, params []float64, wires []QubitID, inverse bool,
	ctrlWires []QubitID, ctrlValues []bool) error {
	ws, err := d.indices(wires)
	if err != nil {
		return err
	}
	cs, err := d.indices(ctrlWires)
	if err != nil {
		return err
	}
	return applyNamed(d.eng, name, params, ws, inverse, cs, ctrlValues)
}

func (d *Device) MatrixOperation(m Mtrx2, wires []QubitID, inverse bool,
	ctrlWires []QubitID, ctrlValues []bool) error {
	ws, err := d.indices(wires)
	if err != nil {
		return err
	}
	cs, err := d.indices(ctrlWires)
	if err != nil {
		return err
	}
	return applyMatrix(d.eng, m, ws, inverse, cs, ctrlValues)
}

// Measure collapses one qubit. A non-nil postselect forces that outcome and
// fails with the postselection error when its probability is zero.
func (d *Device) Measure(h QubitID, postselect *int) (bool, error) {
	idx, err := d.index(h)
	if err != nil {
		return false, err
	}
	if postselect != nil {
		return d.eng.ForceM(idx, *postselect != 0)
	}
	return d.eng.M(idx)
}

// SetBasisState forces the listed qubits into a classical basis state by
// measuring and flipping mismatches.
func (d *Device) SetBasisState(values []int, handles []QubitID) error {
	if len(values) != len(handles) {
		return fmt.Errorf("%w: %d values for %d wires", ErrBasisState, len(values), len(handles))
	}
	for _, v := range values {
		if v != 0 && v != 1 {
			return fmt.Errorf("%w: values must be 0 or 1", ErrBasisState)
		}
	}
	qs, err := d.indices(handles)
	if err != nil {
		return err
	}
	for i, q := range qs {
		out, err := d.eng.M(q)
		if err != nil {
			return err
		}
		if out != (values[i] == 1) {
			if err := d.eng.XMask(pow2(q)); err != nil {
				return err
			}
		}
	}
	return nil
}

// State is the amplitude vector in wire order: wire j packs into bit n-1-j.
func (d *Device) State() ([]Complex, error) {
	amps, err := d.eng.Amplitudes()
	if err != nil {
		return nil, err
	}
	n := d.eng.QubitCount()
	out := make([]Complex, len(amps))
	for i, a := range amps {
		out[revIndex(uint64(i), n)] = a
	}
	return out, nil
}

func (d *Device) Probs() ([]float64, error) {
	probs, err := d.eng.ProbAll()
	if err != nil {
		return nil, err
	}
	n := d.eng.QubitCount()
	out := make([]float64, len(probs))
	for i, p := range probs {
		out[revIndex(uint64(i), n)] = p
	}
	return out, nil
}

func (d *Device) PartialProbs(wires []QubitID) ([]float64, error) {
	qs, err := d.indices(wires)
	if err != nil {
		return nil, err
	}
	slices.Reverse(qs)
	return d.eng.ProbMask(qs)
}

// sampleHist draws the configured shot count over the given engine indices:
// one collapsing full measurement for a single shot, frozen-distribution
// sampling otherwise. Histogram key bit j is the outcome of qs[j].
func (d *Device) sampleHist(qs []int) (map[uint64]int, error) {
	if d.shots > 1 && d.opts.Noise > 0 {
		return nil, fmt.Errorf("%w: %d shots with noise %g", ErrNoisyShots, d.shots, d.opts.Noise)
	}
	d.lg.Debug("sampling", "shots", d.shots, "wires", len(qs))
	powers := make([]uint64, len(qs))
	for j, q := range qs {
		powers[j] = pow2(q)
	}
	if d.shots == 1 {
		idx, err := d.eng.MAll()
		if err != nil {
			return nil, err
		}
		return map[uint64]int{packPowers(idx, powers): 1}, nil
	}
	return d.eng.MultiShot(powers, d.shots)
}

func sortedKeys(hist map[uint64]int) []uint64 {
	keys := make([]uint64, 0, len(hist))
	for k := range hist {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func sampleRows(hist map[uint64]int, width, shots int) [][]float64 {
	rows := make([][]float64, 0, shots)
	for _, key := range sortedKeys(hist) {
		row := make([]float64, width)
		for j := range width {
			if key&pow2(j) != 0 {
				row[j] = 1
			}
		}
		for range hist[key] {
			rows = append(rows, slices.Clone(row))
		}
	}
	return rows
}

func (d *Device) allIndices() []int {
	qs := make([]int, d.eng.QubitCount())
	for i := range qs {
		qs[i] = i
	}
	return qs
}

// Sample returns one row per shot; column j is the outcome of wire j.
func (d *Device) Sample() ([][]float64, error) {
	qs := d.allIndices()
	hist, err := d.sampleHist(qs)
	if err != nil {
		return nil, err
	}
	return sampleRows(hist, len(qs), d.shots), nil
}

func (d *Device) PartialSample(wires []QubitID) ([][]float64, error) {
	qs, err := d.indices(wires)
	if err != nil {
		return nil, err
	}
	hist, err := d.sampleHist(qs)
	if err != nil {
		return nil, err
	}
	return sampleRows(hist, len(qs), d.shots), nil
}

func countsTables(hist map[uint64]int, width int) ([]float64, []int64) {
	size := uint64(1) << width
	eigvals := make([]float64, size)
	counts := make([]int64, size)
	for i := range eigvals {
		eigvals[i] = float64(i)
	}
	for key, n := range hist {
		counts[revIndex(key, width)] += int64(n)
	}
	return eigvals, counts
}

// Counts returns the basis-state labels and per-outcome shot counts over
// the full register; label bit n-1-j is the outcome of wire j.
func (d *Device) Counts() ([]float64, []int64, error) {
	qs := d.allIndices()
	hist, err := d.sampleHist(qs)
	if err != nil {
		return nil, nil, err
	}
	eigvals, counts := countsTables(hist, len(qs))
	return eigvals, counts, nil
}

func (d *Device) PartialCounts(wires []QubitID) ([]float64, []int64, error) {
	qs, err := d.indices(wires)
	if err != nil {
		return nil, nil, err
	}
	hist, err := d.sampleHist(qs)
	if err != nil {
		return nil, nil, err
	}
	eigvals, counts := countsTables(hist, len(qs))
	return eigvals, counts, nil
}

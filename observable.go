package qregsim

import (
	"fmt"
	"slices"
)

// observable is one cached measurement basis: paulis[i] acts on the qubit
// behind wires[i]. Wires stay as handles so the cache survives release
// compaction; they resolve to engine indices at evaluation time.
type observable struct {
	paulis []Pauli
	wires  []QubitID
}

// Observable caches a Pauli-word observable and returns its cache id.
// Unlisted wires are implicitly identity.
func (d *Device) Observable(paulis []Pauli, wires []QubitID) (ObsID, error) {
	if len(paulis) != len(wires) {
		return -1, fmt.Errorf("%w: %d axes for %d wires", ErrArity, len(paulis), len(wires))
	}
	for _, p := range paulis {
		if p < PauliI || p > PauliZ {
			return -1, fmt.Errorf("%w: axis %d", ErrUnknownObservable, p)
		}
	}
	d.obs = append(d.obs, observable{paulis: slices.Clone(paulis), wires: slices.Clone(wires)})
	return ObsID(len(d.obs) - 1), nil
}

// TensorObservable caches the tensor product of previously cached
// observables. An empty factor list yields the sentinel id -1.
func (d *Device) TensorObservable(ids []ObsID) (ObsID, error) {
	if len(ids) == 0 {
		return -1, nil
	}
	var o observable
	for _, id := range ids {
		f, err := d.observableAt(id)
		if err != nil {
			return -1, err
		}
		o.paulis = append(o.paulis, f.paulis...)
		o.wires = append(o.wires, f.wires...)
	}
	d.obs = append(d.obs, o)
	return ObsID(len(d.obs) - 1), nil
}

// HamiltonianObservable is outside the Pauli-word cache.
func (d *Device) HamiltonianObservable(coeffs []float64, ids []ObsID) (ObsID, error) {
	return -1, ErrHamiltonian
}

func (d *Device) observableAt(id ObsID) (observable, error) {
	if id < 0 || int(id) >= len(d.obs) {
		return observable{}, fmt.Errorf("%w: id %d", ErrUnknownObservable, id)
	}
	return d.obs[id], nil
}

func (d *Device) resolveObservable(id ObsID) ([]int, []Pauli, error) {
	o, err := d.observableAt(id)
	if err != nil {
		return nil, nil, err
	}
	qs, err := d.indices(o.wires)
	if err != nil {
		return nil, nil, err
	}
	return qs, o.paulis, nil
}

// Expval is the expectation value of a cached observable on the current state.
func (d *Device) Expval(id ObsID) (float64, error) {
	qs, paulis, err := d.resolveObservable(id)
	if err != nil {
		return 0, err
	}
	return d.eng.ExpectationPauli(qs, paulis)
}

// Var is the variance of a cached observable on the current state.
func (d *Device) Var(id ObsID) (float64, error) {
	qs, paulis, err := d.resolveObservable(id)
	if err != nil {
		return 0, err
	}
	return d.eng.VariancePauli(qs, paulis)
}

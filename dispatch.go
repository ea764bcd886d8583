package qregsim

import (
	"fmt"
	"slices"
)

// ctrlKeep maps gate names that fold target wires into the control list to
// the number of target wires they keep.
var ctrlKeep = map[string]int{
	"CNOT":                 1,
	"CY":                   1,
	"CZ":                   1,
	"CRX":                  1,
	"CRY":                  1,
	"CRZ":                  1,
	"CRot":                 1,
	"CPhase":               1,
	"ControlledPhaseShift": 1,
	"Toffoli":              1,
	"MultiControlledX":     1,
	"CSWAP":                2,
}

// paramNeed is the parameter arity per gate name; names absent take none.
var paramNeed = map[string]int{
	"RX":                   1,
	"RY":                   1,
	"RZ":                   1,
	"CRX":                  1,
	"CRY":                  1,
	"CRZ":                  1,
	"MultiRZ":              1,
	"PhaseShift":           1,
	"CPhase":               1,
	"ControlledPhaseShift": 1,
	"PSWAP":                1,
	"Rot":                  3,
	"CRot":                 3,
	"U3":                   3,
}

func ctrlPerm(vals []bool) uint64 {
	var p uint64
	for i, v := range vals {
		if v {
			p |= pow2(i)
		}
	}
	return p
}

func wiresMask(wires []int) uint64 {
	var m uint64
	for _, w := range wires {
		m |= pow2(w)
	}
	return m
}

func mtrx1(eng Engine, controls []int, m Mtrx2, w int, perm uint64) error {
	if len(controls) == 0 {
		return eng.Mtrx(m, w)
	}
	return eng.UCMtrx(controls, m, w, perm)
}

func phase1(eng Engine, controls []int, tl, br Complex, w int, perm uint64) error {
	if len(controls) == 0 {
		return eng.Phase(tl, br, w)
	}
	return eng.UCPhase(controls, tl, br, w, perm)
}

func eachWire(eng Engine, controls []int, wires []int, perm uint64,
	fn func(eng Engine, controls []int, w int, perm uint64) error) error {
	for _, w := range wires {
		if err := fn(eng, controls, w, perm); err != nil {
			return err
		}
	}
	return nil
}

// applyNamed runs one named gate against the engine. Wires and controls are
// engine indices; control i fires on ctrlValues[i]. Names that imply
// controls move all but their kept target wires into the control list, with
// true values, behind any explicit controls.
func applyNamed(eng Engine, name string, params []float64, wires []int, inverse bool,
	controls []int, ctrlValues []bool) error {
	if len(controls) != len(ctrlValues) {
		return fmt.Errorf("%w: %d control wires, %d control values", ErrArity,
			len(controls), len(ctrlValues))
	}
	if need := paramNeed[name]; len(params) < need {
		return fmt.Errorf("%w: %s takes %d parameters, got %d", ErrArity, name, need, len(params))
	}
	if keep, ok := ctrlKeep[name]; ok {
		if len(wires) < keep {
			return fmt.Errorf("%w: %s takes at least %d target wires", ErrArity, name, keep)
		}
		end := len(wires) - keep
		controls = append(slices.Clone(controls), wires[:end]...)
		ctrlValues = append(slices.Clone(ctrlValues), slices.Repeat([]bool{true}, end)...)
		wires = wires[end:]
	}
	perm := ctrlPerm(ctrlValues)

	switch name {
	case "Identity":
		return nil

	case "PauliX", "CNOT", "Toffoli", "MultiControlledX":
		if len(controls) == 0 {
			return eng.XMask(wiresMask(wires))
		}
		return eachWire(eng, controls, wires, perm,
			func(eng Engine, c []int, w int, p uint64) error { return eng.UCMtrx(c, mtrxX, w, p) })

	case "PauliY", "CY":
		if len(controls) == 0 {
			return eng.YMask(wiresMask(wires))
		}
		return eachWire(eng, controls, wires, perm,
			func(eng Engine, c []int, w int, p uint64) error { return eng.UCMtrx(c, mtrxY, w, p) })

	case "PauliZ", "CZ":
		if len(controls) == 0 {
			return eng.ZMask(wiresMask(wires))
		}
		return eachWire(eng, controls, wires, perm,
			func(eng Engine, c []int, w int, p uint64) error { return eng.UCMtrx(c, mtrxZ, w, p) })

	case "Hadamard":
		return eachWire(eng, controls, wires, perm,
			func(eng Engine, c []int, w int, p uint64) error { return mtrx1(eng, c, mtrxH, w, p) })

	case "S":
		ph := phaseS
		if inverse {
			ph = phaseInvS
		}
		return eachWire(eng, controls, wires, perm,
			func(eng Engine, c []int, w int, p uint64) error { return phase1(eng, c, 1, ph, w, p) })

	case "T":
		ph := phaseT
		if inverse {
			ph = phaseInvT
		}
		return eachWire(eng, controls, wires, perm,
			func(eng Engine, c []int, w int, p uint64) error { return phase1(eng, c, 1, ph, w, p) })

	case "SX":
		m := mtrxSqrtX
		if inverse {
			m = mtrxInvSqrtX
		}
		return eachWire(eng, controls, wires, perm,
			func(eng Engine, c []int, w int, p uint64) error { return mtrx1(eng, c, m, w, p) })

	case "RX", "CRX":
		th := params[0]
		if inverse {
			th = -th
		}
		m := mtrxRX(th)
		return eachWire(eng, controls, wires, perm,
			func(eng Engine, c []int, w int, p uint64) error { return mtrx1(eng, c, m, w, p) })

	case "RY", "CRY":
		th := params[0]
		if inverse {
			th = -th
		}
		m := mtrxRY(th)
		return eachWire(eng, controls, wires, perm,
			func(eng Engine, c []int, w int, p uint64) error { return mtrx1(eng, c, m, w, p) })

	case "RZ", "CRZ", "MultiRZ":
		th := params[0]
		if inverse {
			th = -th
		}
		tl, br := rzPhases(th)
		return eachWire(eng, controls, wires, perm,
			func(eng Engine, c []int, w int, p uint64) error { return phase1(eng, c, tl, br, w, p) })

	case "PhaseShift", "CPhase", "ControlledPhaseShift":
		th := params[0]
		if inverse {
			th = -th
		}
		br := expI(th)
		return eachWire(eng, controls, wires, perm,
			func(eng Engine, c []int, w int, p uint64) error { return phase1(eng, c, 1, br, w, p) })

	case "Rot", "CRot":
		var m Mtrx2
		if inverse {
			m = mtrxRot(-params[2], -params[1], -params[0])
		} else {
			m = mtrxRot(params[0], params[1], params[2])
		}
		return eachWire(eng, controls, wires, perm,
			func(eng Engine, c []int, w int, p uint64) error { return mtrx1(eng, c, m, w, p) })

	case "U3":
		var m Mtrx2
		if len(controls) == 0 {
			if inverse {
				m = mtrxU3(-params[0], -params[2], -params[1])
			} else {
				m = mtrxU3(params[0], params[1], params[2])
			}
		} else {
			m = mtrxU3(params[0], params[1], params[2])
			if inverse {
				m = m.Inv()
			}
		}
		return eachWire(eng, controls, wires, perm,
			func(eng Engine, c []int, w int, p uint64) error { return mtrx1(eng, c, m, w, p) })

	case "SWAP", "CSWAP":
		if len(wires) != 2 {
			return fmt.Errorf("%w: %s takes exactly two target wires", ErrArity, name)
		}
		if len(controls) == 0 {
			return eng.Swap(wires[0], wires[1])
		}
		return eng.CSwap(controls, wires[0], wires[1], perm)

	case "ISWAP":
		if len(wires) != 2 {
			return fmt.Errorf("%w: ISWAP takes exactly two target wires", ErrArity)
		}
		tl := Complex(1i)
		if inverse {
			tl = -1i
		}
		mcp := append(slices.Clone(controls), wires[0])
		mperm := perm | pow2(len(controls))
		if err := eng.UCPhase(mcp, tl, 1, wires[1], mperm); err != nil {
			return err
		}
		if err := eng.CSwap(controls, wires[0], wires[1], perm); err != nil {
			return err
		}
		return eng.UCPhase(mcp, tl, 1, wires[1], mperm)

	case "PSWAP":
		if len(wires) != 2 {
			return fmt.Errorf("%w: PSWAP takes exactly two target wires", ErrArity)
		}
		th := params[0]
		if inverse {
			th = -th
		}
		// Phase sits behind both targets, so it lands on |11> twice around
		// the swap.
		br := expI(th)
		cp := append(slices.Clone(controls), wires[0])
		cperm := perm | pow2(len(controls))
		if err := eng.UCPhase(cp, 1, br, wires[1], cperm); err != nil {
			return err
		}
		if err := eng.CSwap(controls, wires[0], wires[1], perm); err != nil {
			return err
		}
		return eng.UCPhase(cp, 1, br, wires[1], cperm)
	}

	return fmt.Errorf("%w: %q", ErrUnknownGate, name)
}

// applyMatrix runs a raw single-target 2x2 operation, inverting by exact
// matrix inversion when asked.
func applyMatrix(eng Engine, m Mtrx2, wires []int, inverse bool,
	controls []int, ctrlValues []bool) error {
	if len(controls) != len(ctrlValues) {
		return fmt.Errorf("%w: %d control wires, %d control values", ErrArity,
			len(controls), len(ctrlValues))
	}
	if len(wires) != 1 {
		return fmt.Errorf("%w: matrix operation takes exactly one target wire", ErrArity)
	}
	if inverse {
		m = m.Inv()
	}
	return mtrx1(eng, controls, m, wires[0], ctrlPerm(ctrlValues))
}

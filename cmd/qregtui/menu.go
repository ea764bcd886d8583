package main

import (
	"fmt"
	"strings"
)

// menuItem is a single gate choice. gate is the dispatch name passed to the
// device; extra counts the wires picked beyond the cursor lane.
type menuItem struct {
	name   string
	gate   string
	symbol string
	extra  int
	params int
	hint   string
	dagger bool
}

// menuCategory groups related menu items under a tab.
type menuCategory struct {
	name  string
	items []menuItem
}

// gateMenu defines the gate picker categories and items.
var gateMenu = []menuCategory{
	{
		name: "Single Qubit",
		items: []menuItem{
			{name: "Hadamard", gate: "Hadamard", symbol: "H"},
			{name: "Pauli-X (NOT)", gate: "PauliX", symbol: "X"},
			{name: "Pauli-Y", gate: "PauliY", symbol: "Y"},
			{name: "Pauli-Z", gate: "PauliZ", symbol: "Z"},
			{name: "Identity", gate: "Identity", symbol: "I"},
			{name: "Phase (S)", gate: "S", symbol: "S"},
			{name: "Phase Dagger (S†)", gate: "S", symbol: "S†", dagger: true},
			{name: "T Gate", gate: "T", symbol: "T"},
			{name: "T Dagger (T†)", gate: "T", symbol: "T†", dagger: true},
			{name: "√X (SX)", gate: "SX", symbol: "√X"},
		},
	},
	{
		name: "Rotation",
		items: []menuItem{
			{name: "Rotate X", gate: "RX", symbol: "RX", params: 1, hint: "pi/2"},
			{name: "Rotate Y", gate: "RY", symbol: "RY", params: 1, hint: "pi/2"},
			{name: "Rotate Z", gate: "RZ", symbol: "RZ", params: 1, hint: "pi/2"},
			{name: "Phase Shift", gate: "PhaseShift", symbol: "P", params: 1, hint: "pi/4"},
			{name: "Euler Rot", gate: "Rot", symbol: "R3", params: 3, hint: "phi,theta,omega"},
			{name: "Universal U3", gate: "U3", symbol: "U3", params: 3, hint: "theta,phi,lambda"},
		},
	},
	{
		name: "Two Qubit",
		items: []menuItem{
			{name: "CNOT", gate: "CNOT", symbol: "●─⊕", extra: 1},
			{name: "Controlled-Y", gate: "CY", symbol: "●─Y", extra: 1},
			{name: "Controlled-Z", gate: "CZ", symbol: "●─●", extra: 1},
			{name: "SWAP", gate: "SWAP", symbol: "×─×", extra: 1},
			{name: "iSWAP", gate: "ISWAP", symbol: "i×", extra: 1},
			{name: "Phase SWAP", gate: "PSWAP", symbol: "p×", extra: 1, params: 1, hint: "pi/2"},
			{name: "C-Rotate X", gate: "CRX", symbol: "●─RX", extra: 1, params: 1, hint: "pi/2"},
			{name: "C-Rotate Y", gate: "CRY", symbol: "●─RY", extra: 1, params: 1, hint: "pi/2"},
			{name: "C-Rotate Z", gate: "CRZ", symbol: "●─RZ", extra: 1, params: 1, hint: "pi/2"},
			{name: "C-Phase", gate: "CPhase", symbol: "●─P", extra: 1, params: 1, hint: "pi/4"},
		},
	},
	{
		name: "Three Qubit",
		items: []menuItem{
			{name: "Toffoli (CCX)", gate: "Toffoli", symbol: "●●⊕", extra: 2},
			{name: "Fredkin (CSWAP)", gate: "CSWAP", symbol: "●××", extra: 2},
		},
	},
}

// renderMenu renders the floating gate-picker popup.
func (m model) renderMenu() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Add Gate"))
	sb.WriteString("\n")

	// Category tabs
	for i, cat := range gateMenu {
		name := " " + cat.name + " "
		if i == m.menuCat {
			sb.WriteString(accentStyle.Render(name))
		} else {
			sb.WriteString(dimStyle.Render(name))
		}
		if i < len(gateMenu)-1 {
			sb.WriteString(dimStyle.Render("│"))
		}
	}
	sb.WriteString("\n")
	sb.WriteString(dimStyle.Render(strings.Repeat("─", 46)))
	sb.WriteString("\n")

	// Items in the selected category
	cat := gateMenu[m.menuCat]
	for i, item := range cat.items {
		if i == m.menuItem {
			sb.WriteString(menuSelectedStyle.Render(" ▸ "))
			sb.WriteString(menuSelectedStyle.Render(fmt.Sprintf("%-18s", item.name)))
			sb.WriteString(gateStyle.Render(item.symbol))
		} else {
			sb.WriteString("   ")
			sb.WriteString(menuNormalStyle.Render(fmt.Sprintf("%-18s", item.name)))
			sb.WriteString(dimStyle.Render(item.symbol))
		}
		if item.extra > 0 {
			sb.WriteString(dimStyle.Render(fmt.Sprintf(" +%dw", item.extra)))
		}
		if item.params > 0 {
			sb.WriteString(dimStyle.Render(fmt.Sprintf(" (%s)", item.hint)))
		}
		sb.WriteString("\n")
	}
	sb.WriteString(dimStyle.Render(" ↑↓ Select  ←→ Cat  ⏎ Ok  Esc ✕"))

	return menuBorderStyle.Render(sb.String())
}

package main

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"
)

// ──────────────────────────── Rendering helpers ────────────────────────────

// bar renders p in [0,1] as a fixed-width block bar.
func bar(p float64, width int) string {
	filled := int(math.Round(p * float64(width)))
	filled = min(max(filled, 0), width)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// basisLabel renders index i as a ket over n wires, wire 0 leftmost.
func basisLabel(i uint64, n int) string {
	return fmt.Sprintf("|%0*b⟩", n, i)
}

// ──────────────────────────── Panel rendering ────────────────────────────

// renderLanePanel renders the register lanes and the program listing.
func (m model) renderLanePanel(width, height int) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Register"))
	sb.WriteString("\n\n")

	if len(m.handles) == 0 {
		sb.WriteString(dimStyle.Render("  no qubits, press + to allocate"))
		sb.WriteString("\n")
	}

	for i, h := range m.handles {
		marker := "  "
		if m.focus == focusPickWires {
			if slices.Contains(m.pickedW, i) {
				marker = accentStyle.Render("● ")
			}
			if i == m.target {
				marker = targetStyle.Render("▸ ")
			}
		} else if i == m.cursor {
			marker = cursorStyle.Render("▸ ")
		}

		p1 := 0.0
		if i < len(m.probs1) {
			p1 = m.probs1[i]
		}
		label := wireLabelStyle.Render(fmt.Sprintf("q[%d]", i))
		handle := dimStyle.Render(fmt.Sprintf("#%-3d", int64(h)))
		sb.WriteString(fmt.Sprintf("%s%s %s ▕%s▏ %s\n",
			marker, label, handle,
			barStyle.Render(bar(p1, barW)),
			fmt.Sprintf("P₁ %.3f", p1)))
	}

	if m.focus == focusPickWires {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("  %s wire %d of %d: %s %s",
			accentStyle.Render(m.pending.name),
			len(m.pickedW)+1, m.pending.extra+1,
			targetStyle.Render(fmt.Sprintf("q[%d]", m.target)),
			dimStyle.Render("↑↓ Move  ⏎ Ok  Esc ✕")))
		sb.WriteString("\n")
	}

	// Program listing tail
	sb.WriteString("\n")
	sb.WriteString(titleStyle.Render("Program"))
	sb.WriteString("\n")
	avail := max(height-len(m.handles)-9, 3)
	listing := m.listing
	if len(listing) > avail {
		sb.WriteString(dimStyle.Render(fmt.Sprintf("  … %d earlier\n", len(listing)-avail)))
		listing = listing[len(listing)-avail:]
	}
	for _, line := range listing {
		sb.WriteString("  " + gateStyle.Render(line) + "\n")
	}

	if m.status != "" {
		sb.WriteString("\n")
		sb.WriteString("  " + errStyle.Render(m.status))
	}

	return laneStyle.Width(width).Height(height).Render(sb.String())
}

// renderSidePanel renders amplitudes on top and the sampling histogram below.
func (m model) renderSidePanel(width, height int) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Amplitudes"))
	sb.WriteString("\n\n")

	n := len(m.handles)
	if m.amps == nil {
		sb.WriteString(dimStyle.Render("  unavailable"))
		sb.WriteString("\n")
	} else {
		type ampRow struct {
			idx uint64
			p   float64
		}
		rows := make([]ampRow, 0, len(m.amps))
		for i, a := range m.amps {
			p := real(a)*real(a) + imag(a)*imag(a)
			rows = append(rows, ampRow{uint64(i), p})
		}
		slices.SortFunc(rows, func(a, b ampRow) int {
			if d := cmp.Compare(b.p, a.p); d != 0 {
				return d
			}
			return cmp.Compare(a.idx, b.idx)
		})
		shown := min(len(rows), ampRows)
		for _, r := range rows[:shown] {
			if r.p < 1e-9 {
				break
			}
			a := m.amps[r.idx]
			sb.WriteString(fmt.Sprintf("  %s %s %+.3f%+.3fi\n",
				wireLabelStyle.Render(basisLabel(r.idx, n)),
				barStyle.Render(bar(r.p, 10)),
				real(a), imag(a)))
		}
	}

	sb.WriteString("\n")
	sb.WriteString(titleStyle.Render("Histogram"))
	sb.WriteString("\n\n")

	if m.counts == nil {
		sb.WriteString(dimStyle.Render("  press s to sample"))
		sb.WriteString("\n")
	} else {
		type histRow struct {
			idx uint64
			c   int64
		}
		var rows []histRow
		var total int64
		for i, c := range m.counts {
			if c > 0 {
				rows = append(rows, histRow{uint64(i), c})
				total += c
			}
		}
		slices.SortFunc(rows, func(a, b histRow) int {
			if d := cmp.Compare(b.c, a.c); d != 0 {
				return d
			}
			return cmp.Compare(a.idx, b.idx)
		})
		shown := min(len(rows), histRows)
		for _, r := range rows[:shown] {
			frac := float64(r.c) / float64(total)
			sb.WriteString(fmt.Sprintf("  %s %s %d\n",
				wireLabelStyle.Render(basisLabel(r.idx, m.countW)),
				accentStyle.Render(bar(frac, 10)),
				r.c))
		}
		if len(rows) > shown {
			sb.WriteString(dimStyle.Render(fmt.Sprintf("  … %d more outcomes\n", len(rows)-shown)))
		}
	}

	return sideStyle.Width(width).Height(height).Render(sb.String())
}

// renderControlsPanel renders the bottom help bar.
func (m model) renderControlsPanel(width, height int) string {
	var sb strings.Builder

	sb.WriteString(accentStyle.Render("Gates:    "))
	sb.WriteString("↑↓/jk Lane  a Add gate  m Measure  s Sample\n")

	sb.WriteString(accentStyle.Render("Register: "))
	sb.WriteString("+ Alloc  - Release  ^R Reset  q/^C Quit")

	return controlsStyle.Width(width).Height(height).Render(sb.String())
}

// ──────────────────────────── Overlay helpers ────────────────────────────

// overlayAt composites the overlay string on top of the background at
// position (x, y).
func overlayAt(bg, overlay string, x, y int) string {
	bgLines := strings.Split(bg, "\n")
	for i, ovLine := range strings.Split(overlay, "\n") {
		bgIdx := y + i
		if bgIdx < 0 || bgIdx >= len(bgLines) {
			continue
		}
		bgLines[bgIdx] = spliceLineAt(bgLines[bgIdx], ovLine, x)
	}
	return strings.Join(bgLines, "\n")
}

// skipEscape advances past the ANSI escape sequence starting at runes[i].
func skipEscape(runes []rune, i int) int {
	i++
	for i < len(runes) {
		r := runes[i]
		i++
		if r != '[' && (r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z') {
			break
		}
	}
	return i
}

// spliceLineAt replaces visible columns [x, x+width(overlay)) of bgLine with
// the overlay content, keeping the background's escape sequences on either
// side intact.
func spliceLineAt(bgLine, overlay string, x int) string {
	runes := []rune(bgLine)
	ovWidth := visibleLen(overlay)

	var prefix strings.Builder
	i, col := 0, 0
	for i < len(runes) && col < x {
		if runes[i] == '\x1b' {
			next := skipEscape(runes, i)
			prefix.WriteString(string(runes[i:next]))
			i = next
			continue
		}
		prefix.WriteRune(runes[i])
		col++
		i++
	}
	for col < x {
		prefix.WriteRune(' ')
		col++
	}

	// Drop ovWidth visible background columns under the overlay.
	skipped := 0
	for i < len(runes) && skipped < ovWidth {
		if runes[i] == '\x1b' {
			i = skipEscape(runes, i)
			continue
		}
		skipped++
		i++
	}

	return prefix.String() + overlay + string(runes[i:])
}

// visibleLen counts visible (non-escape) characters.
func visibleLen(s string) int {
	runes := []rune(s)
	n := 0
	for i := 0; i < len(runes); {
		if runes[i] == '\x1b' {
			i = skipEscape(runes, i)
			continue
		}
		n++
		i++
	}
	return n
}

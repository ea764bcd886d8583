package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"qregsim"
)

// focus represents which panel/mode has keyboard input.
type focus int

const (
	focusLanes focus = iota
	focusMenu
	focusParam
	focusPickWires
)

// model is the TUI state: one live device session plus view bookkeeping.
// Lane i displays the qubit behind handles[i].
type model struct {
	dev     *qregsim.Device
	handles []qregsim.QubitID

	probs1 []float64         // per-lane P(|1>)
	amps   []qregsim.Complex // wire-ordered amplitudes, small registers only
	counts []int64           // histogram of the last sampling run
	countW int               // lane count when it was taken

	listing []string
	cursor  int
	width   int
	height  int
	focus   focus
	status  string

	// Menu state
	menuCat  int
	menuItem int

	// Pending gate state
	pending    menuItem
	pickedW    []int
	pendAngles []float64
	target     int
	angleIn    textinput.Model
}

func newModel(dev *qregsim.Device, handles []qregsim.QubitID) model {
	ti := textinput.New()
	ti.CharLimit = 64
	ti.Width = 28

	m := model{
		dev:     dev,
		handles: handles,
		angleIn: ti,
	}
	m.refresh()
	return m
}

// refresh recomputes the per-lane marginals and the amplitude view.
func (m *model) refresh() {
	m.probs1 = m.probs1[:0]
	for _, h := range m.handles {
		pr, err := m.dev.PartialProbs([]qregsim.QubitID{h})
		if err != nil {
			m.status = err.Error()
			m.probs1 = append(m.probs1, 0)
			continue
		}
		m.probs1 = append(m.probs1, pr[1])
	}
	m.amps = nil
	if n := len(m.handles); n > 0 && n <= 10 {
		if amps, err := m.dev.State(); err == nil {
			m.amps = amps
		}
	}
}

// seekLane finds the next lane from `from` in direction `step` that is not
// already picked, or -1.
func (m *model) seekLane(from, step int) int {
	for w := from; w >= 0 && w < len(m.handles); w += step {
		if !slices.Contains(m.pickedW, w) {
			return w
		}
	}
	return -1
}

func (m *model) startPick() {
	if t := m.seekLane(0, 1); t >= 0 {
		m.target = t
		m.focus = focusPickWires
		return
	}
	m.status = "not enough qubits"
	m.pickedW = nil
	m.focus = focusLanes
}

// applyPending dispatches the pending gate to the device and logs it.
func (m *model) applyPending() {
	hs := make([]qregsim.QubitID, len(m.pickedW))
	for i, w := range m.pickedW {
		hs[i] = m.handles[w]
	}
	if err := m.dev.NamedOperation(m.pending.gate, m.pendAngles, hs, m.pending.dagger, nil, nil); err != nil {
		m.status = err.Error()
	} else {
		m.listing = append(m.listing, formatOp(m.pending.gate, m.pendAngles, m.pickedW, m.pending.dagger))
		m.refresh()
	}
	m.pickedW = nil
	m.pendAngles = nil
	m.focus = focusLanes
}

// formatOp renders one program-listing line, e.g. "RX(pi/2) q0" or
// "CNOT q0 q1".
func formatOp(gate string, angles []float64, wires []int, dagger bool) string {
	var sb strings.Builder
	sb.WriteString(gate)
	if dagger {
		sb.WriteString("†")
	}
	if len(angles) > 0 {
		sb.WriteString("(")
		sb.WriteString(formatAngles(angles))
		sb.WriteString(")")
	}
	for _, w := range wires {
		fmt.Fprintf(&sb, " q%d", w)
	}
	return sb.String()
}

// ──────────────────────────── Init / Update ────────────────────────────

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		key := msg.String()
		m.status = ""

		if key == "ctrl+c" {
			return m, tea.Quit
		}

		switch m.focus {
		case focusLanes:
			switch key {
			case "q":
				return m, tea.Quit
			case "up", "k":
				if m.cursor > 0 {
					m.cursor--
				}
			case "down", "j":
				if m.cursor < len(m.handles)-1 {
					m.cursor++
				}
			case "a":
				m.focus = focusMenu
				m.menuCat = 0
				m.menuItem = 0
			case "m":
				if len(m.handles) == 0 {
					break
				}
				out, err := m.dev.Measure(m.handles[m.cursor], nil)
				if err != nil {
					m.status = err.Error()
					break
				}
				bit := 0
				if out {
					bit = 1
				}
				m.listing = append(m.listing, fmt.Sprintf("measure q%d = %d", m.cursor, bit))
				m.refresh()
			case "s":
				if len(m.handles) == 0 {
					break
				}
				_, counts, err := m.dev.Counts()
				if err != nil {
					m.status = err.Error()
					break
				}
				m.counts = counts
				m.countW = len(m.handles)
				m.listing = append(m.listing, fmt.Sprintf("sample %d shots", m.dev.Shots()))
				m.refresh()
			case "+", "=":
				h, err := m.dev.AllocateQubit()
				if err != nil {
					m.status = err.Error()
					break
				}
				m.handles = append(m.handles, h)
				m.listing = append(m.listing, fmt.Sprintf("alloc q%d", len(m.handles)-1))
				m.counts = nil
				m.refresh()
			case "-":
				if len(m.handles) == 0 {
					break
				}
				if err := m.dev.ReleaseQubit(m.handles[m.cursor]); err != nil {
					m.status = err.Error()
					break
				}
				m.listing = append(m.listing, fmt.Sprintf("release q%d", m.cursor))
				m.handles = slices.Delete(m.handles, m.cursor, m.cursor+1)
				if m.cursor >= len(m.handles) && m.cursor > 0 {
					m.cursor--
				}
				m.counts = nil
				m.refresh()
			case "ctrl+r":
				n := len(m.handles)
				if err := m.dev.ReleaseAllQubits(); err != nil {
					m.status = err.Error()
					break
				}
				hs, err := m.dev.AllocateQubits(n)
				if err != nil {
					m.status = err.Error()
					break
				}
				m.handles = hs
				m.listing = nil
				m.counts = nil
				m.cursor = 0
				m.refresh()
			}

		case focusMenu:
			switch key {
			case "esc":
				m.focus = focusLanes
			case "up", "k":
				if m.menuItem > 0 {
					m.menuItem--
				}
			case "down", "j":
				cat := gateMenu[m.menuCat]
				if m.menuItem < len(cat.items)-1 {
					m.menuItem++
				}
			case "left", "h":
				if m.menuCat > 0 {
					m.menuCat--
					m.menuItem = 0
				}
			case "right", "l":
				if m.menuCat < len(gateMenu)-1 {
					m.menuCat++
					m.menuItem = 0
				}
			case "enter":
				it := gateMenu[m.menuCat].items[m.menuItem]
				if len(m.handles) < it.extra+1 {
					m.status = fmt.Sprintf("%s needs %d qubits", it.name, it.extra+1)
					m.focus = focusLanes
					break
				}
				m.pending = it
				m.pickedW = []int{m.cursor}
				m.pendAngles = nil
				if it.params > 0 {
					m.angleIn.SetValue("")
					m.angleIn.Placeholder = it.hint
					m.angleIn.Focus()
					m.focus = focusParam
					break
				}
				if it.extra > 0 {
					m.startPick()
					break
				}
				m.applyPending()
			}

		case focusParam:
			switch key {
			case "esc":
				m.angleIn.Blur()
				m.pickedW = nil
				m.focus = focusLanes
			case "enter":
				vals := splitAngles(m.angleIn.Value())
				if m.angleIn.Value() != "" && vals == nil {
					m.status = "bad angle: use numbers or pi expressions (pi/2, 3*pi/4)"
					break
				}
				for len(vals) < m.pending.params {
					vals = append(vals, 0)
				}
				m.pendAngles = vals[:m.pending.params]
				m.angleIn.Blur()
				if m.pending.extra > 0 {
					m.startPick()
					break
				}
				m.applyPending()
			default:
				var cmd tea.Cmd
				m.angleIn, cmd = m.angleIn.Update(msg)
				cmds = append(cmds, cmd)
			}

		case focusPickWires:
			switch key {
			case "esc":
				m.pickedW = nil
				m.focus = focusLanes
			case "up", "k":
				if t := m.seekLane(m.target-1, -1); t >= 0 {
					m.target = t
				}
			case "down", "j":
				if t := m.seekLane(m.target+1, 1); t >= 0 {
					m.target = t
				}
			case "enter":
				m.pickedW = append(m.pickedW, m.target)
				if len(m.pickedW) == m.pending.extra+1 {
					m.applyPending()
					break
				}
				m.startPick()
			}
		}

	default:
		if m.focus == focusParam {
			var cmd tea.Cmd
			m.angleIn, cmd = m.angleIn.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	return m, tea.Batch(cmds...)
}

// View renders the UI.
func (m model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	sideWidth := m.width / 3
	laneWidth := m.width - sideWidth - 4
	controlsHeight := 5
	bodyHeight := max(m.height-controlsHeight-2, 8)

	lanePanel := m.renderLanePanel(laneWidth, bodyHeight)
	sidePanel := m.renderSidePanel(sideWidth, bodyHeight)
	controlsPanel := m.renderControlsPanel(m.width-4, controlsHeight-2)

	topRow := lipgloss.JoinHorizontal(lipgloss.Top, lanePanel, sidePanel)
	frame := lipgloss.JoinVertical(lipgloss.Left, topRow, controlsPanel)

	if m.focus == focusMenu {
		frame = overlayAt(frame, m.renderMenu(), 2, 2)
	}
	if m.focus == focusParam {
		frame = overlayAt(frame, m.renderAngleInput(), 2, 2)
	}

	return frame
}

// renderAngleInput renders the angle entry overlay.
func (m model) renderAngleInput() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(fmt.Sprintf("%s angles", m.pending.name)))
	sb.WriteString("\n\n")
	sb.WriteString(m.angleIn.View())
	sb.WriteString("\n\n")
	sb.WriteString(dimStyle.Render("Examples: pi/2, 3*pi/4, 1.57   ⏎ Ok  Esc ✕"))
	return menuBorderStyle.Render(sb.String())
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Thermoquad/hubpad/pkg/controlplus"
	"github.com/Thermoquad/hubpad/pkg/hub"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	holdPollInterval = 50 * time.Millisecond // How often held keys are checked for release
	eventLogHeight   = 8
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// controlModel is the Bubble Tea model for the control TUI
type controlModel struct {
	hub      *hub.Hub
	connInfo string

	// Keyboard gamepad
	buttons map[byte]bool
	keys    *keyHold

	// Port status
	portTable  table.Model
	portStates map[uint8]hub.State

	// Monitoring
	stats         *controlplus.Statistics
	dropped       uint64
	errorLog      []errorLogEntry
	maxLogEntries int

	// UI state
	width          int
	height         int
	quitting       bool
	connected      bool
	connectionLost bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type controlTickMsg time.Time

type holdTickMsg time.Time

type controlBatchMsg struct {
	messages []controlplus.Message
}

type connectedMsg struct {
	connInfo string
}

type connectFailedMsg struct {
	err error
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialControlModel(h *hub.Hub, connInfo string, holdTimeout time.Duration) controlModel {
	buttons := make(map[byte]bool)
	for _, p := range h.Config().Ports {
		for _, m := range p.Mappings {
			buttons[m.Button] = true
		}
	}

	columns := []table.Column{
		{Title: "Port", Width: 4},
		{Title: "Type", Width: 7},
		{Title: "State", Width: 17},
		{Title: "Modes", Width: 5},
		{Title: "APOS", Width: 4},
		{Title: "Position", Width: 9},
		{Title: "Value", Width: 9},
		{Title: "Error", Width: 30},
	}
	portTable := table.New(
		table.WithColumns(columns),
		table.WithHeight(len(h.Ports())+1),
		table.WithFocused(false),
	)

	m := controlModel{
		hub:           h,
		connInfo:      connInfo,
		buttons:       buttons,
		keys:          newKeyHold(holdTimeout),
		portTable:     portTable,
		portStates:    make(map[uint8]hub.State),
		stats:         controlplus.NewStatistics(),
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
	m.refreshPorts()
	return m
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m controlModel) Init() tea.Cmd {
	return tea.Batch(controlTickCmd(), holdTickCmd())
}

func controlTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return controlTickMsg(t)
	})
}

func holdTickCmd() tea.Cmd {
	return tea.Tick(holdPollInterval, func(t time.Time) tea.Msg {
		return holdTickMsg(t)
	})
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case controlTickMsg:
		m.stats = m.hub.Session().Stats()
		m.stats.CalculateRates()
		m.dropped = m.hub.Session().Dropped()
		m.refreshPorts()
		return m, controlTickCmd()

	case holdTickMsg:
		for _, b := range m.keys.Expired(time.Time(msg)) {
			m.hub.ButtonUp(b)
		}
		return m, holdTickCmd()

	case controlBatchMsg:
		for _, hm := range msg.messages {
			m.processMessage(hm)
		}
		m.refreshPorts()

	case connectedMsg:
		m.connected = true
		m.connectionLost = false
		m.connInfo = msg.connInfo
		m.addLogEntry(fmt.Sprintf("Connected to %s (%s)", m.hub.Name(), m.hub.Config().ID), false)

	case connectFailedMsg:
		m.addLogEntry(fmt.Sprintf("Connect failed: %v", msg.err), true)

	case connectionLostMsg:
		m.connected = false
		m.connectionLost = true
		m.keys.ReleaseAll()
		m.addLogEntry("Connection lost - reconnecting...", true)
	}

	return m, nil
}

func (m controlModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "ctrl+c":
		for _, b := range m.keys.ReleaseAll() {
			m.hub.ButtonUp(b)
		}
		m.quitting = true
		return m, tea.Quit
	}

	b, ok := buttonForKey(msg.String(), m.buttons)
	if !ok {
		return m, nil
	}
	if m.keys.Press(b, time.Now()) {
		m.hub.ButtonDown(b)
	}
	return m, nil
}

//////////////////////////////////////////////////////////////
// Data Processing
//////////////////////////////////////////////////////////////

func (m *controlModel) processMessage(msg controlplus.Message) {
	switch v := msg.(type) {
	case *controlplus.HubAttachedIO:
		switch v.Event {
		case controlplus.IOEventDetached:
			m.addLogEntry(fmt.Sprintf("Port %d detached", v.Port), false)
		default:
			m.addLogEntry(fmt.Sprintf("Port %d %s: %s", v.Port,
				strings.ToLower(controlplus.FormatIOEvent(v.Event)), controlplus.FormatIOType(v.IOType)), false)
		}

	case *controlplus.GenericError:
		m.addLogEntry(fmt.Sprintf("Hub error: %s for %s",
			controlplus.FormatErrorCode(v.Code), controlplus.FormatMessageType(v.Command)), true)

	case *controlplus.PortOutputCommandFeedback:
		for _, port := range v.Ports() {
			if status, ok := v.Status(port); ok && status&controlplus.FeedbackCommandDiscarded != 0 {
				m.addLogEntry(fmt.Sprintf("Port %d discarded a command", port), true)
			}
		}
	}
}

// refreshPorts rebuilds the port table and logs state changes
func (m *controlModel) refreshPorts() {
	rows := make([]table.Row, 0, len(m.hub.Ports()))
	for _, p := range m.hub.Ports() {
		state := p.State()
		if prev, ok := m.portStates[p.ID()]; ok && prev != state {
			if err := p.LastError(); err != nil && state == hub.StateUninitialized {
				m.addLogEntry(fmt.Sprintf("Port %d bring-up failed: %v", p.ID(), err), true)
			} else {
				m.addLogEntry(fmt.Sprintf("Port %d: %s -> %s", p.ID(), prev, state), false)
			}
		}
		m.portStates[p.ID()] = state

		apos := "-"
		if p.AbsPosMode() >= 0 {
			apos = strconv.Itoa(p.AbsPosMode())
		}
		errText := ""
		if err := p.LastError(); err != nil {
			errText = err.Error()
		}
		rows = append(rows, table.Row{
			strconv.Itoa(int(p.ID())),
			p.Kind().String(),
			state.String(),
			strconv.Itoa(p.NumModes()),
			apos,
			strconv.Itoa(int(p.Position())),
			strconv.Itoa(int(p.LastValue())),
			errText,
		})
	}
	m.portTable.SetRows(rows)
}

func (m *controlModel) addLogEntry(message string, isError bool) {
	entry := errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.errorLog = append(m.errorLog, entry)

	// Keep only last N entries
	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

func (m controlModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	s.WriteString(titleStyle.Render("HUBPAD CONTROL"))
	s.WriteString(" ")
	connStatus := m.connInfo
	switch {
	case m.connectionLost:
		connStatus = warningStyle.Render("RECONNECTING...")
	case !m.connected:
		connStatus = warningStyle.Render("CONNECTING...")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | %s | Esc=quit", m.hub.Name(), connStatus)))
	s.WriteString("\n\n")

	// Ports
	s.WriteString(statsLabelStyle.Render("PORTS"))
	s.WriteString("\n")
	s.WriteString(boxStyle.Render(m.portTable.View()))
	s.WriteString("\n\n")

	// Keys
	s.WriteString(m.renderKeys(statsLabelStyle, statsValueStyle, headerStyle, boxStyle))
	s.WriteString("\n\n")

	// Statistics bar
	s.WriteString(m.renderStatisticsBar(statsLabelStyle, statsValueStyle, errorStyle, boxStyle))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(m.renderEventLog(statsLabelStyle, warningStyle, boxStyle))

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func (m controlModel) renderKeys(statsLabelStyle, statsValueStyle, headerStyle, boxStyle lipgloss.Style) string {
	var content strings.Builder
	content.WriteString(statsLabelStyle.Render("KEYS"))
	content.WriteString(" | ")

	if len(m.buttons) == 0 {
		content.WriteString(headerStyle.Render("No mappings in profile"))
		return boxStyle.Width(m.width - 4).Render(content.String())
	}

	held := make(map[byte]bool)
	for _, b := range m.keys.Held() {
		held[b] = true
	}
	for b := 0; b < 256; b++ {
		if !m.buttons[byte(b)] {
			continue
		}
		label := fmt.Sprintf("[%c]", b)
		if held[byte(b)] {
			content.WriteString(statsValueStyle.Render(label))
		} else {
			content.WriteString(headerStyle.Render(label))
		}
		content.WriteString(" ")
	}

	return boxStyle.Width(m.width - 4).Render(content.String())
}

func (m controlModel) renderStatisticsBar(statsLabelStyle, statsValueStyle, errorStyle, boxStyle lipgloss.Style) string {
	var validPercent, errorPercent float64
	if m.stats.TotalMessages > 0 {
		validPercent = float64(m.stats.ValidMessages) * 100.0 / float64(m.stats.TotalMessages)
		totalErrors := m.stats.DecodeErrors + m.stats.Anomalies
		errorPercent = float64(totalErrors) * 100.0 / float64(m.stats.TotalMessages)
	}

	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s  %s %s",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.TotalMessages)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%.1f%%", validPercent)),
		statsLabelStyle.Render("Errors:"), func() string {
			if errorPercent > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f%%", errorPercent))
			}
			return statsValueStyle.Render("0.0%")
		}(),
		statsLabelStyle.Render("Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f msg/s", m.stats.MessageRate)),
		statsLabelStyle.Render("Dropped:"), func() string {
			if m.dropped > 0 {
				return errorStyle.Render(fmt.Sprintf("%d", m.dropped))
			}
			return statsValueStyle.Render("0")
		}(),
	)

	return boxStyle.Width(m.width - 4).Render(content)
}

func (m controlModel) renderEventLog(statsLabelStyle, warningStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("EVENTS"))
	s.WriteString("\n")

	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyleLocal := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

	logHeight := eventLogHeight
	if len(m.errorLog) < logHeight {
		logHeight = len(m.errorLog)
	}
	startIdx := len(m.errorLog) - logHeight

	if len(m.errorLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.errorLog); i++ {
			entry := m.errorLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			icon := "i"
			style := warningStyle
			if entry.isError {
				icon = "x"
				style = errorStyleLocal
			}
			s.WriteString(fmt.Sprintf("%s %s %s\n",
				headerStyle.Render(timestamp),
				style.Render(icon),
				entry.message))
		}
	}

	return boxStyle.Width(m.width - 4).Render(s.String())
}

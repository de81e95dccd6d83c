// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Thermoquad/hubpad/pkg/controlplus"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Error log entry
type errorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for warnings
}

// attachedDevice is the last attach event and value seen for a port
type attachedDevice struct {
	event     controlplus.IOEvent
	ioType    controlplus.IOType
	hwVersion uint32
	swVersion uint32
	value     int32
	hasValue  bool
	updated   time.Time
}

// TUI model
type model struct {
	connInfo      string
	identity      string
	statsInterval int
	showAll       bool
	stats         *controlplus.Statistics
	errorLog      []errorLogEntry
	maxLogEntries int
	devices       map[uint8]*attachedDevice
	connected     bool
	width         int
	height        int
	quitting      bool
}

// Messages
type tickMsg time.Time
type connectionLostMsg struct{}

func initialModel(connInfo, identity string, statsInterval int, showAll bool) model {
	return model{
		connInfo:      connInfo,
		identity:      identity,
		statsInterval: statsInterval,
		showAll:       showAll,
		stats:         controlplus.NewStatistics(),
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		devices:       make(map[uint8]*attachedDevice),
		connected:     true,
		width:         80,
		height:        24,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.stats.CalculateRates()
		return m, tickCmd()

	case connectionLostMsg:
		m.connected = false
		m.addLogEntry("Connection closed", true)

	case inboundMsg:
		m.stats.Update(msg.msg, msg.decodeErr, msg.validationErrors)
		if msg.decodeErr != nil {
			m.addLogEntry(fmt.Sprintf("DECODE ERROR: %v [%s]", msg.decodeErr, controlplus.FormatFrame(msg.frame)), true)
			break
		}

		m.trackDevices(msg.msg)

		msgType := controlplus.FormatMessageType(msg.msg.Type())
		if len(msg.validationErrors) > 0 {
			for _, err := range msg.validationErrors {
				m.addLogEntry(fmt.Sprintf("%s: %s", msgType, err.Message), true)
			}
		} else if m.showAll {
			m.addLogEntry(msg.msg.String(), false)
		}
	}

	return m, nil
}

func (m *model) addLogEntry(message string, isError bool) {
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

// trackDevices keeps the attached device table current
func (m *model) trackDevices(msg controlplus.Message) {
	switch v := msg.(type) {
	case *controlplus.HubAttachedIO:
		if v.Event == controlplus.IOEventDetached {
			delete(m.devices, v.Port)
			return
		}
		m.devices[v.Port] = &attachedDevice{
			event:     v.Event,
			ioType:    v.IOType,
			hwVersion: v.HardwareRev,
			swVersion: v.SoftwareRev,
			updated:   time.Now(),
		}

	case *controlplus.PortValueSingle:
		if d, ok := m.devices[v.Port]; ok {
			d.value = v.Value
			d.hasValue = true
			d.updated = time.Now()
		}
	}
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

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
	var s strings.Builder
	s.WriteString(titleStyle.Render("HUBPAD - ERROR DETECTION"))
	s.WriteString("\n")
	mode := "Errors only"
	if m.showAll {
		mode = "All messages"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Hub: %s | Mode: %s | Press 'q' to quit",
		m.connInfo, m.identity, mode)))
	s.WriteString("\n\n")

	if m.connected {
		s.WriteString(statsValueStyle.Render("✓ Connected"))
	} else {
		s.WriteString(errorStyle.Render("✗ Connection closed"))
	}
	s.WriteString("\n\n")

	// Statistics
	m.stats.CalculateRates()
	var validPercent, errorPercent float64
	totalErrors := m.stats.DecodeErrors + m.stats.Anomalies
	if m.stats.TotalMessages > 0 {
		validPercent = float64(m.stats.ValidMessages) * 100.0 / float64(m.stats.TotalMessages)
		errorPercent = float64(totalErrors) * 100.0 / float64(m.stats.TotalMessages)
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.TotalMessages)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", m.stats.ValidMessages, validPercent)),
		statsLabelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", totalErrors, errorPercent)),
	))

	if m.stats.DecodeErrors > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s (%s: %d, %s: %d, %s: %d)\n",
			statsLabelStyle.Render("Decode Errors:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.DecodeErrors)),
			headerStyle.Render("unknown type"), m.stats.UnknownTypes,
			headerStyle.Render("unsupported"), m.stats.Unsupported,
			headerStyle.Render("malformed"), m.stats.MalformedMessages,
		))
	}

	if m.stats.Anomalies > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s (%s: %d, %s: %d)\n",
			statsLabelStyle.Render("Anomalies:"), warningStyle.Render(fmt.Sprintf("%d", m.stats.Anomalies)),
			headerStyle.Render("generic errors"), m.stats.GenericErrors,
			headerStyle.Render("discarded"), m.stats.Discarded,
		))
	}

	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		statsLabelStyle.Render("Message Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f msgs/s", m.stats.MessageRate)),
		statsLabelStyle.Render("Error Rate:"), func() string {
			if m.stats.ErrorRate > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
			}
			return statsValueStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
		}(),
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Attached devices (only shown once the hub has reported some)
	if len(m.devices) > 0 {
		s.WriteString(statsLabelStyle.Render("Attached Devices:"))
		s.WriteString("\n")

		ports := make([]int, 0, len(m.devices))
		for port := range m.devices {
			ports = append(ports, int(port))
		}
		sort.Ints(ports)

		devContent := strings.Builder{}
		for i, port := range ports {
			d := m.devices[uint8(port)]
			line := fmt.Sprintf("%s %s",
				statsLabelStyle.Render(fmt.Sprintf("Port %3d:", port)),
				statsValueStyle.Render(controlplus.FormatIOType(d.ioType)),
			)
			if d.event == controlplus.IOEventAttachedVirtual {
				line += headerStyle.Render(" (virtual)")
			} else {
				line += headerStyle.Render(fmt.Sprintf(" hw %s sw %s",
					controlplus.FormatVersion(d.hwVersion), controlplus.FormatVersion(d.swVersion)))
			}
			if d.hasValue {
				line += fmt.Sprintf("  %s %d", statsLabelStyle.Render("value:"), d.value)
			}
			devContent.WriteString(line)
			if i < len(ports)-1 {
				devContent.WriteString("\n")
			}
		}

		s.WriteString(boxStyle.Render(devContent.String()))
		s.WriteString("\n\n")
	}

	// Error log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	// Calculate how many log entries we can show
	logHeight := m.height - 15 - len(m.devices)
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.errorLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.errorLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.errorLog); i++ {
			entry := m.errorLog[i]
			timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}

// Package tui implements the interactive TUI mode for btscout.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"tinygo.org/x/bluetooth"

	"btscout/internal/ble"
	"btscout/internal/cache"
	"btscout/internal/config"
	"btscout/internal/inspect"
	"btscout/internal/scan"
	"btscout/internal/util"
)

// View represents different screens in the TUI.
type View int

const (
	ViewDevices View = iota
	ViewDetail
)

// Deps are the wired dependencies the TUI runs on.
type Deps struct {
	Config *config.Config
	Logger *slog.Logger
	Store  *cache.Store // may be nil
}

// Model is the main Bubbletea model for the TUI.
type Model struct {
	deps Deps

	// State
	view   View
	cursor int
	width  int
	height int

	scanning   bool
	inspecting bool
	skipValues bool
	devices    []scan.Device
	cachedSvcs map[string]int // address -> services recorded by past inspections

	report       *inspect.Report
	detailOffset int

	errorMsg  string
	statusMsg string

	// connector is created after the first pass and kept for the whole
	// session so its per-device backoff state survives between inspects.
	connector *ble.Connector

	// Components
	keys    KeyMap
	help    help.Model
	spinner spinner.Model
	scanBar ScanProgress
	styles  Styles
}

// --- Custom messages for async operations ---

// scanDoneMsg delivers the result of one discovery pass.
type scanDoneMsg struct {
	devices []scan.Device
	err     error
}

// inspectDoneMsg delivers the result of one device inspection.
type inspectDoneMsg struct {
	address string
	report  *inspect.Report
	err     error
}

// NewModel creates a new TUI model.
func NewModel(deps Deps) Model {
	h := help.New()
	h.ShowAll = false // Use ShortHelp for horizontal layout

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))

	m := Model{
		deps:       deps,
		view:       ViewDevices,
		scanning:   true, // first pass starts on launch
		cachedSvcs: make(map[string]int),
		keys:       DefaultKeyMap(),
		help:       h,
		spinner:    s,
		scanBar:    NewScanProgress(),
		styles:     DefaultStyles(),
	}
	m.scanBar.Start(deps.Config.ScanDuration())
	m.loadCachedCounts()
	return m
}

// loadCachedCounts pulls service counts from past sessions so the list
// can hint at what inspection already learned.
func (m *Model) loadCachedCounts() {
	if m.deps.Store == nil {
		return
	}
	devices, err := m.deps.Store.Devices()
	if err != nil {
		return
	}
	for _, d := range devices {
		if d.Services > 0 {
			m.cachedSvcs[d.Address] = d.Services
		}
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	// Auto-start the first pass and the spinner
	return tea.Batch(m.scanCmd(), m.spinner.Tick, scanTickCmd())
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case scanTickMsg:
		if m.scanBar.IsActive() {
			return m, scanTickCmd()
		}
		return m, nil

	case scanDoneMsg:
		m.scanning = false
		m.scanBar.Stop()
		if msg.err != nil {
			m.errorMsg = fmt.Sprintf("Scan failed: %v", msg.err)
			return m, nil
		}
		m.errorMsg = ""
		m.devices = msg.devices
		if m.cursor > m.maxCursor() {
			m.cursor = 0
		}
		if len(m.devices) == 0 {
			m.statusMsg = "Nothing in range"
		} else {
			m.statusMsg = fmt.Sprintf("%d device(s)", len(m.devices))
		}
		// The pass enabled the adapter, so this cannot block.
		if m.connector == nil {
			if adapter, err := ble.Adapter(); err == nil {
				m.connector = m.newConnector(adapter)
			}
		}
		return m, nil

	case inspectDoneMsg:
		m.inspecting = false
		if msg.err != nil {
			m.errorMsg = fmt.Sprintf("Inspect %s: %v", msg.address, msg.err)
			m.statusMsg = ""
			return m, nil
		}
		m.errorMsg = ""
		m.statusMsg = ""
		m.report = msg.report
		m.cachedSvcs[msg.report.Address] = len(msg.report.Services)
		m.view = ViewDetail
		m.detailOffset = 0
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.view == ViewDevices {
			return m, tea.Quit
		}
		return m.goBack()

	case key.Matches(msg, m.keys.Back), key.Matches(msg, m.keys.Left):
		return m.goBack()

	case key.Matches(msg, m.keys.Up):
		if m.view == ViewDetail {
			if m.detailOffset > 0 {
				m.detailOffset--
			}
			return m, nil
		}
		m.cursor--
		if m.cursor < 0 {
			m.cursor = m.maxCursor()
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.view == ViewDetail {
			if m.detailOffset < m.detailMaxOffset() {
				m.detailOffset++
			}
			return m, nil
		}
		m.cursor++
		if m.cursor > m.maxCursor() {
			m.cursor = 0
		}
		return m, nil

	case key.Matches(msg, m.keys.Select), key.Matches(msg, m.keys.Right):
		return m.handleSelect()

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.Rescan):
		if m.view == ViewDevices && !m.scanning && !m.inspecting {
			m.scanning = true
			m.errorMsg = ""
			m.statusMsg = ""
			m.scanBar.Start(m.deps.Config.ScanDuration())
			return m, tea.Batch(m.scanCmd(), m.spinner.Tick, scanTickCmd())
		}
		return m, nil

	case key.Matches(msg, m.keys.NoReads):
		m.skipValues = !m.skipValues
		if m.skipValues {
			m.statusMsg = "Value sampling off"
		} else {
			m.statusMsg = "Value sampling on"
		}
		return m, nil
	}

	return m, nil
}

func (m Model) goBack() (tea.Model, tea.Cmd) {
	switch m.view {
	case ViewDetail:
		m.view = ViewDevices
		m.report = nil
		m.detailOffset = 0
		return m, nil
	default:
		return m, tea.Quit
	}
}

func (m Model) handleSelect() (tea.Model, tea.Cmd) {
	if m.view != ViewDevices || m.scanning || m.inspecting {
		return m, nil
	}
	if len(m.devices) == 0 || m.cursor >= len(m.devices) {
		return m, nil
	}
	if m.connector == nil {
		adapter, err := ble.Adapter()
		if err != nil {
			m.errorMsg = fmt.Sprintf("Adapter: %v", err)
			return m, nil
		}
		m.connector = m.newConnector(adapter)
	}

	d := m.devices[m.cursor]
	m.inspecting = true
	m.errorMsg = ""
	m.statusMsg = "Connecting to " + deviceLabel(d) + "..."
	return m, tea.Batch(m.inspectCmd(d), m.spinner.Tick)
}

func (m Model) maxCursor() int {
	if len(m.devices) == 0 {
		return 0
	}
	return len(m.devices) - 1
}

// View renders the current screen.
func (m Model) View() string {
	var content string
	switch m.view {
	case ViewDetail:
		content = m.viewDetail()
	default:
		content = m.viewDevices()
	}

	helpView := m.styles.Help.Render(m.help.View(m.keys))

	return m.styles.App.Render(
		content + "\n" + helpView,
	)
}

func (m Model) viewDevices() string {
	var b strings.Builder

	b.WriteString(m.renderTitleBar("btscout"))
	b.WriteString("\n\n")

	if m.scanning {
		b.WriteString(m.scanBar.View())
		b.WriteString("\n")
		return b.String()
	}

	if m.errorMsg != "" {
		b.WriteString(m.styles.Error.Render(m.errorMsg))
		b.WriteString("\n\n")
	}

	if len(m.devices) == 0 {
		b.WriteString(m.styles.Muted.Render("Nothing in range. Check that nearby devices are discoverable, then press r."))
		b.WriteString("\n")
		return b.String()
	}

	for i, d := range m.devices {
		name := d.Name
		if name == "" {
			name = "Unknown"
		}
		line := fmt.Sprintf("%-24s %-20s %s", util.Truncate(name, 24), d.Address, m.rssiBadge(d.RSSI))

		var row string
		if i == m.cursor {
			row = m.styles.RowSelected.Render("> " + line)
		} else {
			row = m.styles.Row.Render("  " + line)
		}
		if hint, ok := m.cachedSvcs[d.Address]; ok {
			row += "  " + m.styles.RowDim.Render(fmt.Sprintf("%d svc cached", hint))
		}
		b.WriteString(row)
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) viewDetail() string {
	if m.report == nil {
		return m.renderTitleBar("btscout")
	}

	var b strings.Builder

	name := m.report.Name
	if name == "" {
		name = "Unknown"
	}
	b.WriteString(m.renderTitleBar(name))
	b.WriteString("\n\n")

	services, characteristics := m.report.Totals()
	b.WriteString(m.renderField("Address", m.report.Address))
	b.WriteString(m.renderField("Services", fmt.Sprintf("%d (%d characteristics)", services, characteristics)))
	b.WriteString(m.renderField("Walk time", m.report.Took.Round(time.Millisecond).String()))
	b.WriteString("\n")

	lines := m.detailLines()
	visible := m.detailVisible()
	offset := m.detailOffset
	if max := len(lines) - visible; offset > max {
		offset = max
	}
	if offset < 0 {
		offset = 0
	}
	end := offset + visible
	if end > len(lines) {
		end = len(lines)
	}
	for _, line := range lines[offset:end] {
		b.WriteString(line)
		b.WriteString("\n")
	}
	if len(lines) > visible {
		b.WriteString(m.styles.Muted.Render(fmt.Sprintf("(%d-%d of %d lines, j/k to scroll)", offset+1, end, len(lines))))
		b.WriteString("\n")
	}

	return b.String()
}

// detailLines renders the service walk as one styled line per entry.
func (m Model) detailLines() []string {
	if m.report == nil {
		return nil
	}
	var lines []string
	for _, svc := range m.report.Services {
		lines = append(lines, m.styles.Highlight.Render(svc.Name)+" "+m.styles.Muted.Render(svc.ID))
		if svc.Error != "" {
			lines = append(lines, "  "+m.styles.Error.Render("characteristics unavailable: "+svc.Error))
			lines = append(lines, "")
			continue
		}
		for _, c := range svc.Characteristics {
			line := "  " + m.styles.Value.Render(c.Name) + " " + m.styles.Muted.Render(c.ID)
			if c.Readable {
				line += "  " + m.styles.Success.Render(util.Truncate(c.Text, 40))
			}
			lines = append(lines, line)
		}
		lines = append(lines, "")
	}
	return lines
}

func (m Model) detailVisible() int {
	// Leave room for the title, the summary, the scroll hint, and help.
	visible := m.height - 8
	if visible < 5 {
		visible = 20
	}
	return visible
}

func (m Model) detailMaxOffset() int {
	n := len(m.detailLines()) - m.detailVisible()
	if n < 0 {
		return 0
	}
	return n
}

// renderTitleBar renders a consistent title bar with session status.
func (m Model) renderTitleBar(title string) string {
	var parts []string

	parts = append(parts, m.styles.Title.Render(title))

	switch {
	case m.scanning:
		parts = append(parts, m.spinner.View()+" "+m.styles.Warning.Render("Scanning..."))
	case m.inspecting:
		parts = append(parts, m.spinner.View()+" "+m.styles.Warning.Render(m.statusMsg))
	case m.statusMsg != "":
		parts = append(parts, m.styles.Subtitle.Render(m.statusMsg))
	}

	return strings.Join(parts, "  ")
}

// renderField renders a label-value pair for the detail header.
func (m Model) renderField(label, value string) string {
	return m.styles.Label.Render(label) + m.styles.Value.Render(value) + "\n"
}

// rssiBadge colors signal strength with a rough bar glyph.
func (m Model) rssiBadge(rssi int16) string {
	switch {
	case rssi == 0:
		return m.styles.Muted.Render("    N/A")
	case rssi >= -60:
		return m.styles.Success.Render(fmt.Sprintf("▂▄▆ %d", rssi))
	case rssi >= -75:
		return m.styles.Warning.Render(fmt.Sprintf("▂▄  %d", rssi))
	default:
		return m.styles.Error.Render(fmt.Sprintf("▂   %d", rssi))
	}
}

func deviceLabel(d scan.Device) string {
	if d.Name != "" {
		return d.Name
	}
	return d.Address
}

// --- Async commands for BLE operations ---

// scanCmd runs one discovery pass off the update loop.
func (m Model) scanCmd() tea.Cmd {
	deps := m.deps
	return func() tea.Msg {
		adapter, err := ble.Adapter()
		if err != nil {
			return scanDoneMsg{err: err}
		}
		started := time.Now()
		devices, err := scan.Run(context.Background(), adapter, scan.Options{
			Duration: deps.Config.ScanDuration(),
			Filter:   deps.Config.Scan.Filter,
			MinRSSI:  deps.Config.Scan.MinRSSI,
		})
		if err != nil {
			return scanDoneMsg{err: err}
		}
		rememberScan(deps, started, time.Since(started), devices)
		return scanDoneMsg{devices: devices}
	}
}

// inspectCmd connects and walks one device off the update loop.
func (m Model) inspectCmd(d scan.Device) tea.Cmd {
	deps := m.deps
	connector := m.connector
	skip := m.skipValues
	return func() tea.Msg {
		rep, err := inspect.Known(context.Background(), connector, d.Addr, d.Name, inspect.Options{SkipValues: skip})
		if err != nil {
			return inspectDoneMsg{address: d.Address, err: err}
		}
		if deps.Store != nil {
			if err := deps.Store.RecordInspect(rep); err != nil {
				deps.Logger.Warn("cache: record inspect", "error", err)
			}
		}
		return inspectDoneMsg{address: d.Address, report: rep}
	}
}

func (m Model) newConnector(adapter *bluetooth.Adapter) *ble.Connector {
	return ble.NewConnector(adapter, ble.ConnectPolicy{
		Attempts: m.deps.Config.Connect.Attempts,
		Delay:    m.deps.Config.RetryDelay(),
		Timeout:  m.deps.Config.ConnectTimeout(),
	}, m.deps.Logger)
}

func rememberScan(deps Deps, started time.Time, took time.Duration, devices []scan.Device) {
	if deps.Store == nil {
		return
	}
	if err := deps.Store.RecordScan(devices); err != nil {
		deps.Logger.Warn("cache: record scan", "error", err)
		return
	}
	sess := cache.Session{
		ID:       cache.NewSessionID(started),
		Started:  started,
		Duration: took,
		Devices:  len(devices),
	}
	if err := deps.Store.RecordSession(sess); err != nil {
		deps.Logger.Warn("cache: record session", "error", err)
	}
}

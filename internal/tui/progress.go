package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ScanProgress renders a countdown bar for a scan pass of known length.
type ScanProgress struct {
	progress progress.Model
	started  time.Time
	duration time.Duration
	active   bool
}

// NewScanProgress creates the scan progress state.
func NewScanProgress() ScanProgress {
	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(40),
	)
	return ScanProgress{progress: p}
}

// Start begins tracking a pass of the given length.
func (p *ScanProgress) Start(d time.Duration) {
	p.active = true
	p.started = time.Now()
	p.duration = d
}

// Stop ends tracking.
func (p *ScanProgress) Stop() {
	p.active = false
}

// IsActive returns whether a pass is being tracked.
func (p *ScanProgress) IsActive() bool {
	return p.active
}

func (p ScanProgress) percent() float64 {
	if p.duration <= 0 {
		return 0
	}
	pct := float64(time.Since(p.started)) / float64(p.duration)
	if pct > 1 {
		pct = 1
	}
	return pct
}

// View renders the bar with the time remaining.
func (p ScanProgress) View() string {
	if !p.active {
		return ""
	}
	remaining := p.duration - time.Since(p.started)
	if remaining < 0 {
		remaining = 0
	}
	desc := lipgloss.NewStyle().Foreground(lipgloss.Color("241")).
		Render("Scanning, " + remaining.Round(time.Second).String() + " left")
	return desc + "\n" + p.progress.ViewAs(p.percent())
}

// scanTickMsg drives the countdown while a pass runs.
type scanTickMsg time.Time

func scanTickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return scanTickMsg(t)
	})
}

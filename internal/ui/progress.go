// Package ui renders a live terminal view of a running transcode:
// packet/frame counters, a byte-based progress bar, and a completion
// summary. It owns no pipeline logic; cmd/codecflux feeds it messages
// from the pipeline's progress callback.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	accentCyan  = lipgloss.Color("#00B7C3")
	accentBlue  = lipgloss.Color("#3B78FF")
	softViolet  = lipgloss.Color("#8A7FD6")
	dimGray     = lipgloss.Color("#6C6C6C")
	successTint = lipgloss.Color("#3FB950")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(accentCyan)
	labelStyle   = lipgloss.NewStyle().Foreground(dimGray)
	valueStyle   = lipgloss.NewStyle().Foreground(accentBlue)
	pathStyle    = lipgloss.NewStyle().Foreground(softViolet)
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(successTint)
)

// TranscodeProgress carries the pipeline's running counters into the UI.
type TranscodeProgress struct {
	PacketsRead     int
	FramesProcessed int
	PacketsWritten  int
	BytesRead       int64
	BytesWritten    int64
}

// TranscodeComplete signals the end of the run and carries the summary.
type TranscodeComplete struct {
	Output          string
	PacketsRead     int
	FramesProcessed int
	PacketsWritten  int
	BytesWritten    int64
	PassThrough     bool
	Elapsed         time.Duration
}

// TranscodeFailed aborts the UI with an error the caller reports after
// the program exits.
type TranscodeFailed struct {
	Err error
}

type transcodeModel struct {
	bar       progress.Model
	input     string
	output    string
	inputSize int64
	last      TranscodeProgress
	complete  *TranscodeComplete
	failed    error
	start     time.Time
}

// NewTranscodeModel builds the model for one input/output pair.
// inputSize (bytes) drives the progress fraction; pass 0 when unknown
// and the bar stays empty while the counters below it still update.
func NewTranscodeModel(input, output string, inputSize int64) tea.Model {
	return &transcodeModel{
		bar:       progress.New(progress.WithDefaultGradient(), progress.WithWidth(48)),
		input:     input,
		output:    output,
		inputSize: inputSize,
		start:     time.Now(),
	}
}

func (m *transcodeModel) Init() tea.Cmd {
	return nil
}

func (m *transcodeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case TranscodeProgress:
		m.last = msg
		return m, nil
	case TranscodeComplete:
		c := msg
		m.complete = &c
		return m, tea.Quit
	case TranscodeFailed:
		m.failed = msg.Err
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *transcodeModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("codecflux"))
	b.WriteString("  ")
	b.WriteString(pathStyle.Render(m.input))
	b.WriteString(labelStyle.Render(" → "))
	b.WriteString(pathStyle.Render(m.output))
	b.WriteString("\n\n")

	if m.complete != nil {
		c := m.complete
		verb := "transcoded"
		if c.PassThrough {
			verb = "remuxed"
		}
		b.WriteString(successStyle.Render("✓ " + verb))
		b.WriteString(fmt.Sprintf(" %s packets in, %s out, %s written in %s\n",
			valueStyle.Render(fmt.Sprintf("%d", c.PacketsRead)),
			valueStyle.Render(fmt.Sprintf("%d", c.PacketsWritten)),
			valueStyle.Render(formatBytes(c.BytesWritten)),
			valueStyle.Render(c.Elapsed.Round(time.Millisecond).String())))
		return b.String()
	}
	if m.failed != nil {
		return b.String() // the caller prints the error on stderr
	}

	fraction := 0.0
	if m.inputSize > 0 {
		fraction = float64(m.last.BytesRead) / float64(m.inputSize)
		if fraction > 1 {
			fraction = 1
		}
	}
	b.WriteString(m.bar.ViewAs(fraction))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s   %s %s\n",
		labelStyle.Render("packets"), valueStyle.Render(fmt.Sprintf("%d", m.last.PacketsRead)),
		labelStyle.Render("frames"), valueStyle.Render(fmt.Sprintf("%d", m.last.FramesProcessed)),
		labelStyle.Render("written"), valueStyle.Render(formatBytes(m.last.BytesWritten)),
		labelStyle.Render("elapsed"), valueStyle.Render(time.Since(m.start).Round(time.Millisecond).String())))
	return b.String()
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

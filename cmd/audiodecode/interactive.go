package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	audiodecoder "github.com/wippyai/audio-decoder"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type interactiveCmd struct {
	File string `arg:"" name:"file" help:"Audio file to explore." type:"existingfile"`
}

func (c *interactiveCmd) Run(g *Globals) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("interactive mode needs a terminal")
	}

	ctx := context.Background()
	a, err := newApp(ctx, g)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	m := newInteractiveModel(ctx, a, c.File)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	m.dispose()
	return err
}

type modelState int

const (
	stateLoading modelState = iota
	stateEdit
	stateDecoding
	stateShowResult
)

type interactiveModel struct {
	ctx      context.Context
	app      *app
	session  audioSession
	err      error
	result   *decodeResult
	filename string
	props    audiodecoder.Properties
	inputs   []textinput.Model
	focusIdx int
	multi    bool
	state    modelState
}

type decodeResult struct {
	start    float64
	duration float64
	samples  int
	frames   int
	peak     float64
	rms      float64
	elapsed  time.Duration
}

type openedMsg struct {
	err     error
	session audioSession
	props   audiodecoder.Properties
}

type decodedMsg struct {
	err    error
	result *decodeResult
}

func newInteractiveModel(ctx context.Context, a *app, filename string) *interactiveModel {
	labels := []struct{ prompt, placeholder, value string }{
		{"start: ", "seconds", "0"},
		{"duration: ", "seconds, -1 to end", "1"},
	}
	inputs := make([]textinput.Model, len(labels))
	for i, l := range labels {
		ti := textinput.New()
		ti.Prompt = l.prompt
		ti.Placeholder = l.placeholder
		ti.SetValue(l.value)
		ti.Width = 20
		if i == 0 {
			ti.Focus()
		}
		inputs[i] = ti
	}
	return &interactiveModel{
		ctx:      ctx,
		app:      a,
		filename: filename,
		inputs:   inputs,
		state:    stateLoading,
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.openSession
}

func (m *interactiveModel) openSession() tea.Msg {
	data, err := os.ReadFile(m.filename)
	if err != nil {
		return openedMsg{err: err}
	}
	s, err := m.app.open(m.ctx, data)
	if err != nil {
		return openedMsg{err: err}
	}
	props, err := s.Properties()
	if err != nil {
		s.Dispose(m.ctx)
		return openedMsg{err: err}
	}
	return openedMsg{session: s, props: props}
}

func (m *interactiveModel) dispose() {
	if m.session != nil {
		m.session.Dispose(m.ctx)
		m.session = nil
	}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			if m.state != stateEdit {
				return m, tea.Quit
			}

		case "esc":
			switch m.state {
			case stateShowResult:
				m.state = stateEdit
				m.result = nil
				m.err = nil
				return m, nil
			default:
				return m, tea.Quit
			}

		case "tab":
			if m.state == stateEdit {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
				return m, nil
			}

		case "ctrl+t":
			if m.state == stateEdit {
				m.multi = !m.multi
				return m, nil
			}

		case "enter":
			switch m.state {
			case stateEdit:
				start, duration, err := m.parseInputs()
				if err != nil {
					m.err = err
					return m, nil
				}
				m.err = nil
				m.state = stateDecoding
				return m, m.decode(start, duration, m.multi)

			case stateShowResult:
				m.state = stateEdit
				m.result = nil
				m.err = nil
				return m, nil
			}
		}

	case openedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.session = msg.session
		m.props = msg.props
		m.state = stateEdit
		return m, textinput.Blink

	case decodedMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
		return m, nil
	}

	if m.state == stateEdit {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m *interactiveModel) parseInputs() (float64, float64, error) {
	start, err := strconv.ParseFloat(strings.TrimSpace(m.inputs[0].Value()), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("start: %w", err)
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(m.inputs[1].Value()), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("duration: %w", err)
	}
	if !audiodecoder.ValidRange(start, duration) {
		return 0, 0, fmt.Errorf("invalid range start=%v duration=%v", start, duration)
	}
	return start, duration, nil
}

func (m *interactiveModel) decode(start, duration float64, multi bool) tea.Cmd {
	s := m.session
	channels := 1
	if multi {
		channels = int(m.props.ChannelCount)
	}
	return func() tea.Msg {
		began := time.Now()
		samples, err := s.DecodeAudioData(m.ctx, start, duration, audiodecoder.Options{MultiChannel: multi})
		if err != nil {
			return decodedMsg{err: err}
		}
		peak, rms := levels(samples)
		return decodedMsg{result: &decodeResult{
			start:    start,
			duration: duration,
			samples:  len(samples),
			frames:   len(samples) / max(channels, 1),
			peak:     peak,
			rms:      rms,
			elapsed:  time.Since(began),
		}}
	}
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state == stateLoading {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if m.state == stateLoading {
		return "Opening " + m.filename + "..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Audio Decoder"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n")
	b.WriteString(typeStyle.Render(fmt.Sprintf("%s  %d Hz  %d ch  %.3fs",
		m.props.Encoding, m.props.SampleRate, m.props.ChannelCount, m.props.Duration)))
	b.WriteString("\n\n")

	switch m.state {
	case stateEdit:
		for _, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString("\n")
		}
		mode := "downmix"
		if m.multi {
			mode = "multi-channel"
		}
		b.WriteString("channels: ")
		b.WriteString(selectedStyle.Render(" " + mode + " "))
		b.WriteString("\n\n")
		if m.err != nil {
			b.WriteString(errorStyle.Render(m.err.Error()))
			b.WriteString("\n\n")
		}
		b.WriteString(helpStyle.Render("tab next field • ctrl+t channels • enter decode • esc quit"))

	case stateDecoding:
		b.WriteString("Decoding...")

	case stateShowResult:
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			r := m.result
			b.WriteString(fmt.Sprintf("Decoded %s from %s\n\n",
				funcStyle.Render(fmt.Sprintf("%gs", r.duration)), funcStyle.Render(fmt.Sprintf("%gs", r.start))))
			b.WriteString(resultStyle.Render(fmt.Sprintf("%d samples, %d frames in %s\npeak %.4f  rms %.4f",
				r.samples, r.frames, r.elapsed.Round(time.Microsecond), r.peak, r.rms)))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

// Package tui provides the embedded PTY shell: a sandboxed bash
// session running on a pseudo-terminal inside a scrollback viewport.
// The shell gets a whitelisted environment so the host's dotfiles and
// prompt machinery cannot interfere with it.
package tui

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/creack/pty"
)

// essentialVars is the environment whitelist for the embedded shell.
// Everything else from the host environment is dropped.
var essentialVars = []string{
	"PATH", "HOME", "USER", "LOGNAME", "LANG", "LC_ALL", "LC_CTYPE",
}

// shellPrompt keeps the embedded bash prompt short and predictable.
const shellPrompt = `\w \$ `

const readChunk = 4096

type ptyOutputMsg []byte

type ptyClosedMsg struct{ err error }

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	frameStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
)

// ShellModel is the bubbletea model for the embedded shell.
type ShellModel struct {
	viewport viewport.Model
	input    textinput.Model

	cmd    *exec.Cmd
	ptmx   *os.File
	output chan tea.Msg

	content strings.Builder
	ready   bool
	closed  bool
	err     error
}

// NewShell launches a sandboxed bash on a pty and returns the model
// driving it. Call Close when the program exits.
func NewShell() (*ShellModel, error) {
	cmd := exec.Command("bash", "--norc", "--noprofile")
	cmd.Env = sandboxedEnv(os.Environ())

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return nil, fmt.Errorf("starting shell on pty: %w", err)
	}

	input := textinput.New()
	input.Placeholder = "Enter a command..."
	input.Focus()

	m := &ShellModel{
		cmd:    cmd,
		ptmx:   ptmx,
		input:  input,
		output: make(chan tea.Msg, 16),
	}
	go m.readPump()
	return m, nil
}

// sandboxedEnv filters environ down to the whitelist and pins TERM and
// PS1.
func sandboxedEnv(environ []string) []string {
	var env []string
	for _, kv := range environ {
		name, _, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		for _, want := range essentialVars {
			if name == want {
				env = append(env, kv)
				break
			}
		}
	}
	env = append(env, "TERM=xterm-256color", "PS1="+shellPrompt)
	return env
}

// readPump drains the pty into the output channel until it closes.
func (m *ShellModel) readPump() {
	buf := make([]byte, readChunk)
	for {
		n, err := m.ptmx.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			m.output <- ptyOutputMsg(chunk)
		}
		if err != nil {
			m.output <- ptyClosedMsg{err: err}
			return
		}
	}
}

// Close tears down the pty and the shell process.
func (m *ShellModel) Close() {
	_ = m.ptmx.Close()
	if m.cmd.Process != nil {
		_ = m.cmd.Process.Kill()
	}
	_ = m.cmd.Wait()
}

func (m *ShellModel) waitOutput() tea.Cmd {
	return func() tea.Msg { return <-m.output }
}

func (m *ShellModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitOutput())
}

func (m *ShellModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		headerHeight := 2
		inputHeight := 2
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-headerHeight-inputHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - headerHeight - inputHeight
		}
		m.input.Width = msg.Width - 4
		_ = pty.Setsize(m.ptmx, &pty.Winsize{
			Rows: uint16(m.viewport.Height),
			Cols: uint16(msg.Width),
		})
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyEnter:
			command := m.input.Value()
			m.input.SetValue("")
			if strings.TrimSpace(command) == "" {
				return m, nil
			}
			m.submit(command)
			return m, nil
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case ptyOutputMsg:
		m.content.Write(msg)
		m.refresh()
		m.viewport.GotoBottom()
		return m, m.waitOutput()

	case ptyClosedMsg:
		m.closed = true
		m.err = msg.err
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit writes one command line into the pty and mirrors `cd` into
// the host process so relative paths elsewhere in the program follow
// the shell.
func (m *ShellModel) submit(command string) {
	if _, err := m.ptmx.WriteString(command + "\n"); err != nil {
		m.err = err
		return
	}
	if target, ok := cdTarget(command); ok {
		// Best effort; the shell reports its own error to the user.
		_ = os.Chdir(target)
	}
}

// cdTarget reports whether command is a `cd` and resolves the
// directory it names, with ~ expansion.
func cdTarget(command string) (string, bool) {
	fields := strings.Fields(command)
	if len(fields) < 2 || fields[0] != "cd" {
		return "", false
	}
	target := fields[1]
	if target == "~" || strings.HasPrefix(target, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", false
		}
		target = home + target[1:]
	}
	return target, true
}

func (m *ShellModel) refresh() {
	if m.ready {
		m.viewport.SetContent(m.content.String())
	}
}

func (m *ShellModel) View() string {
	if !m.ready {
		return "starting shell..."
	}
	header := headerStyle.Render("muxcmd shell") + frameStyle.Render("  (ctrl+c to quit)")
	return header + "\n\n" + m.viewport.View() + "\n\n> " + m.input.View()
}

package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/atomicedu/atomic-backend/internal/client"
	"github.com/atomicedu/atomic-backend/internal/models"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive chat with the Atomic tutor",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return fmt.Errorf("chat requires an interactive terminal")
		}
		if authToken == "" {
			return fmt.Errorf("chat requires a bearer token (--token or ATOMIC_TOKEN)")
		}

		c := client.New(serverURL, authToken)

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		if err := c.Health(ctx); err != nil {
			return fmt.Errorf("server unreachable: %w", err)
		}
		updates, err := c.Watch(ctx)
		if err != nil {
			return fmt.Errorf("subscribe to session: %w", err)
		}

		return runChat(c, updates)
	},
}

// Theme holds the color scheme for the chat display.
type Theme struct {
	User      lipgloss.Color
	Assistant lipgloss.Color
	Pending   lipgloss.Color
	Error     lipgloss.Color
	Hint      lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	User:      lipgloss.Color("#5FAFD7"), // light blue
	Assistant: lipgloss.Color("#00D787"), // green
	Pending:   lipgloss.Color("#6C6C6C"), // dim gray
	Error:     lipgloss.Color("#FF005F"), // red
	Hint:      lipgloss.Color("#6C6C6C"),
}

func (t Theme) userStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.User).Bold(true)
}

func (t Theme) assistantStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Assistant)
}

func (t Theme) pendingStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Pending).Italic(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// turnsMsg carries a transcript snapshot from the watch stream.
type turnsMsg []client.Turn

// watchClosedMsg signals the watch stream ended.
type watchClosedMsg struct{}

// sendResultMsg reports the outcome of submitting a turn.
type sendResultMsg struct {
	err error
}

// chatModel is the bubbletea model for the chat session.
type chatModel struct {
	client  *client.Client
	updates <-chan []client.Turn
	input   textinput.Model
	theme   Theme
	turns   []client.Turn
	sending bool
	err     error
}

func newChatModel(c *client.Client, updates <-chan []client.Turn) chatModel {
	ti := textinput.New()
	ti.Placeholder = "Ask a chemistry question..."
	ti.Focus()

	return chatModel{
		client:  c,
		updates: updates,
		input:   ti,
		theme:   defaultTheme,
	}
}

// Init returns the initial command (watch listener).
func (m chatModel) Init() tea.Cmd {
	return m.listen()
}

// Update handles messages and returns the updated model.
func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			if text == "" || m.sending {
				return m, nil
			}
			m.input.Reset()
			m.sending = true
			m.err = nil
			return m, m.send(text)
		}

	case turnsMsg:
		m.turns = msg
		return m, m.listen()

	case watchClosedMsg:
		m.err = fmt.Errorf("connection to server lost")
		return m, tea.Quit

	case sendResultMsg:
		m.sending = false
		if msg.err != nil {
			m.err = msg.err
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the transcript and input line.
func (m chatModel) View() tea.View {
	var b strings.Builder

	for _, t := range m.turns {
		switch {
		case t.IsUser:
			b.WriteString(m.theme.userStyle().Render("you") + "  " + t.Content + "\n")
		case t.Status == models.StatusProcessing:
			b.WriteString(m.theme.pendingStyle().Render("atomic is thinking...") + "\n")
		case t.Status == models.StatusError:
			b.WriteString(m.theme.errorStyle().Render("atomic  "+t.Content) + "\n")
		default:
			b.WriteString(m.theme.assistantStyle().Render("atomic") + "  " + t.Content + "\n")
		}
	}

	if m.err != nil {
		b.WriteString(m.theme.errorStyle().Render(fmt.Sprintf("error: %v", m.err)) + "\n")
	}

	b.WriteString("\n" + m.input.View() + "\n")
	b.WriteString(m.theme.hintStyle().Render("Enter to send, Esc to quit") + "\n")

	return tea.NewView(b.String())
}

// listen waits for the next transcript snapshot from the watch stream.
func (m chatModel) listen() tea.Cmd {
	return func() tea.Msg {
		turns, ok := <-m.updates
		if !ok {
			return watchClosedMsg{}
		}
		return turnsMsg(turns)
	}
}

// send submits a text turn. The reply arrives through the watch stream, so
// only the submission error is reported here.
func (m chatModel) send(text string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
		defer cancel()

		_, err := m.client.SendTurn(ctx, text)
		return sendResultMsg{err: err}
	}
}

// runChat runs the interactive chat UI until the user quits.
func runChat(c *client.Client, updates <-chan []client.Turn) error {
	p := tea.NewProgram(newChatModel(c, updates))

	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("chat UI error: %w", err)
	}
	if m, ok := finalModel.(chatModel); ok && m.err != nil {
		return m.err
	}
	return nil
}

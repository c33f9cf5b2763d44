// Package tui renders the game view in the terminal with bubbletea.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/R3E-Network/random-winner-game/internal/chain"
	"github.com/R3E-Network/random-winner-game/internal/controller"
)

// Controller is the subset of *controller.Controller the view drives.
type Controller interface {
	State() controller.UiState
	Connect(ctx context.Context) error
	Refresh(ctx context.Context) error
	StartGame(ctx context.Context, maxPlayers int, entryFee string) error
	JoinGame(ctx context.Context) error
}

// Options describes the network shown in the header.
type Options struct {
	Network  string
	ChainID  int64
	Currency string
}

type stateMsg struct{}

type opDoneMsg struct {
	op  string
	err error
}

const (
	fieldMaxPlayers = iota
	fieldEntryFee
)

// Model is the bubbletea model of the game screen.
type Model struct {
	ctx     context.Context
	ctrl    Controller
	updates <-chan struct{}
	opts    Options

	state   controller.UiState
	spinner spinner.Model
	logs    viewport.Model
	inputs  []textinput.Model
	focus   int

	approval *approvalMsg
	alert    string
	status   string
	statusOK bool
	width    int
	height   int
}

// New creates the model. updates signals controller state changes.
func New(ctx context.Context, ctrl Controller, updates <-chan struct{}, opts Options) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = accentStyle

	maxPlayers := textinput.New()
	maxPlayers.Placeholder = "max players"
	maxPlayers.CharLimit = 3
	maxPlayers.Width = 12
	maxPlayers.Validate = func(s string) error {
		if s == "" {
			return nil
		}
		_, err := strconv.ParseUint(s, 10, 8)
		return err
	}
	maxPlayers.Focus()

	entryFee := textinput.New()
	entryFee.Placeholder = "entry fee (" + opts.Currency + ")"
	entryFee.CharLimit = 32
	entryFee.Width = 20

	logs := viewport.New(80, 8)

	return Model{
		ctx:     ctx,
		ctrl:    ctrl,
		updates: updates,
		opts:    opts,
		state:   ctrl.State(),
		spinner: sp,
		logs:    logs,
		inputs:  []textinput.Model{maxPlayers, entryFee},
		width:   80,
	}
}

// Init implements tea.Model. A disconnected controller is connected right
// away, so the approval prompt is the first thing shown.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{waitForUpdate(m.updates), m.spinner.Tick, textinput.Blink}
	if !m.state.WalletConnected && m.state.Phase == controller.PhaseDisconnected {
		cmds = append(cmds, m.run("connect", m.ctrl.Connect))
	}
	return tea.Batch(cmds...)
}

func waitForUpdate(updates <-chan struct{}) tea.Cmd {
	if updates == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-updates; !ok {
			return nil
		}
		return stateMsg{}
	}
}

func (m Model) run(op string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{op: op, err: fn(m.ctx)}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.logs.Width = msg.Width
		m.logs.Height = max(3, msg.Height-14)
		m.refreshLogs()
		return m, nil

	case stateMsg:
		m.state = m.ctrl.State()
		m.refreshLogs()
		return m, waitForUpdate(m.updates)

	case approvalMsg:
		m.approval = &msg
		return m, nil

	case alertMsg:
		m.alert = string(msg)
		return m, nil

	case opDoneMsg:
		m.state = m.ctrl.State()
		m.refreshLogs()
		if msg.err != nil {
			m.status, m.statusOK = fmt.Sprintf("%s failed: %v", msg.op, msg.err), false
		} else {
			m.status, m.statusOK = doneMessage(msg.op), true
			if msg.op == chain.MethodStartGame {
				m.resetForm()
			}
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		m.denyPending()
		return m, tea.Quit
	}

	if m.approval != nil {
		switch key {
		case "y", "Y", "enter":
			m.approval.reply <- true
			m.approval = nil
		case "n", "N", "esc":
			m.approval.reply <- false
			m.approval = nil
		}
		return m, nil
	}

	if m.alert != "" {
		m.alert = ""
		return m, nil
	}

	panel := m.state.Panel()
	if panel == controller.PanelStartGameForm {
		switch key {
		case "tab", "shift+tab", "up", "down":
			m.inputs[m.focus].Blur()
			m.focus = (m.focus + 1) % len(m.inputs)
			return m, m.inputs[m.focus].Focus()
		case "enter":
			return m.submitForm()
		case "esc":
			m.resetForm()
			return m, nil
		}
		var cmd tea.Cmd
		m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
		return m, cmd
	}

	switch key {
	case "q":
		return m, tea.Quit
	case "c":
		if panel == controller.PanelConnectWallet && m.state.Phase != controller.PhaseConnecting {
			m.status = ""
			return m, m.run("connect", m.ctrl.Connect)
		}
	case "j", "enter":
		if panel == controller.PanelJoinGame {
			m.status = ""
			return m, m.run(chain.MethodJoinGame, m.ctrl.JoinGame)
		}
	case "r":
		if m.state.WalletConnected {
			return m, m.run("refresh", m.ctrl.Refresh)
		}
	}

	var cmd tea.Cmd
	m.logs, cmd = m.logs.Update(msg)
	return m, cmd
}

func (m Model) submitForm() (tea.Model, tea.Cmd) {
	maxPlayers, err := strconv.Atoi(strings.TrimSpace(m.inputs[fieldMaxPlayers].Value()))
	if err != nil {
		m.status, m.statusOK = "max players must be a number", false
		return m, nil
	}
	fee := strings.TrimSpace(m.inputs[fieldEntryFee].Value())
	m.status = ""
	return m, m.run(chain.MethodStartGame, func(ctx context.Context) error {
		return m.ctrl.StartGame(ctx, maxPlayers, fee)
	})
}

func (m *Model) resetForm() {
	for i := range m.inputs {
		m.inputs[i].Reset()
		m.inputs[i].Blur()
	}
	m.focus = fieldMaxPlayers
	m.inputs[m.focus].Focus()
}

func (m *Model) denyPending() {
	if m.approval != nil {
		m.approval.reply <- false
		m.approval = nil
	}
}

func (m *Model) refreshLogs() {
	width := m.logs.Width
	lines := make([]string, 0, len(m.state.Logs))
	for _, l := range m.state.Logs {
		lines = append(lines, runewidth.Truncate(l, width, "…"))
	}
	m.logs.SetContent(strings.Join(lines, "\n"))
}

func doneMessage(op string) string {
	switch op {
	case chain.MethodStartGame:
		return "Game started"
	case chain.MethodJoinGame:
		return "Joined the game"
	case "connect":
		return "Wallet connected"
	default:
		return "Refreshed"
	}
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	header := titleStyle.Render("Random Winner Game")
	network := labelStyle.Render(fmt.Sprintf(" %s (%d)", m.opts.Network, m.opts.ChainID))
	b.WriteString(header + network + "\n\n")

	if m.state.WalletConnected {
		acct := m.state.Account.Hex()
		if m.state.IsOwner {
			acct += " " + ownerBadge.Render("owner")
		}
		b.WriteString(labelStyle.Render("Account ") + acct + "\n")
		if m.state.GameStarted {
			b.WriteString(labelStyle.Render("Game    ") + fmt.Sprintf("#%s  %d/%d players  entry %s %s\n",
				m.state.GameID, len(m.state.Players), m.state.MaxPlayers,
				chain.FormatUnits(m.state.EntryFee), m.opts.Currency))
		}
		b.WriteString("\n")
	}

	switch {
	case m.approval != nil:
		b.WriteString(promptStyle.Render(fmt.Sprintf(
			"Allow this app to use account %s on %s (chain %d)?\n[y] approve  [n] reject",
			m.approval.req.Account.Hex(), m.approval.req.Network, m.approval.req.ChainID)))
	case m.alert != "":
		b.WriteString(alertStyle.Render(m.alert + "\n\npress any key"))
	default:
		if panel := m.panelView(); panel != "" {
			b.WriteString(panelStyle.Render(panel))
		}
	}
	b.WriteString("\n\n")

	b.WriteString(labelStyle.Render("Logs") + "\n")
	b.WriteString(logsStyle.Width(m.logs.Width).Render(m.logs.View()) + "\n")

	if m.status != "" {
		if m.statusOK {
			b.WriteString(okStyle.Render(m.status) + "\n")
		} else {
			b.WriteString(errorStyle.Render(runewidth.Truncate(m.status, max(20, m.width), "…")) + "\n")
		}
	}
	b.WriteString(helpStyle.Render(m.help()))
	return b.String()
}

func (m Model) panelView() string {
	switch m.state.Panel() {
	case controller.PanelConnectWallet:
		if m.state.Phase == controller.PhaseConnecting {
			return m.spinner.View() + " Waiting for wallet approval..."
		}
		return buttonStyle.Render("Connect your wallet") + helpStyle.Render("  [c]")
	case controller.PanelChoosingWinner:
		return disabledStyle.Render("Choosing winner...")
	case controller.PanelLoading:
		return m.spinner.View() + " Loading..."
	case controller.PanelJoinGame:
		label := fmt.Sprintf("Join Game (%s %s)", chain.FormatUnits(m.state.EntryFee), m.opts.Currency)
		out := buttonStyle.Render(label) + helpStyle.Render("  [j]")
		if m.state.Joined() {
			out += "\n" + labelStyle.Render("you are in this game")
		}
		return out
	case controller.PanelStartGameForm:
		return lipgloss.JoinVertical(lipgloss.Left,
			m.inputs[fieldMaxPlayers].View(),
			m.inputs[fieldEntryFee].View(),
			buttonStyle.Render("Start Game")+helpStyle.Render("  [enter]"),
		)
	default:
		return ""
	}
}

func (m Model) help() string {
	switch {
	case m.approval != nil:
		return "y approve • n reject • ctrl+c quit"
	case m.state.Panel() == controller.PanelStartGameForm:
		return "tab switch field • enter start • esc clear • ctrl+c quit"
	case m.state.WalletConnected:
		return "r refresh • ↑/↓ scroll logs • q quit"
	default:
		return "c connect • q quit"
	}
}

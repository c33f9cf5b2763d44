package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/R3E-Network/random-winner-game/internal/chain"
)

// approvalMsg asks the user to authorize the wallet.
type approvalMsg struct {
	req   chain.ApprovalRequest
	reply chan<- bool
}

// alertMsg is a blocking notice, such as a network mismatch.
type alertMsg string

// Prompter routes wallet approval prompts and alerts into a running program.
// It implements chain.Approver and chain.Alerter.
type Prompter struct {
	mu   sync.Mutex
	send func(tea.Msg)
}

var (
	_ chain.Approver = (*Prompter)(nil)
	_ chain.Alerter  = (*Prompter)(nil)
)

// NewPrompter creates an unbound prompter. Approvals are refused until Bind
// is called.
func NewPrompter() *Prompter {
	return &Prompter{}
}

// Bind attaches the prompter to a program, typically program.Send.
func (p *Prompter) Bind(send func(tea.Msg)) {
	p.mu.Lock()
	p.send = send
	p.mu.Unlock()
}

func (p *Prompter) sender() func(tea.Msg) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.send
}

// Approve shows the prompt and waits for the answer or ctx.
func (p *Prompter) Approve(ctx context.Context, req chain.ApprovalRequest) (bool, error) {
	send := p.sender()
	if send == nil {
		return false, nil
	}
	reply := make(chan bool, 1)
	send(approvalMsg{req: req, reply: reply})
	select {
	case ok := <-reply:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Alert shows message until dismissed.
func (p *Prompter) Alert(message string) {
	if send := p.sender(); send != nil {
		send(alertMsg(message))
	}
}

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/R3E-Network/random-winner-game/internal/chain"
)

// confirmApprover asks for wallet approval on a line-oriented terminal.
type confirmApprover struct {
	in  *bufio.Reader
	out io.Writer
}

func newConfirmApprover(in io.Reader, out io.Writer) *confirmApprover {
	return &confirmApprover{in: bufio.NewReader(in), out: out}
}

// Approve implements chain.Approver. Anything but y/yes is a rejection.
func (c *confirmApprover) Approve(ctx context.Context, req chain.ApprovalRequest) (bool, error) {
	fmt.Fprintf(c.out, "Allow this app to use account %s on %s (chain %d)? [y/N] ",
		req.Account.Hex(), req.Network, req.ChainID)

	type answer struct {
		line string
		err  error
	}
	ch := make(chan answer, 1)
	go func() {
		line, err := c.in.ReadString('\n')
		ch <- answer{line, err}
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(c.out)
		return false, ctx.Err()
	case a := <-ch:
		if a.err != nil && a.err != io.EOF {
			return false, a.err
		}
		switch strings.ToLower(strings.TrimSpace(a.line)) {
		case "y", "yes":
			return true, nil
		default:
			return false, nil
		}
	}
}

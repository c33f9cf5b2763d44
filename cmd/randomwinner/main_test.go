package main

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/random-winner-game/internal/chain"
	"github.com/R3E-Network/random-winner-game/internal/cli"
	"github.com/R3E-Network/random-winner-game/internal/controller"
	"github.com/R3E-Network/random-winner-game/internal/errors"
	"github.com/R3E-Network/random-winner-game/internal/httpapi"
)

const testKey = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"RWG_NETWORK", "RWG_NETWORKS_FILE", "RWG_RPC_URL", "QUICKNODE_HTTP_URL",
		"PRIVATE_KEY", "RWG_KEYSTORE", "RWG_KEYSTORE_PASSPHRASE", "RWG_CONTRACT_ADDRESS",
		"RWG_SUBGRAPH_URL", "RWG_LOG_FILE", "RWG_HTTP_ADDR",
	} {
		t.Setenv(key, "")
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "missing.env")))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// runMain executes args the way main does and returns the combined output and
// the exit status.
func runMain(t *testing.T, args ...string) (string, int) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "missing.env")))
	code := execute(context.Background(), cmd)
	return out.String(), code
}

func TestExecute_PrintsUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing required flags", []string{"start"}, "required flag"},
		{"unknown command", []string{"bogus"}, "unknown command"},
		{"bad flag value", []string{"start", "--max-players", "x", "--entry-fee", "1"}, "invalid argument"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, code := runMain(t, tt.args...)
			assert.Equal(t, exitFailure, code)
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestExecute_ReportedErrorsPrintOnce(t *testing.T) {
	clearEnv(t)

	out, code := runMain(t, "networks", "--network", "nowhere")
	assert.Equal(t, exitInput, code)
	assert.Equal(t, 1, strings.Count(out, "unknown network"), out)
}

func TestExecute_Success(t *testing.T) {
	out, code := runMain(t, "version")
	assert.Equal(t, exitOK, code)
	assert.Equal(t, "randomwinner dev (none)\n", out)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitOK},
		{"plain", fmt.Errorf("boom"), exitFailure},
		{"invalid input", errors.InvalidInput("entryFee", "bad"), exitInput},
		{"invalid config", reported(errors.InvalidConfig("RWG_RPC_URL", "missing")), exitInput},
		{"rejected", errors.UserRejected(nil), exitRejected},
		{"network mismatch", fmt.Errorf("connect: %w", errors.NetworkMismatch(80001, 1)), exitNetwork},
		{"contract call", errors.ContractCallFailed("joinGame", nil), exitRemote},
		{"indexer", errors.IndexerFetchFailed(nil), exitRemote},
		{"busy", errors.Busy("joinGame"), exitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "randomwinner dev (none)\n", out)
}

func TestNetworksCommand(t *testing.T) {
	clearEnv(t)
	t.Setenv("POLYGONSCAN_KEY", "secret")

	out, err := run(t, "networks", "--network", "amoy")
	require.NoError(t, err)
	assert.Contains(t, out, "0.8.18")
	assert.Contains(t, out, "* amoy")
	assert.Contains(t, out, "  mumbai")
	assert.Contains(t, out, "80001")
	assert.Contains(t, out, "polygonMumbai (POLYGONSCAN_KEY set)")
	assert.Contains(t, out, "sepolia (ETHERSCAN_KEY missing)")
	assert.NotContains(t, out, "secret")
}

func TestNetworksCommand_UnknownNetwork(t *testing.T) {
	clearEnv(t)

	out, err := run(t, "networks", "--network", "nowhere")
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidConfig, errors.CodeOf(err))
	assert.Contains(t, out, "unknown network")
}

func TestStatusCommand_RequiresConfig(t *testing.T) {
	clearEnv(t)

	out, err := run(t, "status")
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidConfig, errors.CodeOf(err))
	assert.Contains(t, out, "RWG_RPC_URL")
}

func TestStartCommand_RequiresFlags(t *testing.T) {
	_, err := run(t, "start", "--max-players", "2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entry-fee")
}

func TestNewApp(t *testing.T) {
	clearEnv(t)
	t.Setenv("RWG_RPC_URL", "http://127.0.0.1:1")
	t.Setenv("RWG_CONTRACT_ADDRESS", "0x00000000000000000000000000000000000000c1")
	t.Setenv("RWG_SUBGRAPH_URL", "http://127.0.0.1:1/subgraph")
	t.Setenv("PRIVATE_KEY", "0x"+testKey)

	a, err := newApp(appOptions{envFile: filepath.Join(t.TempDir(), "missing.env"), quiet: true})
	require.NoError(t, err)
	assert.Equal(t, "mumbai", a.cfg.Network.Name)
	assert.Equal(t, controller.PanelConnectWallet, a.ctrl.State().Panel())

	updates, cancel := a.hub.Subscribe()
	defer cancel()
	a.Close()

	select {
	case _, ok := <-updates:
		for ok {
			_, ok = <-updates
		}
	case <-time.After(time.Second):
		t.Fatal("hub not closed after the controller closed")
	}
}

func TestNewApp_BadKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("RWG_RPC_URL", "http://127.0.0.1:1")
	t.Setenv("RWG_CONTRACT_ADDRESS", "0x00000000000000000000000000000000000000c1")
	t.Setenv("RWG_SUBGRAPH_URL", "http://127.0.0.1:1/subgraph")
	t.Setenv("PRIVATE_KEY", "not-a-key")

	_, err := newApp(appOptions{envFile: filepath.Join(t.TempDir(), "missing.env"), quiet: true})
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidConfig, errors.CodeOf(err))
}

func TestForward(t *testing.T) {
	hub := httpapi.NewHub()
	sub, cancel := hub.Subscribe()
	defer cancel()

	updates := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		forward(updates, hub)
		close(done)
	}()

	updates <- struct{}{}
	select {
	case <-sub:
	case <-time.After(time.Second):
		t.Fatal("signal not forwarded")
	}

	close(updates)
	<-done
	_, ok := <-sub
	assert.False(t, ok)
}

func TestConfirmApprover(t *testing.T) {
	req := chain.ApprovalRequest{Account: common.HexToAddress("0xa1"), Network: "mumbai", ChainID: 80001}

	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			var out bytes.Buffer
			ok, err := newConfirmApprover(strings.NewReader(tt.input), &out).Approve(context.Background(), req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			assert.Contains(t, out.String(), "on mumbai (chain 80001)? [y/N]")
		})
	}
}

type blockingReader struct{}

func (blockingReader) Read([]byte) (int, error) { select {} }

func TestConfirmApprover_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, err := newConfirmApprover(blockingReader{}, &bytes.Buffer{}).Approve(ctx, chain.ApprovalRequest{})
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWatcher_PrintsChangesOnly(t *testing.T) {
	var out bytes.Buffer
	w := &watcher{printer: cli.NewPrinter(&out), currency: "MATIC"}

	s := controller.UiState{
		WalletConnected: true,
		GameStarted:     true,
		MaxPlayers:      2,
		EntryFee:        big.NewInt(100_000_000_000_000_000),
		Logs:            []string{"Game 1 has started"},
	}
	w.observe(s)
	assert.Contains(t, out.String(), "Game 1 has started")
	assert.Contains(t, out.String(), "join game (0.1 MATIC)")

	out.Reset()
	w.observe(s)
	assert.Empty(t, out.String())

	s.LastError = "indexer unavailable"
	w.observe(s)
	assert.Contains(t, out.String(), "indexer unavailable")
	assert.NotContains(t, out.String(), "Game 1 has started")
}

func TestPrintStatus(t *testing.T) {
	var out bytes.Buffer
	winner := common.HexToAddress("0xb2")
	printStatus(cli.NewPrinter(&out), controller.UiState{
		WalletConnected: true,
		GameID:          "4",
		Winner:          &winner,
		Logs:            []string{"Last game 4 has ended"},
	}, "MATIC")

	text := out.String()
	assert.Contains(t, text, "game:")
	assert.Contains(t, text, winner.Hex())
	assert.Contains(t, text, "Last game 4 has ended")
	assert.NotContains(t, text, "entry fee")
}

package main

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/R3E-Network/random-winner-game/internal/chain"
	"github.com/R3E-Network/random-winner-game/internal/cli"
	"github.com/R3E-Network/random-winner-game/internal/config"
	"github.com/R3E-Network/random-winner-game/internal/controller"
	"github.com/R3E-Network/random-winner-game/internal/tui"
)

type rootFlags struct {
	envFile string
	network string
	yes     bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "randomwinner",
		Short:         "Play the random winner game from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUI(cmd, flags)
		},
	}
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	root.PersistentFlags().StringVarP(&flags.network, "network", "n", "", "network name from the networks file (overrides RWG_NETWORK)")
	root.PersistentFlags().BoolVarP(&flags.yes, "yes", "y", false, "approve the wallet connection without prompting")

	root.AddCommand(
		newUICmd(flags),
		newWatchCmd(flags),
		newStatusCmd(flags),
		newStartCmd(flags),
		newJoinCmd(flags),
		newNetworksCmd(flags),
		newVersionCmd(),
	)
	return root
}

// headless builds an app whose approval prompt and alerts go to the terminal.
func headless(cmd *cobra.Command, flags *rootFlags) (*app, *cli.Printer, error) {
	printer := cli.NewPrinter(cmd.OutOrStdout())
	var approver chain.Approver = newConfirmApprover(cmd.InOrStdin(), cmd.OutOrStdout())
	if flags.yes {
		approver = chain.AutoApprove
	}
	a, err := newApp(appOptions{
		envFile:  flags.envFile,
		network:  flags.network,
		approver: approver,
		alerter:  chain.AlerterFunc(func(msg string) { printer.Warning("%s", msg) }),
	})
	if err != nil {
		printer.Error("%v", err)
		return nil, nil, reported(err)
	}
	return a, printer, nil
}

func connect(ctx context.Context, a *app, printer *cli.Printer) error {
	if err := a.ctrl.Connect(ctx); err != nil {
		printer.Error("connect: %v", err)
		return reported(err)
	}
	return nil
}

func newUICmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ui",
		Short: "Open the interactive game screen (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUI(cmd, flags)
		},
	}
}

func runUI(cmd *cobra.Command, flags *rootFlags) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	prompter := tui.NewPrompter()
	a, err := newApp(appOptions{
		envFile:  flags.envFile,
		network:  flags.network,
		approver: approverFor(flags, prompter),
		alerter:  prompter,
		quiet:    true,
	})
	if err != nil {
		cli.NewPrinter(cmd.ErrOrStderr()).Error("%v", err)
		return reported(err)
	}
	defer a.Close()

	statusErr := a.serveStatus(ctx)

	updates, unsubscribe := a.hub.Subscribe()
	defer unsubscribe()

	model := tui.New(ctx, a.ctrl, updates, tui.Options{
		Network:  a.cfg.Network.Name,
		ChainID:  a.cfg.Network.ChainID,
		Currency: a.cfg.Network.Currency,
	})
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	prompter.Bind(program.Send)

	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		cli.NewPrinter(cmd.ErrOrStderr()).Error("%v", err)
		return reported(err)
	}
	cancel()
	if err := <-statusErr; err != nil {
		a.log.WithError(err).Warn("status API stopped")
	}
	return nil
}

func approverFor(flags *rootFlags, prompter *tui.Prompter) chain.Approver {
	if flags.yes {
		return chain.AutoApprove
	}
	return prompter
}

func newWatchCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow the game headless, printing logs as they change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, printer, err := headless(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			statusErr := a.serveStatus(ctx)
			updates, unsubscribe := a.hub.Subscribe()
			defer unsubscribe()

			if err := connect(ctx, a, printer); err != nil {
				return err
			}
			printer.Success("Connected as %s on %s", a.connector.Account().Hex(), a.cfg.Network.Name)

			w := &watcher{printer: printer, currency: a.cfg.Network.Currency}
			w.observe(a.ctrl.State())
			for {
				select {
				case <-ctx.Done():
					if statusErr != nil {
						return <-statusErr
					}
					return nil
				case err := <-statusErr:
					if err != nil {
						return err
					}
					statusErr = nil
				case _, ok := <-updates:
					if !ok {
						return nil
					}
					w.observe(a.ctrl.State())
				}
			}
		},
	}
}

// watcher prints the parts of UiState that changed since the last call.
type watcher struct {
	printer  *cli.Printer
	currency string
	logs     string
	panel    controller.Panel
	lastErr  string
}

func (w *watcher) observe(s controller.UiState) {
	if logs := strings.Join(s.Logs, "\n"); logs != w.logs {
		w.logs = logs
		for _, line := range s.Logs {
			w.printer.Info("%s", line)
		}
	}
	if panel := s.Panel(); panel != w.panel {
		w.panel = panel
		w.printer.Field("panel", describePanel(s, w.currency))
	}
	if s.LastError != w.lastErr {
		w.lastErr = s.LastError
		if s.LastError != "" {
			w.printer.Warning("%s", s.LastError)
		}
	}
}

func describePanel(s controller.UiState, currency string) string {
	switch s.Panel() {
	case controller.PanelConnectWallet:
		return "connect your wallet"
	case controller.PanelChoosingWinner:
		return "choosing winner (disabled)"
	case controller.PanelLoading:
		return "loading"
	case controller.PanelJoinGame:
		return fmt.Sprintf("join game (%s %s)", chain.FormatUnits(s.EntryFee), currency)
	case controller.PanelStartGameForm:
		return "start game form (owner)"
	default:
		return "none"
	}
}

func newStatusCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the current game once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, printer, err := headless(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := connect(cmd.Context(), a, printer); err != nil {
				return err
			}
			printStatus(printer, a.ctrl.State(), a.cfg.Network.Currency)
			return nil
		},
	}
}

func printStatus(p *cli.Printer, s controller.UiState, currency string) {
	p.Field("account", s.Account.Hex())
	p.Field("owner", s.IsOwner)
	p.Field("chain id", s.ChainID)
	if s.GameID != "" {
		p.Field("game", s.GameID)
	}
	p.Field("started", s.GameStarted)
	if s.GameStarted {
		p.Field("players", fmt.Sprintf("%d/%d", len(s.Players), s.MaxPlayers))
		p.Field("entry fee", chain.FormatUnits(s.EntryFee)+" "+currency)
	}
	if s.Winner != nil {
		p.Field("winner", s.Winner.Hex())
	}
	p.Field("panel", describePanel(s, currency))
	for _, line := range s.Logs {
		p.Info("%s", line)
	}
	if s.LastError != "" {
		p.Warning("%s", s.LastError)
	}
}

func newStartCmd(flags *rootFlags) *cobra.Command {
	var (
		maxPlayers int
		entryFee   string
	)
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a new game (contract owner only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, printer, err := headless(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if err := connect(ctx, a, printer); err != nil {
				return err
			}
			if !a.ctrl.State().IsOwner {
				printer.Warning("%s is not the contract owner; the transaction will revert", a.connector.Account().Hex())
			}
			label := fmt.Sprintf("Starting game for %d players at %s %s", maxPlayers, entryFee, a.cfg.Network.Currency)
			return reported(printer.Run(label, func() error {
				return a.ctrl.StartGame(ctx, maxPlayers, entryFee)
			}))
		},
	}
	cmd.Flags().IntVar(&maxPlayers, "max-players", 0, "number of players (1-255)")
	cmd.Flags().StringVar(&entryFee, "entry-fee", "", "entry fee in whole currency units, e.g. 0.01")
	_ = cmd.MarkFlagRequired("max-players")
	_ = cmd.MarkFlagRequired("entry-fee")
	return cmd
}

func newJoinCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "join",
		Short: "Join the running game, paying its entry fee",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, printer, err := headless(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if err := connect(ctx, a, printer); err != nil {
				return err
			}
			s := a.ctrl.State()
			if s.Panel() == controller.PanelChoosingWinner {
				printer.Warning("the game is full; a winner is being chosen")
			}
			label := fmt.Sprintf("Joining game %s for %s %s", s.GameID, chain.FormatUnits(s.EntryFee), a.cfg.Network.Currency)
			return reported(printer.Run(label, func() error {
				return a.ctrl.JoinGame(ctx)
			}))
		},
	}
}

func newNetworksCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "networks",
		Short: "List the configured networks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printer := cli.NewPrinter(cmd.OutOrStdout())
			cfg, err := loadConfig(appOptions{envFile: flags.envFile, network: flags.network})
			if err != nil {
				printer.Error("%v", err)
				return reported(err)
			}
			networks, err := config.LoadNetworksOrDefault(cfg.NetworksFile)
			if err != nil {
				printer.Error("%v", err)
				return reported(err)
			}
			printNetworks(printer, networks, cfg.Network.Name)
			return nil
		},
	}
}

func printNetworks(p *cli.Printer, nf *config.NetworksFile, selected string) {
	p.Field("solidity", nf.Solidity)
	for _, name := range nf.Names() {
		n := nf.Networks[name]
		marker := " "
		if name == selected {
			marker = "*"
		}
		fmt.Fprintf(p.Writer(), "\n%s %s\n", marker, p.Colorize(name, cli.ColorBold))
		p.Field("chain id", n.ChainID)
		p.Field("currency", n.Currency)
		p.Field("rpc", valueOr(n.URL, "(unset)"))
		p.Field("contract", valueOr(n.Contract, "(unset)"))
		p.Field("subgraph", valueOr(n.Subgraph, "(unset)"))
		if n.Explorer.Name != "" {
			key := "missing"
			if n.Explorer.APIKey() != "" {
				key = "set"
			}
			p.Field("explorer", fmt.Sprintf("%s (%s %s)", n.Explorer.Name, n.Explorer.APIKeyEnv, key))
		}
	}
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "randomwinner %s (%s)\n", version, commit)
		},
	}
}

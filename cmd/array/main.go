// Package main is the entry point for the array CLI.
//
// array keeps one selected repository checked out under a configured
// workspace root:
//
//  1. `array init <directory>` picks the workspace root
//  2. `array select <organization/repository>` validates the derived path,
//     asks before replacing a different repository, and clones when needed
//  3. `array status` shows the selection and recent clones
//  4. `array mcp` serves the same operations to coding agents over stdio
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"array/internal/clone"
	"array/internal/config"
	"array/internal/dialog"
	"array/internal/logging"
	"array/internal/mcp"
	"array/internal/repository"
	"array/internal/tui"
	"array/internal/tui/styles"
	"array/internal/workspace"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args, os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	logger := logging.GetDefault()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := &cobra.Command{
		Use:           "array",
		Short:         "Keep a selected repository checked out in your workspace",
		Long:          "array derives a local path for the selected organization/repository, validates what is there, and clones it when missing.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	initCmd := &cobra.Command{
		Use:   "init <directory>",
		Short: "Create the configuration with a workspace root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				if !config.IsFirstRun() {
					return err
				}
				created, err := config.CreateNewConfig(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(stdout, "Workspace root set to %s\n", created.WorkspaceRoot)
				return nil
			}
			return setRoot(cmd.Context(), cfg, args[0], stdout, stderr, logger)
		},
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change configuration",
	}

	configShowCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := config.FindConfigFile()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			fmt.Fprintf(stdout, "# %s\n%s", path, data)
			return nil
		},
	}

	configSetRootCmd := &cobra.Command{
		Use:   "set-root <directory>",
		Short: "Change the workspace root and revalidate the selection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return setRoot(cmd.Context(), cfg, args[0], stdout, stderr, logger)
		},
	}
	configCmd.AddCommand(configShowCmd, configSetRootCmd)

	var plain, yes bool
	selectCmd := &cobra.Command{
		Use:   "select <organization/repository>",
		Short: "Select a repository, cloning it when missing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := repository.ParseIdentifier(args[0])
			if err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if plain || yes || !isTerminal(stdin, stdout) {
				return selectPlain(cmd.Context(), cfg, id, yes, stdin, stdout, stderr, logger)
			}
			return selectInteractive(cmd.Context(), cfg, id, stdin, stdout, stderr, logger)
		},
	}
	selectCmd.Flags().BoolVar(&plain, "plain", false, "line-based output instead of the interactive view")
	selectCmd.Flags().BoolVarP(&yes, "yes", "y", false, "replace a different repository at the path without asking")

	var raw bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the workspace selection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg, dialog.NewStatic(0), logger)
			if err != nil {
				return err
			}
			defer a.close()

			history, err := a.db.RecentClones(cmd.Context(), 5)
			if err != nil {
				logger.Warn("Failed to read clone history", "error", err)
			}
			md := statusMarkdown(cfg, a.ws.State(), a.orch.Registry().Active(), history)
			if raw {
				fmt.Fprint(stdout, md)
				return nil
			}
			rendered, err := renderMarkdown(md, statusWidth)
			if err != nil {
				fmt.Fprint(stdout, md)
				return nil
			}
			fmt.Fprint(stdout, rendered)
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&raw, "raw", false, "print markdown without rendering")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear the repository selection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg, dialog.NewStatic(0), logger)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.ws.ClearRepository(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(stdout, "Repository selection cleared")
			return nil
		},
	}

	revalidateCmd := &cobra.Command{
		Use:   "revalidate",
		Short: "Recompute and validate the selected repository's path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg, dialog.Writer{Out: stderr}, logger)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.ws.ValidateAndUpdatePath(cmd.Context()); err != nil {
				return err
			}
			printState(stdout, a.ws.State())
			return nil
		},
	}

	probeCmd := &cobra.Command{
		Use:   "probe [organization/repository]",
		Short: "Check that the remote host accepts your credentials",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			opts := cloneOptions(cfg, repository.NewCredentialManager(), logger)
			target, url := cfg.Host(), ""
			if len(args) == 1 {
				id, err := repository.ParseIdentifier(args[0])
				if err != nil {
					return err
				}
				target, url = id.String(), opts.RemoteURL(id)
			}
			if err := opts.Prober.Probe(cmd.Context(), url); err != nil {
				return err
			}
			fmt.Fprintln(stdout, styles.SuccessStyle.Render("✓ "+target+" is reachable"))
			return nil
		},
	}

	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the token used for HTTPS clones",
	}

	authSetCmd := &cobra.Command{
		Use:   "set-token [token]",
		Short: "Store a GitHub token in the OS keyring (reads stdin without an argument)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token := ""
			if len(args) == 1 {
				token = args[0]
			} else {
				line, err := bufio.NewReader(stdin).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return fmt.Errorf("failed to read token: %w", err)
				}
				token = line
			}
			if err := repository.NewCredentialManager().StoreToken(token); err != nil {
				return err
			}
			fmt.Fprintln(stdout, "Token stored")
			return nil
		},
	}

	authStatusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether the keyring works and a token is stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			creds := repository.NewCredentialManager()
			status := creds.Status()
			if !status.Available {
				return fmt.Errorf("credential store unavailable: %s", status.Error)
			}
			if status.Warning != "" {
				fmt.Fprintln(stderr, styles.WarningStyle.Render(status.Warning))
			}
			fmt.Fprintf(stdout, "Credential store: available\nToken stored: %s\n", yesNo(creds.HasToken()))
			return nil
		},
	}

	authDeleteCmd := &cobra.Command{
		Use:   "delete",
		Short: "Remove the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := repository.NewCredentialManager().DeleteToken(); err != nil {
				return err
			}
			fmt.Fprintln(stdout, "Token deleted")
			return nil
		},
	}
	authCmd.AddCommand(authSetCmd, authStatusCmd, authDeleteCmd)

	mcpCmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve workspace tools over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			// agents never confirm a replacement
			a, err := openApp(cmd.Context(), cfg, dialog.NewStatic(0), logger)
			if err != nil {
				return err
			}
			defer a.close()

			mcp.Version = version
			return mcp.NewServer(a.ws, a.orch.Registry(), logger).Serve()
		},
	}

	rootCmd.AddCommand(initCmd, configCmd, selectCmd, statusCmd, clearCmd, revalidateCmd, probeCmd, authCmd, mcpCmd)
	rootCmd.SetArgs(args[1:])
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, styles.ErrorStyle.Render("Error: "+err.Error()))
		return 1
	}
	return 0
}

// setRoot changes the workspace root, saves, and revalidates any existing
// selection against the new root.
func setRoot(ctx context.Context, cfg *config.Config, root string, stdout, stderr io.Writer, logger *logging.AppLogger) error {
	if err := cfg.SetWorkspaceRoot(root); err != nil {
		return err
	}
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}
	fmt.Fprintf(stdout, "Workspace root set to %s\n", cfg.WorkspaceRoot)

	a, err := openApp(ctx, cfg, dialog.Writer{Out: stderr}, logger)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.ws.ValidateAndUpdatePath(ctx); err != nil {
		return err
	}
	if _, ok := a.ws.State().Selected(); ok {
		printState(stdout, a.ws.State())
	}
	return nil
}

func isTerminal(stdin io.Reader, stdout io.Writer) bool {
	in, ok := stdin.(*os.File)
	if !ok {
		return false
	}
	out, ok := stdout.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(in.Fd())) && term.IsTerminal(int(out.Fd()))
}

// selectPlain runs a selection with line output. Confirms are asked with
// huh unless yes is set; errors are printed to stderr.
func selectPlain(ctx context.Context, cfg *config.Config, id repository.Identifier, yes bool, stdin io.Reader, stdout, stderr io.Writer, logger *logging.AppLogger) error {
	printer := dialog.Writer{Out: stderr}
	var confirms dialog.Dialog = dialog.HuhDialog{In: stdin, Out: stderr, Accessible: true}
	if yes {
		confirms = dialog.Writer{Out: stderr, Answer: 1}
	}
	d := dialog.Func(func(ctx context.Context, msg dialog.Message) (int, error) {
		if msg.Kind == dialog.KindError {
			return printer.Show(ctx, msg)
		}
		return confirms.Show(ctx, msg)
	})

	a, err := openApp(ctx, cfg, d, logger)
	if err != nil {
		return err
	}
	defer a.close()

	unsubscribe := a.orch.Subscribe(func(ev clone.ProgressEvent) {
		if !ev.Repository.Equal(id) {
			return
		}
		for _, line := range ev.Lines() {
			fmt.Fprintln(stderr, styles.ProgressStyle.Render(line))
		}
	})
	defer unsubscribe()

	if err := a.ws.SelectRepository(ctx, id); err != nil {
		return err
	}
	st, err := waitSettled(ctx, a.ws)
	if err != nil {
		return err
	}
	return reportSelection(stdout, id, st)
}

// selectInteractive runs a selection inside the Bubble Tea select program.
func selectInteractive(ctx context.Context, cfg *config.Config, id repository.Identifier, stdin io.Reader, stdout, stderr io.Writer, logger *logging.AppLogger) error {
	var program *tea.Program
	d := dialog.Func(func(ctx context.Context, msg dialog.Message) (int, error) {
		return tui.NewDialog(program.Send).Show(ctx, msg)
	})

	a, err := openApp(ctx, cfg, d, logger)
	if err != nil {
		return err
	}
	defer a.close()

	model := tui.NewSelectModel(ctx, a.ws, id, a.ws.State(), logger)
	program = tea.NewProgram(model,
		tea.WithContext(ctx),
		tea.WithInput(stdin),
		tea.WithOutput(stdout),
	)

	unsubscribeState := a.ws.Subscribe(func(st workspace.State) {
		program.Send(tui.StateMsg{State: st})
	})
	defer unsubscribeState()
	unsubscribeProgress := a.orch.Subscribe(func(ev clone.ProgressEvent) {
		program.Send(tui.ProgressMsg{Event: ev})
	})
	defer unsubscribeProgress()

	final, err := program.Run()
	if err != nil {
		return fmt.Errorf("select program failed: %w", err)
	}

	m, ok := final.(*tui.SelectModel)
	if !ok || !m.Done() {
		return fmt.Errorf("selection interrupted")
	}
	if m.Err() != nil {
		return m.Err()
	}
	st := m.State()
	if st.IsSyncing {
		fmt.Fprintln(stderr, "Clone still running; check progress with `array status`.")
		return nil
	}
	return reportSelection(stdout, id, st)
}

func reportSelection(w io.Writer, id repository.Identifier, st workspace.State) error {
	if !st.PathExists {
		return fmt.Errorf("%s is not present at %s", id, st.DerivedPath)
	}
	fmt.Fprintln(w, styles.SuccessStyle.Render(fmt.Sprintf("✓ %s ready at %s", id, st.DerivedPath)))
	return nil
}

func printState(w io.Writer, st workspace.State) {
	id, ok := st.Selected()
	if !ok {
		fmt.Fprintln(w, "No repository selected")
		return
	}
	state := "missing"
	switch {
	case st.PathExists:
		state = "present"
	case st.IsSyncing:
		state = "cloning"
	}
	fmt.Fprintf(w, "%s → %s (%s)\n", id, st.DerivedPath, state)
}

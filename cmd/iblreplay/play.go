package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/iblreplay/internal/config"
	"github.com/verte-zerg/iblreplay/internal/logging"
	"github.com/verte-zerg/iblreplay/internal/replay"
	"github.com/verte-zerg/iblreplay/internal/store"
	"github.com/verte-zerg/iblreplay/internal/tui"
)

func newPlayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play [session]",
		Short: "Replay a session interactively",
		Long: "Replay a session interactively. The session is a 1-based position in\n" +
			"the session list, a full id or a unique id prefix; the first listed\n" +
			"session is used when omitted.",
		Args: cobra.MaximumNArgs(1),
		RunE: runPlayCmd,
	}
	addPlaybackFlags(cmd)
	return cmd
}

func runPlayCmd(cmd *cobra.Command, args []string) error {
	if err := loadSettings(cmd, true); err != nil {
		return err
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("play needs an interactive terminal; use simulate for headless replay")
	}

	logger, logFile, err := logging.OpenFile(opts.logLevel, opts.logFile)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := logFile.Close(); cerr != nil {
			logErrf("failed to close log file: %v\n", cerr)
		}
	}()

	b := newBackend(logger)
	selector := ""
	if len(args) > 0 {
		selector = args[0]
	}
	sessions, eid, err := b.resolveSession(cmd.Context(), selector)
	if err != nil {
		return err
	}

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	mode, err := replay.ParseDisplayMode(opts.mode)
	if err != nil {
		return err
	}
	display := tui.NewDisplay(mode == replay.ModeSpiking)
	engine, err := b.newEngine(display.Surfaces(), nil)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	model := tui.NewModel(b.manager, engine, display, tui.Options{
		Sessions: sessions,
		EID:      eid,
		FPS:      opts.fps,
		Store:    st,
		Logger:   logger,
	})
	logger.Info("play", "eid", eid, "sessions", len(sessions), "root", opts.root)
	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

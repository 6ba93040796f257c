// Package main provides the CLI entrypoint for iblreplay.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/iblreplay/internal/assets"
	"github.com/verte-zerg/iblreplay/internal/catalog"
	"github.com/verte-zerg/iblreplay/internal/clock"
	"github.com/verte-zerg/iblreplay/internal/config"
	"github.com/verte-zerg/iblreplay/internal/logging"
	"github.com/verte-zerg/iblreplay/internal/replay"
	"github.com/verte-zerg/iblreplay/internal/session"
	"github.com/verte-zerg/iblreplay/internal/tui"
)

const (
	defaultRoot        = "."
	defaultHTTPTimeout = "60s"
	defaultLogLevel    = "info"
	sessionListName    = "sessions.txt"
)

type settings struct {
	root        string
	prefix      string
	cacheDir    string
	httpTimeout string
	sessionList string

	rate        float64
	minRate     float64
	maxRate     float64
	videoOffset float64
	fps         int
	mode        string

	logLevel string
	logFile  string
}

var opts settings

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "iblreplay",
		Short:         "Replay IBL behavioural sessions in the terminal",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.root, "root", defaultRoot, "asset root: directory or http(s) URL")
	flags.StringVar(&opts.prefix, "prefix", "", "prefix prepended to every asset name")
	flags.StringVar(&opts.cacheDir, "cache-dir", config.DefaultCacheDir(), "directory for downloaded videos")
	flags.StringVar(&opts.httpTimeout, "http-timeout", defaultHTTPTimeout, "timeout per HTTP request")
	flags.StringVar(&opts.sessionList, "sessions", config.DefaultSessionListPath(), "session list file")
	flags.StringVar(&opts.logLevel, "log-level", defaultLogLevel, "log level (trace, debug, info, warn, error)")
	flags.StringVar(&opts.logFile, "log-file", config.DefaultLogPath(), "log file used by play")

	rootCmd.AddCommand(newPlayCmd())
	rootCmd.AddCommand(newSessionsCmd())
	rootCmd.AddCommand(newInspectCmd())
	rootCmd.AddCommand(newSimulateCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func addPlaybackFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&opts.rate, "rate", clock.DefaultRate, "initial playback rate")
	cmd.Flags().Float64Var(&opts.minRate, "min-rate", clock.DefaultMinRate, "slowest playback rate")
	cmd.Flags().Float64Var(&opts.maxRate, "max-rate", clock.DefaultMaxRate, "fastest playback rate")
	cmd.Flags().Float64Var(&opts.videoOffset, "video-offset", replay.DefaultVideoOffset, "task-time at which videos start (s)")
	cmd.Flags().IntVar(&opts.fps, "fps", tui.DefaultFPS, "frames per second")
	cmd.Flags().StringVar(&opts.mode, "mode", replay.ModeSpiking.String(), "display mode (spiking, grayscale, region)")
}

// loadSettings applies the config file and IBLREPLAY_* variables to every
// flag the user did not set. Playback values are validated only for
// commands that replay.
func loadSettings(cmd *cobra.Command, playback bool) error {
	fileCfg, err := config.Load(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "root", &opts.root, fileCfg.Assets.Root)
	applyStringConfig(cmd, "prefix", &opts.prefix, fileCfg.Assets.Prefix)
	applyStringConfig(cmd, "cache-dir", &opts.cacheDir, fileCfg.Assets.CacheDir)
	applyStringConfig(cmd, "http-timeout", &opts.httpTimeout, fileCfg.Assets.HTTPTimeout)
	applyStringConfig(cmd, "sessions", &opts.sessionList, fileCfg.Assets.SessionList)
	applyFloatConfig(cmd, "rate", &opts.rate, fileCfg.Playback.Rate)
	applyFloatConfig(cmd, "min-rate", &opts.minRate, fileCfg.Playback.MinRate)
	applyFloatConfig(cmd, "max-rate", &opts.maxRate, fileCfg.Playback.MaxRate)
	applyFloatConfig(cmd, "video-offset", &opts.videoOffset, fileCfg.Playback.VideoOffset)
	applyIntConfig(cmd, "fps", &opts.fps, fileCfg.Playback.FPS)
	applyStringConfig(cmd, "mode", &opts.mode, fileCfg.Playback.DisplayMode)
	applyStringConfig(cmd, "log-level", &opts.logLevel, fileCfg.Log.Level)
	applyStringConfig(cmd, "log-file", &opts.logFile, fileCfg.Log.File)
	return validateSettings(opts, playback)
}

func validateSettings(s settings, playback bool) error {
	if strings.TrimSpace(s.root) == "" {
		return fmt.Errorf("--root must not be empty")
	}
	if _, err := time.ParseDuration(s.httpTimeout); err != nil {
		return fmt.Errorf("invalid --http-timeout: %w", err)
	}
	if !playback {
		return nil
	}
	if s.minRate <= 0 || s.maxRate < s.minRate {
		return fmt.Errorf("--min-rate must be > 0 and <= --max-rate")
	}
	if s.rate < s.minRate || s.rate > s.maxRate {
		return fmt.Errorf("--rate must be between %g and %g", s.minRate, s.maxRate)
	}
	if s.videoOffset < 0 {
		return fmt.Errorf("--video-offset must be >= 0")
	}
	if s.fps <= 0 {
		return fmt.Errorf("--fps must be > 0")
	}
	if _, err := replay.ParseDisplayMode(s.mode); err != nil {
		return fmt.Errorf("invalid --mode: %w", err)
	}
	return nil
}

// backend bundles the loading side shared by every command.
type backend struct {
	source  assets.Source
	manager *session.Manager
	logger  *slog.Logger
}

func newBackend(logger *slog.Logger) backend {
	timeout, err := time.ParseDuration(opts.httpTimeout)
	if err != nil {
		timeout = 0
	}
	src := assets.NewSource(opts.root, timeout)
	loader := assets.NewLoader(src, assets.LoaderOptions{
		Prefix:   opts.prefix,
		CacheDir: opts.cacheDir,
		Logger:   logger,
	})
	return backend{source: src, manager: session.NewManager(loader, logger), logger: logger}
}

func (b backend) newEngine(surfaces replay.Surfaces, rand replay.Rand) (*replay.Engine, error) {
	mode, err := replay.ParseDisplayMode(opts.mode)
	if err != nil {
		return nil, err
	}
	return replay.New(surfaces, replay.Options{
		VideoOffset: opts.videoOffset,
		Rate:        opts.rate,
		MinRate:     opts.minRate,
		MaxRate:     opts.maxRate,
		Mode:        mode,
		Rand:        rand,
		Logger:      b.logger,
	})
}

// sessionList reads the configured list file, falling back to the list
// stored next to the assets.
func (b backend) sessionList(ctx context.Context) ([]string, error) {
	keep := catalog.FilterFor("uuid")
	sessions, err := catalog.LoadFile(opts.sessionList, keep)
	if err == nil {
		return sessions, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read session list %s: %w", opts.sessionList, err)
	}
	sessions, rerr := catalog.Load(ctx, b.source, opts.prefix+sessionListName, keep)
	if rerr != nil {
		return nil, fmt.Errorf("no session list at %s: %w", opts.sessionList, rerr)
	}
	return sessions, nil
}

// resolveSession picks the session for selector from the list. A full id
// that is not listed is still accepted and appended.
func (b backend) resolveSession(ctx context.Context, selector string) ([]string, string, error) {
	sessions, err := b.sessionList(ctx)
	if err != nil {
		if catalog.ValidEID(selector) {
			return []string{selector}, selector, nil
		}
		return nil, "", err
	}
	if selector == "" {
		return sessions, sessions[0], nil
	}
	eid, err := catalog.Lookup(sessions, selector)
	if err != nil {
		if catalog.ValidEID(selector) {
			return append(sessions, selector), selector, nil
		}
		return nil, "", err
	}
	return sessions, eid, nil
}

func stderrLogger() *slog.Logger {
	return logging.NewLogger(opts.logLevel, os.Stderr)
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		logErrln("Created", path)
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# iblreplay configuration
# Uncomment a value to enable it. IBLREPLAY_<SECTION>_<KEY> variables
# override the file; CLI flags override both.

[assets]
# root = %q               # Directory or http(s) URL holding session assets
# prefix = ""              # Prefix prepended to every asset name
# cache-dir = %q
# http-timeout = %q        # Timeout per HTTP request
# session-list = %q

[playback]
# rate = %g                # Initial playback rate
# min-rate = %g
# max-rate = %g
# video-offset = %g        # Task-time at which videos start (s)
# fps = %d
# display-mode = %q        # spiking, grayscale or region

[log]
# level = %q               # trace, debug, info, warn, error
# file = %q
`,
		defaultRoot,
		config.DefaultCacheDir(),
		defaultHTTPTimeout,
		config.DefaultSessionListPath(),
		clock.DefaultRate,
		clock.DefaultMinRate,
		clock.DefaultMaxRate,
		replay.DefaultVideoOffset,
		tui.DefaultFPS,
		replay.ModeSpiking.String(),
		defaultLogLevel,
		config.DefaultLogPath(),
	)
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

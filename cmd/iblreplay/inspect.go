package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/iblreplay/internal/model"
	"github.com/verte-zerg/iblreplay/internal/stats"
)

var (
	inspectColor bool
	sessionsLoad bool
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List selectable sessions",
		Args:  cobra.NoArgs,
		RunE:  runSessionsCmd,
	}
	cmd.Flags().BoolVar(&sessionsLoad, "check", false, "load every session and report failures")
	return cmd
}

func runSessionsCmd(cmd *cobra.Command, _ []string) error {
	if err := loadSettings(cmd, false); err != nil {
		return err
	}
	b := newBackend(stderrLogger())
	sessions, err := b.sessionList(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for i, eid := range sessions {
		status := ""
		if sessionsLoad {
			if _, err := b.manager.Get(cmd.Context(), eid); err != nil {
				status = "  failed: " + err.Error()
			} else {
				status = "  ok"
			}
		}
		if _, err := fmt.Fprintf(out, "%3d  %s%s\n", i+1, eid, status); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect [session]",
		Short: "Load a session and summarize its channels",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runInspectCmd,
	}
	cmd.Flags().BoolVar(&inspectColor, "color", false, "force coloured sparklines")
	return cmd
}

func runInspectCmd(cmd *cobra.Command, args []string) error {
	if err := loadSettings(cmd, false); err != nil {
		return err
	}
	b := newBackend(stderrLogger())
	selector := ""
	if len(args) > 0 {
		selector = args[0]
	}
	_, eid, err := b.resolveSession(cmd.Context(), selector)
	if err != nil {
		return err
	}
	s, err := b.manager.Get(cmd.Context(), eid)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if err := stats.RenderChannelSummary(out, s); err != nil {
		return err
	}
	if err := stats.RenderProbes(out, s); err != nil {
		return err
	}
	if err := renderVideos(out, s); err != nil {
		return err
	}
	return stats.RenderSpikeRates(out, s, stats.TerminalWidth(), stats.ShouldUseColor(out, inspectColor))
}

func renderVideos(w io.Writer, s *model.Session) error {
	angles := make([]model.Angle, 0, len(s.Videos))
	for angle := range s.Videos {
		angles = append(angles, angle)
	}
	sort.Slice(angles, func(i, j int) bool { return angles[i] < angles[j] })
	for _, angle := range angles {
		clip := s.Videos[angle]
		if _, err := fmt.Fprintf(w, "video %-5s offset %.7f  %s\n", angle, clip.StartOffset, clip.Path); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

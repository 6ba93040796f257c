package assets

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/iblreplay/internal/assets/fixture"
	"github.com/verte-zerg/iblreplay/internal/model"
)

func TestLoadSingleProbeSession(t *testing.T) {
	root := t.TempDir()
	eid := fixture.Write(t, root, fixture.Options{})

	loader := NewLoader(DirSource{Root: root}, LoaderOptions{CacheDir: t.TempDir()})
	session, err := loader.Load(context.Background(), eid)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(session.Probes) != 1 {
		t.Fatalf("expected 1 probe, got %d", len(session.Probes))
	}
	probe := session.Probes[0]
	if probe.PID != fixture.PIDs[0] || probe.Index != 0 || probe.Slot != 0 {
		t.Fatalf("unexpected probe %+v", probe)
	}
	if len(probe.Clusters) != 2 || probe.Clusters[0].ML != -1000 || probe.Clusters[1].DV != -2500 {
		t.Fatalf("unexpected clusters %+v", probe.Clusters)
	}
	if probe.Trajectory.Depth != 3500 || probe.Trajectory.Phi != 180 {
		t.Fatalf("unexpected trajectory %+v", probe.Trajectory)
	}

	if _, ok := session.Channels["spikes.times1"]; ok {
		t.Fatalf("did not expect probe 1 channels")
	}
	for key, want := range fixture.Channels {
		if key == "spikes.times1" || key == "spikes.clusters1" {
			continue
		}
		got := session.Channel(key).Values
		if len(got) != len(want) {
			t.Fatalf("channel %s: expected %d values, got %d", key, len(want), len(got))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("channel %s[%d]: expected %v, got %v", key, i, want[i], got[i])
			}
		}
	}

	if len(session.Videos) != 3 {
		t.Fatalf("expected 3 videos, got %d", len(session.Videos))
	}
	left := session.Videos[model.AngleLeft]
	if left.StartOffset != 8.6326566 || left.Path == "" {
		t.Fatalf("unexpected left video %+v", left)
	}
	if session.LoadedAt.IsZero() {
		t.Fatalf("expected LoadedAt to be set")
	}
}

func TestLoadTwoProbes(t *testing.T) {
	root := t.TempDir()
	eid := fixture.Write(t, root, fixture.Options{SecondProbe: true})

	session, err := NewLoader(DirSource{Root: root}, LoaderOptions{}).Load(context.Background(), eid)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(session.Probes) != 2 {
		t.Fatalf("expected 2 probes, got %d", len(session.Probes))
	}
	if session.Probes[1].PID != fixture.PIDs[1] || session.Probes[1].Trajectory.Depth != 4000 {
		t.Fatalf("unexpected second probe %+v", session.Probes[1])
	}
	if got := session.Channel("spikes.times1").Len(); got != 2 {
		t.Fatalf("expected 2 spikes for probe 1, got %d", got)
	}
}

func TestLoadKeepsManifestSlotWhenFirstIsMissing(t *testing.T) {
	root := t.TempDir()
	eid := fixture.Write(t, root, fixture.Options{SecondProbe: true})
	if err := os.Remove(filepath.Join(root, "Files", "file_urls_"+eid+"_probe00.txt")); err != nil {
		t.Fatalf("remove manifest: %v", err)
	}

	session, err := NewLoader(DirSource{Root: root}, LoaderOptions{}).Load(context.Background(), eid)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(session.Probes) != 1 {
		t.Fatalf("expected 1 probe, got %d", len(session.Probes))
	}
	probe := session.Probes[0]
	if probe.Slot != 1 || probe.Index != 1 || probe.PID != fixture.PIDs[1] {
		t.Fatalf("expected probe01 in slot 1, got %+v", probe)
	}
	if probe.Trajectory.Depth != 4000 || probe.Trajectory.Phi != 90 {
		t.Fatalf("expected probe01 trajectory, got %+v", probe.Trajectory)
	}
}

func TestLoadRejectsUnsortedSpikesForAnyProbeIndex(t *testing.T) {
	root := t.TempDir()
	eid := fixture.Write(t, root, fixture.Options{})
	manifest := filepath.Join(root, "Files", "file_urls_"+eid+"_probe00.txt")
	data, err := os.ReadFile(manifest)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	lines := strings.Split(string(data), "\n")
	lines[1] = "2"
	if err := os.WriteFile(manifest, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	spikes := filepath.Join(root, "alf", "probe00", "spikes.times.txt")
	if err := os.WriteFile(spikes, []byte("1\n0.5\n"), 0o644); err != nil {
		t.Fatalf("write spikes: %v", err)
	}

	_, err = NewLoader(DirSource{Root: root}, LoaderOptions{}).Load(context.Background(), eid)
	if !errors.Is(err, ErrUnsortedChannel) {
		t.Fatalf("expected unsorted spikes.times2 to fail the load, got %v", err)
	}
}

func TestLoadMissingVideoFails(t *testing.T) {
	root := t.TempDir()
	eid := fixture.Write(t, root, fixture.Options{SkipVideo: true})

	session, err := NewLoader(DirSource{Root: root}, LoaderOptions{}).Load(context.Background(), eid)
	if !errors.Is(err, ErrLoadFailed) {
		t.Fatalf("expected ErrLoadFailed, got %v", err)
	}
	if session != nil {
		t.Fatalf("expected no partial session")
	}
}

func TestLoadRejectsUnsortedTimes(t *testing.T) {
	root := t.TempDir()
	eid := fixture.Write(t, root, fixture.Options{UnsortedWheel: true})

	_, err := NewLoader(DirSource{Root: root}, LoaderOptions{}).Load(context.Background(), eid)
	if !errors.Is(err, ErrLoadFailed) || !errors.Is(err, ErrUnsortedChannel) {
		t.Fatalf("expected unsorted channel failure, got %v", err)
	}
}

func TestLoadWithoutManifestsStillNeedsVideos(t *testing.T) {
	root := t.TempDir()
	_, err := NewLoader(DirSource{Root: root}, LoaderOptions{}).Load(context.Background(), "nothing-here")
	if !errors.Is(err, ErrLoadFailed) {
		t.Fatalf("expected ErrLoadFailed, got %v", err)
	}
}

func TestLoadCancelledContext(t *testing.T) {
	root := t.TempDir()
	eid := fixture.Write(t, root, fixture.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewLoader(DirSource{Root: root}, LoaderOptions{}).Load(ctx, eid); err == nil {
		t.Fatalf("expected cancelled load to fail")
	}
}

func TestLoadOverHTTP(t *testing.T) {
	root := t.TempDir()
	eid := fixture.Write(t, root, fixture.Options{})
	srv := httptest.NewServer(http.FileServer(http.Dir(root)))
	defer srv.Close()

	loader := NewLoader(NewSource(srv.URL, 5*time.Second), LoaderOptions{CacheDir: t.TempDir()})
	session, err := loader.Load(context.Background(), eid)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := session.Channel("wheel.position").Len(); got != 4 {
		t.Fatalf("expected 4 wheel samples, got %d", got)
	}
	if session.Videos[model.AngleBody].Size == 0 {
		t.Fatalf("expected downloaded video size")
	}
}

func TestParseTrajectoriesBadProbe(t *testing.T) {
	_, err := ParseTrajectories([]byte("probe,ml,ap,dv,depth,theta,phi\nshank,1,2,3,4,5,6\n"))
	if err == nil {
		t.Fatalf("expected bad probe error")
	}
}

func TestCheckSortedIgnoresNaN(t *testing.T) {
	if err := checkSorted([]float64{0, 1, math.NaN(), 2}); err != nil {
		t.Fatalf("expected NaN to be ignored, got %v", err)
	}
	if err := checkSorted([]float64{0, 2, math.NaN(), 1}); !errors.Is(err, ErrUnsortedChannel) {
		t.Fatalf("expected ErrUnsortedChannel, got %v", err)
	}
}

// Package fixture writes small on-disk sessions for tests.
package fixture

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// EID is the session id written by Write unless Options.EID is set.
const EID = "4b00df29-3769-43be-bb40-128b1cba6d35"

// Options controls what Write lays out.
type Options struct {
	EID string
	// SecondProbe also writes the probe01 manifest and its channels.
	SecondProbe bool
	// SkipVideo omits the right camera video.
	SkipVideo bool
	// UnsortedWheel writes a decreasing wheel timestamp channel.
	UnsortedWheel bool
}

// Channels holds the values Write stores; tests compare against them.
var Channels = map[string][]float64{
	"spikes.times0":    {0.5, 1.0, 1.5, 2.5},
	"spikes.clusters0": {0, 1, 0, 1},
	"spikes.times1":    {0.7, 2.2},
	"spikes.clusters1": {0, 0},
	"wheel.timestamps": {0, 1, 2, 3},
	"wheel.position":   {0, 0.1, 0.15, 0.4},
	"goCue_times":      {2.0},
	"feedback_times":   {2.8},
	"feedbackType":     {1},
	"contrastLeft":     {0.5},
	"contrastRight":    {0},
	"lick.times":       {3.0},
}

// PIDs are the probe ids for slots probe00 and probe01.
var PIDs = []string{"pid-probe-0", "pid-probe-1"}

// Write lays out one session under root and returns its eid.
func Write(t testing.TB, root string, opts Options) string {
	t.Helper()
	eid := opts.EID
	if eid == "" {
		eid = EID
	}

	shared := []string{
		"wheel.timestamps", "wheel.position", "goCue_times", "feedback_times",
		"feedbackType", "contrastLeft", "contrastRight", "lick.times",
	}
	slots := 1
	if opts.SecondProbe {
		slots = 2
	}
	for slot := 0; slot < slots; slot++ {
		idx := strconv.Itoa(slot)
		lines := []string{"file urls", idx, PIDs[slot] + "\r"}
		lines = append(lines,
			"alf/probe0"+idx+"/spikes.times.txt",
			"alf/probe0"+idx+"/spikes.clusters.txt",
		)
		writeChannel(t, root, "alf/probe0"+idx+"/spikes.times.txt", Channels["spikes.times"+idx])
		writeChannel(t, root, "alf/probe0"+idx+"/spikes.clusters.txt", Channels["spikes.clusters"+idx])
		for _, name := range shared {
			uri := "alf/_ibl_" + name + ".txt"
			lines = append(lines, uri)
		}
		writeFile(t, root, "Files/file_urls_"+eid+"_probe0"+idx+".txt", strings.Join(lines, "\n")+"\n")
		writeFile(t, root, "Clusters/"+PIDs[slot]+".csv", "ml,ap,dv\n-1000,2000,-3000\n500,-1500,-2500\n")
	}
	for _, name := range shared {
		values := Channels[name]
		if name == "wheel.timestamps" && opts.UnsortedWheel {
			values = []float64{0, 2, 1, 3}
		}
		writeChannel(t, root, "alf/_ibl_"+name+".txt", values)
	}

	writeFile(t, root, "Trajectories/"+eid+".csv",
		"probe,ml,ap,dv,depth,theta,phi\n"+
			"probe00,-2000,-1000,0,3500,15,180\n"+
			"probe01,1000,500,-100,4000,10,90\n")

	for _, angle := range []string{"left", "body", "right"} {
		if angle == "right" && opts.SkipVideo {
			continue
		}
		writeFile(t, root, "Videos/"+eid+"_"+angle+"_scaled.mp4", "not really a video")
		writeFile(t, root, "Videos/"+eid+"_"+angle+"_times.txt", "8.6326566\n")
	}
	return eid
}

func writeChannel(t testing.TB, root, name string, values []float64) {
	t.Helper()
	var b strings.Builder
	for _, v := range values {
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		b.WriteByte('\n')
	}
	writeFile(t, root, name, b.String())
}

func writeFile(t testing.TB, root, name, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create fixture dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write fixture %s: %v", name, err)
	}
}

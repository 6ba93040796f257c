package assets

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/verte-zerg/iblreplay/internal/model"
)

// ErrBadManifest is returned for manifests that cannot be parsed.
var ErrBadManifest = errors.New("bad manifest")

// ProbeSlots are the manifest slots probed for every session.
var ProbeSlots = []string{"probe00", "probe01"}

// Manifest is one parsed file_urls text file.
type Manifest struct {
	// Slot is the position in ProbeSlots the manifest was read for.
	Slot       int
	ProbeIndex int
	PID        string
	// URIs maps channel keys to the first URI that matched them.
	URIs map[string]string
}

// ManifestName returns the manifest path for a session and probe slot.
func ManifestName(prefix, eid, slot string) string {
	return prefix + "Files/file_urls_" + eid + "_" + slot + ".txt"
}

// ParseManifest parses a newline-delimited manifest: a header line, the
// probe index, the probe id, then one URI per line.
func ParseManifest(text string) (Manifest, error) {
	lines := strings.Split(text, "\n")
	if len(lines) < 3 {
		return Manifest{}, fmt.Errorf("%w: expected at least 3 lines, got %d", ErrBadManifest, len(lines))
	}
	probe, err := strconv.Atoi(strings.TrimSpace(lines[1]))
	if err != nil {
		return Manifest{}, fmt.Errorf("%w: probe index %q", ErrBadManifest, strings.TrimSpace(lines[1]))
	}
	m := Manifest{
		ProbeIndex: probe,
		PID:        stripControl(lines[2]),
		URIs:       map[string]string{},
	}
	for _, line := range lines[3:] {
		uri := stripControl(line)
		if uri == "" {
			continue
		}
		m.addURI(uri)
	}
	return m, nil
}

func (m *Manifest) addURI(uri string) {
	for _, name := range model.ChannelNames {
		if !strings.Contains(uri, name) {
			continue
		}
		key := name
		if strings.Contains(name, "spikes") {
			key = model.ProbeChannel(name, m.ProbeIndex)
		}
		if _, ok := m.URIs[key]; !ok {
			m.URIs[key] = uri
		}
	}
}

// MergeURIs folds manifests into one channel→URI map. Earlier manifests win
// for shared keys.
func MergeURIs(manifests []Manifest) map[string]string {
	out := map[string]string{}
	for _, m := range manifests {
		for key, uri := range m.URIs {
			if _, ok := out[key]; !ok {
				out[key] = uri
			}
		}
	}
	return out
}

func stripControl(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s))
}

package engine

import (
	"bytes"
	"context"
	"encoding/hex"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"

	"github.com/bamsammich/ferry/internal/event"
)

// createTestTree populates root with a standard test tree:
//
//	root.txt          (17 bytes)
//	big.bin           (320KB)
//	sub/mid.txt       (19 bytes)
//	sub/deep/leaf.txt (17 bytes)
//	link.txt          → root.txt (symlink)
func createTestTree(t *testing.T, root string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub", "deep"), 0o755))
	writeFile(t, filepath.Join(root, "root.txt"), "root file content")

	bigData := bytes.Repeat([]byte("ABCDEFGHIJKLMNOP"), 20000) // 320KB
	require.NoError(t, os.WriteFile(filepath.Join(root, "big.bin"), bigData, 0o644))

	writeFile(t, filepath.Join(root, "sub", "mid.txt"), "middle file content")
	writeFile(t, filepath.Join(root, "sub", "deep", "leaf.txt"), "leaf file content")
	require.NoError(t, os.Symlink("root.txt", filepath.Join(root, "link.txt")))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

// treeDigest maps every entry under root to a digest of its kind and
// content: file bytes, link text, or just "dir".
func treeDigest(t *testing.T, root string) map[string]string {
	t.Helper()

	out := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		switch {
		case d.Type()&fs.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}
			out[rel] = "link:" + target
		case d.IsDir():
			out[rel] = "dir"
		default:
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			sum := blake3.Sum256(data)
			out[rel] = "file:" + hex.EncodeToString(sum[:])
		}
		return nil
	})
	require.NoError(t, err)
	return out
}

// findTmpFiles returns all staging files under root.
func findTmpFiles(t *testing.T, root string) []string {
	t.Helper()
	var found []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if filepath.Ext(d.Name()) == tmpSuffix {
			found = append(found, path)
		}
		return nil
	})
	require.NoError(t, err)
	return found
}

// collectEvents returns a handler that records events and a function to
// read them back.
func collectEvents() (event.Handler, func() []event.Event) {
	var (
		mu  sync.Mutex
		evs []event.Event
	)
	h := event.HandlerFunc(func(e event.Event) {
		mu.Lock()
		defer mu.Unlock()
		evs = append(evs, e)
	})
	return h, func() []event.Event {
		mu.Lock()
		defer mu.Unlock()
		return append([]event.Event(nil), evs...)
	}
}

func eventsOfType(evs []event.Event, typ event.Type) []event.Event {
	var out []event.Event
	for _, e := range evs {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// scriptedPrompter answers prompts from a fixed reply and records the paths
// it was asked about.
type scriptedPrompter struct {
	asked []string
	reply bool
}

func (p *scriptedPrompter) PromptOverwrite(path string) bool {
	p.asked = append(p.asked, path)
	return p.reply
}

// recordingProgress records every Show call. onShow, when set, runs inside
// Show so a test can inspect the filesystem at that moment.
type recordingProgress struct {
	onShow  func(phase int)
	phases  []int
	labels  []string
	cleared int
}

func (p *recordingProgress) Show(phase, _ int, label string) error {
	p.phases = append(p.phases, phase)
	p.labels = append(p.labels, label)
	if p.onShow != nil {
		p.onShow(phase)
	}
	return nil
}

func (p *recordingProgress) Clear() error {
	p.cleared++
	return nil
}

func copyTree(t *testing.T, src, dst string, opts CopyOptions) Result {
	t.Helper()
	targets := []Target{{Src: src, Dst: dst}}
	return Copy(context.Background(), targets, opts, Env{})
}

package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/ferry/internal/backup"
)

func TestCopy_RecursiveTree(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := filepath.Join(dir, "srcdir")
	dst := filepath.Join(dir, "destdir")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "sub"), 0o755))
	writeFile(t, filepath.Join(src, "a.txt"), "a")
	writeFile(t, filepath.Join(src, "b.txt"), "b")
	writeFile(t, filepath.Join(src, "sub", "c.txt"), "c")

	res := copyTree(t, src, dst, CopyOptions{Recursive: true})

	require.True(t, res.OK(), "failures: %v", res.Err())
	for _, rel := range []string{"a.txt", "b.txt", "sub", "sub/c.txt"} {
		_, err := os.Lstat(filepath.Join(dst, rel))
		assert.NoError(t, err, rel)
	}
	assert.Equal(t, treeDigest(t, src), treeDigest(t, dst))
}

func TestCopy_ExistingFileWithoutFlags(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := filepath.Join(dir, "src", "file.txt")
	dst := filepath.Join(dir, "dst", "file.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(src), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0o755))
	writeFile(t, src, "new")
	writeFile(t, dst, "old")

	res := copyTree(t, src, dst, CopyOptions{})

	require.Len(t, res.Failures, 1)
	assert.Equal(t, AlreadyExists, res.Failures[0].Kind)
	assert.Equal(t, "old", readFile(t, dst))
}

func TestMove_ForceSameFilesystem(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	writeFile(t, a, "from a")
	writeFile(t, b, "from b")

	opts := MoveOptions{TryRename: true, CopyOptions: CopyOptions{Force: true}}
	res := Move(context.Background(), []Target{{Src: a, Dst: b}}, opts, Env{})

	require.True(t, res.OK(), "failures: %v", res.Err())
	_, err := os.Lstat(a)
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, "from a", readFile(t, b))
	assert.Equal(t, int64(1), res.Stats.Renamed)
}

func TestCopy_SelfReferentialLink(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.Mkdir(src, 0o755))
	require.NoError(t, os.Symlink("loop", filepath.Join(src, "loop")))
	writeFile(t, filepath.Join(src, "sibling.txt"), "still here")

	t.Run("followed links report a loop", func(t *testing.T) {
		t.Parallel()
		res := copyTree(t, src, dst+"-follow", CopyOptions{Recursive: true, Symlinks: FollowAll})

		require.Len(t, res.Failures, 1)
		assert.Equal(t, SymlinkLoop, res.Failures[0].Kind)
		assert.Equal(t, "still here", readFile(t, filepath.Join(dst+"-follow", "sibling.txt")))
		_, err := os.Lstat(filepath.Join(dst+"-follow", "loop"))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("unfollowed links are replicated", func(t *testing.T) {
		t.Parallel()
		res := copyTree(t, src, dst+"-plain", CopyOptions{Recursive: true})

		require.True(t, res.OK(), "failures: %v", res.Err())
		target, err := os.Readlink(filepath.Join(dst+"-plain", "loop"))
		require.NoError(t, err)
		assert.Equal(t, "loop", target)
	})
}

func TestCopy_ForceIsIdempotent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	createTestTree(t, src)

	opts := CopyOptions{Recursive: true, Force: true}
	require.True(t, copyTree(t, src, dst, opts).OK())
	first := treeDigest(t, dst)

	res := copyTree(t, src, dst, opts)
	require.True(t, res.OK(), "failures: %v", res.Err())
	assert.Equal(t, first, treeDigest(t, dst))
	assert.Empty(t, findTmpFiles(t, dst))
}

func TestCopy_NoClobberKeepsContentAndMtime(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	createTestTree(t, src)
	require.NoError(t, os.MkdirAll(filepath.Join(dst, "sub"), 0o755))
	writeFile(t, filepath.Join(dst, "sub", "mid.txt"), "mine")
	past := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(filepath.Join(dst, "sub", "mid.txt"), past, past))

	res := copyTree(t, src, dst, CopyOptions{Recursive: true, NoClobber: true})

	require.True(t, res.OK(), "failures: %v", res.Err())
	assert.Equal(t, "mine", readFile(t, filepath.Join(dst, "sub", "mid.txt")))
	info, err := os.Stat(filepath.Join(dst, "sub", "mid.txt"))
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(past))
	// Everything else still arrives.
	assert.Equal(t, "leaf file content", readFile(t, filepath.Join(dst, "sub", "deep", "leaf.txt")))
}

func TestCopy_BackupHoldsPreviousContent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := filepath.Join(dir, "a")
	dst := filepath.Join(dir, "b")
	writeFile(t, src, "new content")
	writeFile(t, dst, "previous content")

	opts := CopyOptions{Backup: backup.Policy{Method: backup.Simple, Suffix: ".bak"}}
	res := copyTree(t, src, dst, opts)

	require.True(t, res.OK(), "failures: %v", res.Err())
	assert.Equal(t, "previous content", readFile(t, dst+".bak"))
	assert.Equal(t, "new content", readFile(t, dst))
}

func TestCopy_MultipleSourcesContinuePastFailure(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	into := filepath.Join(dir, "into")
	require.NoError(t, os.Mkdir(into, 0o755))
	good := filepath.Join(dir, "good")
	writeFile(t, good, "ok")

	targets, err := ResolveTargets([]string{filepath.Join(dir, "missing"), good, into}, "", false)
	require.NoError(t, err)

	res := Copy(context.Background(), targets, CopyOptions{}, Env{})

	require.Len(t, res.Failures, 1)
	assert.Equal(t, NotFound, res.Failures[0].Kind)
	assert.Equal(t, int64(1), res.Stats.Failed)
	assert.Equal(t, "ok", readFile(t, filepath.Join(into, "good")))
}

func TestCopy_WillNotOverwriteJustCreated(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "x"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "y"), 0o755))
	writeFile(t, filepath.Join(dir, "x", "f"), "from x")
	writeFile(t, filepath.Join(dir, "y", "f"), "from y")
	into := filepath.Join(dir, "into")
	require.NoError(t, os.Mkdir(into, 0o755))

	targets, err := ResolveTargets([]string{filepath.Join(dir, "x", "f"), filepath.Join(dir, "y", "f"), into}, "", false)
	require.NoError(t, err)

	res := Copy(context.Background(), targets, CopyOptions{Force: true}, Env{})

	require.Len(t, res.Failures, 1)
	assert.ErrorIs(t, res.Failures[0], ErrJustCreated)
	assert.Equal(t, "from x", readFile(t, filepath.Join(into, "f")))
}

func mkdirs(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.MkdirAll(filepath.Join(root, name), 0o755))
	}
}

// Conflict handling across a whole invocation, where decisions made for one
// source affect the next.
func TestCopy_ConflictInteractions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		setup func(t *testing.T, dir string) []Target
		check func(t *testing.T, dir string, res Result)
		name  string
		opts  CopyOptions
	}{
		{
			name: "two sources onto one existing destination keep the original",
			opts: CopyOptions{Backup: backup.Policy{Method: backup.Numbered}},
			setup: func(t *testing.T, dir string) []Target {
				mkdirs(t, dir, "d1", "d2", "out")
				writeFile(t, filepath.Join(dir, "d1", "x"), "one")
				writeFile(t, filepath.Join(dir, "d2", "x"), "two")
				writeFile(t, filepath.Join(dir, "out", "x"), "orig")
				out := filepath.Join(dir, "out", "x")
				return []Target{
					{Src: filepath.Join(dir, "d1", "x"), Dst: out},
					{Src: filepath.Join(dir, "d2", "x"), Dst: out},
				}
			},
			check: func(t *testing.T, dir string, res Result) {
				require.Len(t, res.Failures, 1)
				assert.ErrorIs(t, res.Failures[0], ErrJustCreated)
				assert.Equal(t, "one", readFile(t, filepath.Join(dir, "out", "x")))
				assert.Equal(t, "orig", readFile(t, filepath.Join(dir, "out", "x.~1~")))
				assert.NoFileExists(t, filepath.Join(dir, "out", "x.~2~"))
			},
		},
		{
			name: "force replaces without a backup",
			opts: CopyOptions{Force: true, Backup: backup.Policy{Method: backup.Simple, Suffix: "~"}},
			setup: func(t *testing.T, dir string) []Target {
				writeFile(t, filepath.Join(dir, "a"), "new")
				writeFile(t, filepath.Join(dir, "b"), "old")
				return []Target{{Src: filepath.Join(dir, "a"), Dst: filepath.Join(dir, "b")}}
			},
			check: func(t *testing.T, dir string, res Result) {
				require.True(t, res.OK(), "failures: %v", res.Err())
				assert.Equal(t, "new", readFile(t, filepath.Join(dir, "b")))
				assert.NoFileExists(t, filepath.Join(dir, "b~"))
				assert.Zero(t, res.Stats.Backups)
			},
		},
		{
			name: "no clobber directory onto a file is skipped whole",
			opts: CopyOptions{Recursive: true, NoClobber: true},
			setup: func(t *testing.T, dir string) []Target {
				createTestTree(t, filepath.Join(dir, "src"))
				writeFile(t, filepath.Join(dir, "dst"), "a file")
				return []Target{{Src: filepath.Join(dir, "src"), Dst: filepath.Join(dir, "dst")}}
			},
			check: func(t *testing.T, dir string, res Result) {
				require.True(t, res.OK(), "failures: %v", res.Err())
				assert.Equal(t, "a file", readFile(t, filepath.Join(dir, "dst")))
				assert.Equal(t, int64(1), res.Stats.Skipped)
				assert.Zero(t, res.Stats.FilesCopied)
			},
		},
		{
			name: "no clobber directory onto a directory merges",
			opts: CopyOptions{Recursive: true, NoClobber: true},
			setup: func(t *testing.T, dir string) []Target {
				mkdirs(t, dir, "src", "dst")
				writeFile(t, filepath.Join(dir, "src", "keep.txt"), "incoming")
				writeFile(t, filepath.Join(dir, "src", "add.txt"), "added")
				writeFile(t, filepath.Join(dir, "dst", "keep.txt"), "existing")
				return []Target{{Src: filepath.Join(dir, "src"), Dst: filepath.Join(dir, "dst")}}
			},
			check: func(t *testing.T, dir string, res Result) {
				require.True(t, res.OK(), "failures: %v", res.Err())
				assert.Equal(t, "existing", readFile(t, filepath.Join(dir, "dst", "keep.txt")))
				assert.Equal(t, "added", readFile(t, filepath.Join(dir, "dst", "add.txt")))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			targets := tt.setup(t, dir)
			res := Copy(context.Background(), targets, tt.opts, Env{})
			tt.check(t, dir, res)
		})
	}
}

func TestMove_DriverBackupReplaces(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	writeFile(t, a, "moved")
	writeFile(t, b, "replaced")

	opts := MoveOptions{TryRename: true, CopyOptions: CopyOptions{Backup: backup.Policy{Method: backup.Simple, Suffix: "~"}}}
	res := Move(context.Background(), []Target{{Src: a, Dst: b}}, opts, Env{})

	require.True(t, res.OK(), "failures: %v", res.Err())
	assert.Equal(t, "moved", readFile(t, b))
	assert.Equal(t, "replaced", readFile(t, b+"~"))
	assert.NoFileExists(t, a)
}

func TestMove_DriverInteractiveDeclined(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	writeFile(t, a, "a")
	writeFile(t, b, "b")

	p := &scriptedPrompter{reply: false}
	opts := MoveOptions{TryRename: true, CopyOptions: CopyOptions{Interactive: true}}
	res := Move(context.Background(), []Target{{Src: a, Dst: b}}, opts, Env{Prompter: p})

	require.True(t, res.OK())
	assert.Equal(t, []string{b}, p.asked)
	assert.Equal(t, "a", readFile(t, a))
	assert.Equal(t, "b", readFile(t, b))
}

func TestResolveTargets(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	d := filepath.Join(dir, "d")
	require.NoError(t, os.Mkdir(d, 0o755))
	f := filepath.Join(dir, "f")
	writeFile(t, f, "x")

	t.Run("file to new path", func(t *testing.T) {
		t.Parallel()
		got, err := ResolveTargets([]string{f, filepath.Join(dir, "new")}, "", false)
		require.NoError(t, err)
		assert.Equal(t, []Target{{Src: f, Dst: filepath.Join(dir, "new")}}, got)
	})

	t.Run("existing directory receives base name", func(t *testing.T) {
		t.Parallel()
		got, err := ResolveTargets([]string{"some/where/f", d}, "", false)
		require.NoError(t, err)
		assert.Equal(t, []Target{{Src: "some/where/f", Dst: filepath.Join(d, "f")}}, got)
	})

	t.Run("trailing slash on source", func(t *testing.T) {
		t.Parallel()
		got, err := ResolveTargets([]string{"tree/", d}, "", false)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(d, "tree"), got[0].Dst)
	})

	t.Run("no target directory", func(t *testing.T) {
		t.Parallel()
		got, err := ResolveTargets([]string{f, d}, "", true)
		require.NoError(t, err)
		assert.Equal(t, []Target{{Src: f, Dst: d}}, got)
	})

	t.Run("target directory flag", func(t *testing.T) {
		t.Parallel()
		got, err := ResolveTargets([]string{"a", "b"}, d, false)
		require.NoError(t, err)
		assert.Equal(t, []Target{
			{Src: "a", Dst: filepath.Join(d, "a")},
			{Src: "b", Dst: filepath.Join(d, "b")},
		}, got)
	})

	t.Run("several sources need a directory", func(t *testing.T) {
		t.Parallel()
		_, err := ResolveTargets([]string{"a", "b", f}, "", false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "is not a directory")
	})

	t.Run("missing destination", func(t *testing.T) {
		t.Parallel()
		_, err := ResolveTargets([]string{"a"}, "", false)
		require.ErrorIs(t, err, ErrMissingDestination)
	})

	t.Run("conflicting flags", func(t *testing.T) {
		t.Parallel()
		_, err := ResolveTargets([]string{"a"}, d, true)
		require.ErrorIs(t, err, ErrTargetConflict)
	})

	t.Run("extra operand with -T", func(t *testing.T) {
		t.Parallel()
		_, err := ResolveTargets([]string{"a", "b", "c"}, "", true)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "extra operand 'c'")
	})
}

func TestCopy_LongDestinationName(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := filepath.Join(dir, "a")
	writeFile(t, src, "payload")
	long := filepath.Join(dir, strings.Repeat("n", 242))

	res := copyTree(t, src, long, CopyOptions{})

	require.True(t, res.OK(), "failures: %v", res.Err())
	assert.Equal(t, "payload", readFile(t, long))
	assert.Empty(t, findTmpFiles(t, dir))
}

func TestTmpPathFor_StaysWithinNameMax(t *testing.T) {
	t.Parallel()

	for _, base := range []string{"f", strings.Repeat("n", 235), strings.Repeat("n", 255), strings.Repeat("é", 127)} {
		name := filepath.Base(tmpPathFor(filepath.Join("/d", base)))
		assert.LessOrEqual(t, len(name), nameMax, "base of %d bytes", len(base))
		assert.True(t, strings.HasSuffix(name, tmpSuffix))
		assert.True(t, utf8.ValidString(name))
	}
}

func TestCleanupTmpFiles(t *testing.T) {
	dir := t.TempDir()
	tmp := tmpPathFor(filepath.Join(dir, "file"))
	writeFile(t, tmp, "partial")
	RegisterTmp(tmp)

	assert.GreaterOrEqual(t, CleanupTmpFiles(), 1)
	_, err := os.Lstat(tmp)
	assert.True(t, os.IsNotExist(err))
}

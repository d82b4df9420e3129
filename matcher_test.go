package linkterm

import (
	"os"
	"testing"

	"github.com/spf13/afero"
)

func newTestMatcher(fs afero.Fs, cwd string) *matcher {
	return &matcher{
		rules:           BaselineRules(),
		fs:              fs,
		wd:              StaticWorkingDir(cwd),
		requireExisting: true,
	}
}

func memFsWith(t *testing.T, paths ...string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for _, p := range paths {
		if err := afero.WriteFile(fs, p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
	return fs
}

func TestMatcher_RelativePath(t *testing.T) {
	fs := memFsWith(t, "/repo/src/main.rs")
	m := newTestMatcher(fs, "/repo")

	stripped, idx := Strip("src/main.rs:42\n")
	matches := m.find(stripped, idx)
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	got := matches[0]
	if got.Path != "/repo/src/main.rs" || got.Line != 42 {
		t.Errorf("unexpected match: %+v", got)
	}
	if got.SourceStart != 0 || got.SourceEnd != 14 {
		t.Errorf("unexpected source range [%d, %d)", got.SourceStart, got.SourceEnd)
	}
}

func TestMatcher_AbsolutePath(t *testing.T) {
	fs := memFsWith(t, "/tmp/x.py")
	m := newTestMatcher(fs, "/repo")

	stripped, idx := Strip(`File "/tmp/x.py", line 7, in foo`)
	matches := m.find(stripped, idx)
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].Path != "/tmp/x.py" || matches[0].Line != 7 {
		t.Errorf("unexpected match: %+v", matches[0])
	}
	if matches[0].Rule != "PythonTraceback" {
		t.Errorf("expected PythonTraceback, got %s", matches[0].Rule)
	}
}

func TestMatcher_ExistenceGate(t *testing.T) {
	m := newTestMatcher(afero.NewMemMapFs(), "/repo")

	stripped, idx := Strip("version 1.2:34 released and src/gone.rs:1\n")
	if matches := m.find(stripped, idx); len(matches) != 0 {
		t.Errorf("expected no matches, got %+v", matches)
	}
}

func TestMatcher_EmptyInput(t *testing.T) {
	m := newTestMatcher(afero.NewMemMapFs(), "/repo")

	stripped, idx := Strip("")
	if matches := m.find(stripped, idx); matches != nil {
		t.Errorf("expected nil, got %+v", matches)
	}
}

func TestMatcher_PriorityOverlap(t *testing.T) {
	// The ipdb frame and FilePath both match around "src/m.py:4"; the
	// traceback rule outranks FilePath and keeps the span.
	fs := memFsWith(t, "/repo/src/m.py:4")
	m := newTestMatcher(fs, "/repo")

	stripped, idx := Strip("> src/m.py:4(12)\n")
	matches := m.find(stripped, idx)
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d: %+v", len(matches), matches)
	}
	got := matches[0]
	if got.Rule != "IpdbTraceback" {
		t.Errorf("expected IpdbTraceback to win, got %s", got.Rule)
	}
	if got.Line != 12 {
		t.Errorf("expected line 12 from the traceback rule, got %d", got.Line)
	}
	if stripped[got.WrapStart:got.WrapEnd] != "src/m.py:4" {
		t.Errorf("unexpected wrap span %q", stripped[got.WrapStart:got.WrapEnd])
	}
}

func TestMatcher_Permissive(t *testing.T) {
	m := newTestMatcher(afero.NewMemMapFs(), "/repo")
	m.requireExisting = false

	stripped, idx := Strip("src/never_built.rs:3 and version 1.2:34\n")
	matches := m.find(stripped, idx)
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d: %+v", len(matches), matches)
	}
	// The slashed path links without existing; the version string still
	// does not look like a path.
	if matches[0].Path != "/repo/src/never_built.rs" {
		t.Errorf("unexpected match: %+v", matches[0])
	}
}

// erroringFs fails every Stat call, simulating a broken filesystem probe.
type erroringFs struct {
	afero.Fs
}

func (e erroringFs) Stat(name string) (os.FileInfo, error) {
	return nil, os.ErrPermission
}

func TestMatcher_ProbeErrorFailsClosed(t *testing.T) {
	fs := memFsWith(t, "/repo/src/main.rs")
	m := newTestMatcher(erroringFs{fs}, "/repo")

	stripped, idx := Strip("src/main.rs:42\n")
	if matches := m.find(stripped, idx); len(matches) != 0 {
		t.Errorf("expected no matches on probe error, got %+v", matches)
	}
}

func TestMatcher_StyledRange(t *testing.T) {
	fs := memFsWith(t, "/repo/src/main.rs")
	m := newTestMatcher(fs, "/repo")

	s := "\x1b[31msrc/main.rs:42\x1b[0m: TODO\n"
	stripped, idx := Strip(s)
	matches := m.find(stripped, idx)
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	got := matches[0]
	if got.SourceStart != 5 || got.SourceEnd != 19 {
		t.Errorf("expected source range [5, 19), got [%d, %d)", got.SourceStart, got.SourceEnd)
	}
	if s[got.SourceStart:got.SourceEnd] != "src/main.rs:42" {
		t.Errorf("source range selects %q", s[got.SourceStart:got.SourceEnd])
	}
}

func TestMatcher_MiddlewareFilter(t *testing.T) {
	fs := memFsWith(t, "/repo/src/main.rs", "/repo/src/skip.rs")
	m := newTestMatcher(fs, "/repo")
	m.mw = &Middleware{
		FilterMatch: func(match Match, next func(Match) bool) bool {
			if match.Path == "/repo/src/skip.rs" {
				return false
			}
			return next(match)
		},
	}

	stripped, idx := Strip("src/main.rs:1 src/skip.rs:2\n")
	matches := m.find(stripped, idx)
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d: %+v", len(matches), matches)
	}
	if matches[0].Path != "/repo/src/main.rs" {
		t.Errorf("unexpected match: %+v", matches[0])
	}
}

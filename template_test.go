package linkterm

import "testing"

func TestURLTemplate_Default(t *testing.T) {
	tmpl := DefaultURLTemplate()

	got := tmpl.URL("/repo/src/main.rs", 42)
	want := "cursor://file//repo/src/main.rs:42"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestURLTemplate_NoLine(t *testing.T) {
	tmpl := DefaultURLTemplate()

	// Without a line number the ":{line}" suffix disappears entirely.
	got := tmpl.URL("/repo/src/main.rs", 0)
	want := "cursor://file//repo/src/main.rs"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestURLTemplate_Custom(t *testing.T) {
	tmpl, err := ParseURLTemplate("vscode://file/{abs_path}:{line}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := tmpl.URL("/a/b.go", 7)
	if got != "vscode://file//a/b.go:7" {
		t.Errorf("unexpected url %q", got)
	}
}

func TestURLTemplate_UnknownPlaceholder(t *testing.T) {
	if _, err := ParseURLTemplate("x://{abs_path}?c={col}"); err == nil {
		t.Error("expected error for unknown placeholder")
	}
}

func TestURLTemplate_Unterminated(t *testing.T) {
	if _, err := ParseURLTemplate("x://{abs_path"); err == nil {
		t.Error("expected error for unterminated placeholder")
	}
}

func TestURLTemplate_Empty(t *testing.T) {
	if _, err := ParseURLTemplate(""); err == nil {
		t.Error("expected error for empty template")
	}
}

func TestEscapePath(t *testing.T) {
	cases := []struct{ in, want string }{
		{"/repo/src/main.rs", "/repo/src/main.rs"},
		{"/has space/file.go", "/has%20space/file.go"},
		{"/caf\u00e9/x.py", "/caf%C3%A9/x.py"},
		{"/a&b/c.go", "/a%26b/c.go"},
		{"/ok-._~/f", "/ok-._~/f"},
	}
	for _, c := range cases {
		if got := escapePath(c.in); got != c.want {
			t.Errorf("escapePath(%q): expected %q, got %q", c.in, c.want, got)
		}
	}
}

package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	cases := map[string]string{
		"":          "",
		"/tmp":      "/tmp",
		"rel/x":     "rel/x",
		"~":         home,
		"~/m/a.bin": filepath.Join(home, "m", "a.bin"),
	}
	for in, want := range cases {
		got, err := ExpandHome(in)
		if err != nil || got != want {
			t.Fatalf("ExpandHome(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
}

func TestResolveFrom(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	base := filepath.Join(home, "manifests")
	abs := filepath.Join(home, "abs.bin")
	cases := map[string]string{
		"":          "",
		abs:         abs,
		"m.bin":     filepath.Join(base, "m.bin"),
		"../m.bin":  filepath.Join(home, "m.bin"),
		"~/w/m.bin": filepath.Join(home, "w", "m.bin"),
	}
	for in, want := range cases {
		got, err := ResolveFrom(base, in)
		if err != nil || got != want {
			t.Fatalf("ResolveFrom(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
}

func TestPathExists(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "f")
	if PathExists(p) {
		t.Fatalf("unexpected existing path")
	}
	if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !PathExists(p) || !PathExists(dir) {
		t.Fatalf("expected paths to exist")
	}
}

package panehost

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// fakeTmux writes a small shell script masquerading as the tmux binary,
// so Tmux's exec.Command wrapping can be exercised without a real
// terminal multiplexer.
func fakeTmux(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake tmux script requires a POSIX shell")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "fake-tmux")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestSessionExistsTrueOnZeroExit(t *testing.T) {
	bin := fakeTmux(t, `exit 0`)
	host := &Tmux{Command: bin}
	ok, err := host.SessionExists(context.Background(), "sess")
	if err != nil {
		t.Fatalf("SessionExists: %v", err)
	}
	if !ok {
		t.Fatalf("expected session to exist")
	}
}

func TestSessionExistsFalseOnNonZeroExit(t *testing.T) {
	bin := fakeTmux(t, `exit 1`)
	host := &Tmux{Command: bin}
	ok, err := host.SessionExists(context.Background(), "sess")
	if err != nil {
		t.Fatalf("SessionExists should treat a nonzero exit as absence, got error: %v", err)
	}
	if ok {
		t.Fatalf("expected session to not exist")
	}
}

func TestAddPaneParsesIndex(t *testing.T) {
	bin := fakeTmux(t, `echo 3`)
	host := &Tmux{Command: bin}
	idx, err := host.AddPane(context.Background(), "sess")
	if err != nil {
		t.Fatalf("AddPane: %v", err)
	}
	if idx != 3 {
		t.Fatalf("expected pane index 3, got %d", idx)
	}
}

func TestAddPaneRejectsUnparsableOutput(t *testing.T) {
	bin := fakeTmux(t, `echo not-a-number`)
	host := &Tmux{Command: bin}
	if _, err := host.AddPane(context.Background(), "sess"); err == nil {
		t.Fatalf("expected unparsable pane index output to fail")
	}
}

func TestRunWrapsFailureWithStderr(t *testing.T) {
	bin := fakeTmux(t, fmt.Sprintf(`echo %q 1>&2; exit 1`, "boom"))
	host := &Tmux{Command: bin}
	if err := host.NewSession(context.Background(), "sess"); err == nil {
		t.Fatalf("expected NewSession to fail")
	}
}

func TestBinDefaultsToTmux(t *testing.T) {
	host := &Tmux{}
	if host.bin() != "tmux" {
		t.Fatalf("expected default binary name tmux, got %q", host.bin())
	}
	host = &Tmux{Command: "/usr/local/bin/tmux"}
	if host.bin() != "/usr/local/bin/tmux" {
		t.Fatalf("expected overridden binary name, got %q", host.bin())
	}
}

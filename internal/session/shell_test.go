package session

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/zx06/xssh/internal/errors"
)

// fakeTerminal 脚本化的本地终端。
type fakeTerminal struct {
	mu       sync.Mutex
	isTTY    bool
	rows     int
	cols     int
	rawErr   error
	raws     int
	restores int
	resize   chan os.Signal
	stops    int
}

func newFakeTerminal(isTTY bool, rows, cols int) *fakeTerminal {
	return &fakeTerminal{isTTY: isTTY, rows: rows, cols: cols, resize: make(chan os.Signal, 1)}
}

func (t *fakeTerminal) IsTerminal() bool { return t.isTTY }

func (t *fakeTerminal) MakeRaw() (func(), error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.rawErr != nil {
		return nil, t.rawErr
	}
	t.raws++
	return func() {
		t.mu.Lock()
		t.restores++
		t.mu.Unlock()
	}, nil
}

func (t *fakeTerminal) Size() (int, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rows, t.cols
}

func (t *fakeTerminal) setSize(rows, cols int) {
	t.mu.Lock()
	t.rows, t.cols = rows, cols
	t.mu.Unlock()
}

func (t *fakeTerminal) Notify() (<-chan os.Signal, func()) {
	return t.resize, func() {
		t.mu.Lock()
		t.stops++
		t.mu.Unlock()
	}
}

func (t *fakeTerminal) counts() (raws, restores, stops int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.raws, t.restores, t.stops
}

// blockedReader 永不返回的输入端，模拟等待键盘的 stdin。
type blockedReader struct{}

func (blockedReader) Read(p []byte) (int, error) {
	select {}
}

func TestRunShellOutputEOFEndsSession(t *testing.T) {
	remote := newFakeRemote("remote output\r\n", "")
	term := newFakeTerminal(true, 50, 120)
	var out strings.Builder

	done := make(chan *errors.XError, 1)
	go func() {
		done <- RunShell(remote, ShellOptions{Term: term, In: blockedReader{}, Out: &out})
	}()

	select {
	case xe := <-done:
		if xe != nil {
			t.Fatalf("RunShell failed: %v", xe)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("remote stdout EOF should end the shell session")
	}

	if !remote.shellCalled {
		t.Error("Shell should be requested")
	}
	if remote.ptyTerm != "xterm-256color" {
		t.Errorf("pty term = %q, want xterm-256color", remote.ptyTerm)
	}
	if remote.ptyRows != 50 || remote.ptyCols != 120 {
		t.Errorf("pty size = %dx%d, want 50x120", remote.ptyRows, remote.ptyCols)
	}
	if out.String() != "remote output\r\n" {
		t.Errorf("out = %q", out.String())
	}

	raws, restores, stops := term.counts()
	if raws != 1 || restores != 1 {
		t.Errorf("raw/restore = %d/%d, want 1/1", raws, restores)
	}
	if stops != 1 {
		t.Errorf("resize source should be deregistered once, got %d", stops)
	}
}

func TestRunShellInputEOFEndsSession(t *testing.T) {
	// 远端 stdout 永不返回；本地输入到达 EOF 即结束。
	pr, _ := io.Pipe()
	remote := newFakeRemote("", "")
	remote.stdout = pr
	term := newFakeTerminal(false, 24, 80)

	done := make(chan *errors.XError, 1)
	go func() {
		done <- RunShell(remote, ShellOptions{Term: term, In: strings.NewReader("exit\n"), Out: io.Discard})
	}()

	select {
	case xe := <-done:
		if xe != nil {
			t.Fatalf("RunShell failed: %v", xe)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("local stdin EOF should end the shell session")
	}
	if got := remote.stdin.String(); got != "exit\n" {
		t.Errorf("remote stdin = %q, want %q", got, "exit\n")
	}
}

func TestRunShellNonTTYSkipsRawMode(t *testing.T) {
	remote := newFakeRemote("", "")
	term := newFakeTerminal(false, 24, 80)

	if xe := RunShell(remote, ShellOptions{Term: term, In: strings.NewReader(""), Out: io.Discard}); xe != nil {
		t.Fatalf("RunShell failed: %v", xe)
	}
	raws, _, _ := term.counts()
	if raws != 0 {
		t.Errorf("non-tty should not enter raw mode, got %d", raws)
	}
	if remote.ptyRows != 24 || remote.ptyCols != 80 {
		t.Errorf("pty size = %dx%d, want fallback 24x80", remote.ptyRows, remote.ptyCols)
	}
}

func TestRunShellRestoresOnShellFailure(t *testing.T) {
	remote := newFakeRemote("", "")
	remote.shellErr = fmt.Errorf("shell request denied")
	term := newFakeTerminal(true, 24, 80)

	xe := RunShell(remote, ShellOptions{Term: term, In: strings.NewReader(""), Out: io.Discard})
	if xe == nil || xe.Code != errors.CodeSessionFailed {
		t.Fatalf("shell failure should be %s, got %v", errors.CodeSessionFailed, xe)
	}
	_, restores, _ := term.counts()
	if restores != 1 {
		t.Errorf("cooked mode must be restored on the error path, got %d restores", restores)
	}
}

func TestRunShellForwardsResize(t *testing.T) {
	pr, pw := io.Pipe()
	remote := newFakeRemote("", "")
	remote.stdout = pr
	term := newFakeTerminal(true, 24, 80)

	done := make(chan *errors.XError, 1)
	go func() {
		done <- RunShell(remote, ShellOptions{Term: term, In: blockedReader{}, Out: io.Discard})
	}()

	term.setSize(60, 200)
	term.resize <- syscall.SIGWINCH

	select {
	case wc := <-remote.windowChanges:
		if wc != [2]int{60, 200} {
			t.Errorf("window change = %v, want [60 200]", wc)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("resize event should be forwarded to the remote")
	}

	_ = pw.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session should end after stdout close")
	}
}

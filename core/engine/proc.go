package engine

import (
	"bufio"
	"bytes"
	"io"
	"net/url"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/corpusworks/annot/core/errors"
)

// Transport abstracts the engine process's pipes so tests can inject a
// fake without spawning anything.
type Transport interface {
	// WriteString appends to the process's input stream.
	WriteString(s string) error
	// Flush pushes buffered input to the process.
	Flush() error
	// ReadLine reads one output line without its trailing newline.
	ReadLine() (string, error)
	// Exchange writes the payload, signals end-of-input and drains the
	// full response. The process is unusable afterwards.
	Exchange(payload string) (string, error)
	// Healthy reports whether the process is still running with open
	// pipes.
	Healthy() bool
	// Close terminates the process.
	Close() error
}

// procTransport runs the engine as a child process with buffered pipes.
type procTransport struct {
	binary string
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	bw     *bufio.Writer
	br     *bufio.Reader
	stderr bytes.Buffer

	mu     sync.Mutex
	exited bool
	waited bool
}

// engineArgs builds the process argument list from the configuration.
// A model URL is passed straight through; a local model file is split
// into its working directory and model name, with a trailing model
// file extension stripped.
func engineArgs(cfg Config) []string {
	opts := cfg.JavaOpts
	if opts == nil {
		opts = []string{"-Xmx1024m"}
	}
	args := append([]string{}, opts...)
	args = append(args, "-jar", cfg.JarPath, "-ic", "UTF-8", "-oc", "UTF-8", "-m", "parse")

	if u, err := url.Parse(cfg.Model); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return append(args, "-u", cfg.Model)
	}
	modelDir, model := filepath.Split(cfg.Model)
	model = strings.TrimSuffix(model, filepath.Ext(model))
	if modelDir != "" {
		args = append(args, "-w", filepath.Clean(modelDir))
	}
	return append(args, "-c", model)
}

// newProcTransport spawns the engine process.
func newProcTransport(cfg Config) (*procTransport, error) {
	javaBin := cfg.JavaBin
	if javaBin == "" {
		javaBin = "java"
	}
	cmd := exec.Command(javaBin, engineArgs(cfg)...)

	t := &procTransport{binary: cfg.JarPath, cmd: cmd}
	cmd.Stderr = &t.stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.NewProcess(cfg.JarPath, "", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.NewProcess(cfg.JarPath, "", err)
	}
	t.stdin = stdin
	t.bw = bufio.NewWriter(stdin)
	t.br = bufio.NewReader(stdout)

	if err := cmd.Start(); err != nil {
		return nil, errors.NewProcess(cfg.JarPath, t.stderr.String(), err)
	}
	return t, nil
}

func (t *procTransport) WriteString(s string) error {
	if _, err := t.bw.WriteString(s); err != nil {
		t.markExited()
		return errors.NewProcess(t.binary, t.stderr.String(), err)
	}
	return nil
}

func (t *procTransport) Flush() error {
	if err := t.bw.Flush(); err != nil {
		t.markExited()
		return errors.NewProcess(t.binary, t.stderr.String(), err)
	}
	return nil
}

func (t *procTransport) ReadLine() (string, error) {
	line, err := t.br.ReadString('\n')
	if err != nil {
		t.markExited()
		return "", errors.NewProcess(t.binary, t.stderr.String(), err)
	}
	return strings.TrimSuffix(line, "\n"), nil
}

// Exchange implements communicate-and-wait semantics: the payload is
// written from a separate goroutine while this one drains stdout, so
// neither pipe can fill up and block the other.
func (t *procTransport) Exchange(payload string) (string, error) {
	writeErr := make(chan error, 1)
	go func() {
		if _, err := t.bw.WriteString(payload); err != nil {
			t.stdin.Close()
			writeErr <- err
			return
		}
		if err := t.bw.Flush(); err != nil {
			t.stdin.Close()
			writeErr <- err
			return
		}
		writeErr <- t.stdin.Close()
	}()

	out, readErr := io.ReadAll(t.br)
	werr := <-writeErr
	waitErr := t.wait()

	if readErr != nil {
		return "", errors.NewProcess(t.binary, t.stderr.String(), readErr)
	}
	if waitErr != nil {
		return "", errors.NewProcess(t.binary, t.stderr.String(), waitErr)
	}
	if werr != nil {
		return "", errors.NewProcess(t.binary, t.stderr.String(), werr)
	}
	return string(out), nil
}

func (t *procTransport) Healthy() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.exited {
		return false
	}
	if t.cmd.Process == nil {
		return false
	}
	// Signal 0 probes for existence without touching the process.
	return t.cmd.Process.Signal(syscall.Signal(0)) == nil
}

func (t *procTransport) Close() error {
	t.stdin.Close()
	if t.cmd.Process != nil {
		t.cmd.Process.Kill()
	}
	t.wait()
	return nil
}

// markExited records that the pipes are no longer usable.
func (t *procTransport) markExited() {
	t.mu.Lock()
	t.exited = true
	t.mu.Unlock()
}

// wait reaps the child exactly once.
func (t *procTransport) wait() error {
	t.mu.Lock()
	if t.waited {
		t.mu.Unlock()
		return nil
	}
	t.waited = true
	t.exited = true
	t.mu.Unlock()
	return t.cmd.Wait()
}

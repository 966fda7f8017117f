package process

import (
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultBufferLimit caps the retained output per process. Older bytes
	// are discarded first when the limit is exceeded.
	DefaultBufferLimit = 2 * 1024 * 1024

	// DefaultGracePeriod is how long Terminate waits after SIGTERM before
	// sending SIGKILL.
	DefaultGracePeriod = 5 * time.Second

	drainChunkSize = 32 * 1024
)

// Options configures a spawned process.
type Options struct {
	// BufferLimit caps retained output in bytes. Zero means DefaultBufferLimit.
	BufferLimit int

	// GracePeriod is the SIGTERM-to-SIGKILL window for Terminate.
	// Zero means DefaultGracePeriod.
	GracePeriod time.Duration

	// Dir is the working directory for the process.
	Dir string
}

// Handle wraps one OS child process: its stdin, a continuously drained
// output buffer, and its exit status. Output draining happens in background
// goroutines so bytes produced between reads are never lost.
type Handle struct {
	command string
	grace   time.Duration

	cmd   *exec.Cmd
	stdin io.WriteCloser

	mu         sync.Mutex
	buf        []byte
	head       int64 // absolute offset of buf[0]
	readPos    int64 // cursor for ReadAvailable
	bufLimit   int
	dropped    int64
	stdinOpen  bool
	exited     bool
	exitCode   int
	terminated bool

	done chan struct{}
}

// Start launches command under /bin/sh -c and begins draining its combined
// output. It returns ErrSpawn (wrapped) if the process cannot be launched.
func Start(command string, opts Options) (*Handle, error) {
	if command == "" {
		return nil, fmt.Errorf("%w: empty command", ErrSpawn)
	}

	limit := opts.BufferLimit
	if limit <= 0 {
		limit = DefaultBufferLimit
	}
	grace := opts.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}

	cmd := exec.Command("/bin/sh", "-c", command)
	if opts.Dir != "" {
		cmd.Dir = opts.Dir
	}
	// Own process group so Terminate can signal shell children too.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdin pipe: %v", ErrSpawn, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdout pipe: %v", ErrSpawn, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stderr pipe: %v", ErrSpawn, err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpawn, err)
	}

	h := &Handle{
		command:   command,
		grace:     grace,
		cmd:       cmd,
		stdin:     stdin,
		bufLimit:  limit,
		stdinOpen: true,
		done:      make(chan struct{}),
	}

	var drainers sync.WaitGroup
	drainers.Add(2)
	go h.drain(stdout, &drainers)
	go h.drain(stderr, &drainers)

	go func() {
		drainers.Wait()
		err := cmd.Wait()

		code := 0
		if exitErr, ok := err.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		} else if err != nil {
			code = -1
		}

		h.mu.Lock()
		h.exited = true
		h.exitCode = code
		h.stdinOpen = false
		h.mu.Unlock()
		close(h.done)

		log.Debug().Str("command", command).Int("exit_code", code).Msg("Process exited")
	}()

	log.Debug().Str("command", command).Int("pid", cmd.Process.Pid).Msg("Process started")

	return h, nil
}

// drain continuously copies one output stream into the shared buffer.
func (h *Handle) drain(r io.Reader, wg *sync.WaitGroup) {
	defer wg.Done()

	chunk := make([]byte, drainChunkSize)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			h.appendOutput(chunk[:n])
		}
		if err != nil {
			return
		}
	}
}

func (h *Handle) appendOutput(p []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.buf = append(h.buf, p...)
	if over := len(h.buf) - h.bufLimit; over > 0 {
		h.buf = h.buf[over:]
		h.head += int64(over)
		h.dropped += int64(over)
	}
}

// Command returns the shell command this handle was started with.
func (h *Handle) Command() string {
	return h.command
}

// WriteInput writes bytes to the process's stdin. It returns ErrClosed if
// the process has exited or its input stream was closed.
func (h *Handle) WriteInput(p []byte) error {
	h.mu.Lock()
	if !h.stdinOpen {
		h.mu.Unlock()
		return ErrClosed
	}
	stdin := h.stdin
	h.mu.Unlock()

	if _, err := stdin.Write(p); err != nil {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return nil
}

// CloseInput closes the process's stdin, signalling EOF. Idempotent.
func (h *Handle) CloseInput() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stdinOpen {
		h.stdinOpen = false
		h.stdin.Close()
	}
}

// ReadAvailable returns output accumulated since the previous call, possibly
// empty. It never blocks waiting for more data.
func (h *Handle) ReadAvailable() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()

	out, next := h.outputLocked(h.readPos)
	h.readPos = next
	return out
}

// Output returns output starting at the absolute offset from, plus the
// offset to resume from. Offsets older than the retained window are clamped
// forward, so pollers behind an overflowed buffer skip the dropped bytes.
func (h *Handle) Output(from int64) ([]byte, int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.outputLocked(from)
}

func (h *Handle) outputLocked(from int64) ([]byte, int64) {
	if from < h.head {
		from = h.head
	}
	end := h.head + int64(len(h.buf))
	if from >= end {
		return nil, end
	}
	out := make([]byte, end-from)
	copy(out, h.buf[from-h.head:])
	return out, end
}

// OutputSize returns the absolute offset just past the last byte produced
// so far, including bytes already dropped from the retained window.
func (h *Handle) OutputSize() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.head + int64(len(h.buf))
}

// DroppedBytes reports how many output bytes were discarded to honor the
// buffer limit.
func (h *Handle) DroppedBytes() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

// PollExit is a non-blocking status check. The second return is true once
// the process has exited.
func (h *Handle) PollExit() (int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitCode, h.exited
}

// Done returns a channel closed when the process exits and its output is
// fully drained.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Terminate sends SIGTERM to the process group, then SIGKILL after the
// grace period if the process has not exited. Idempotent.
func (h *Handle) Terminate() {
	h.mu.Lock()
	if h.terminated || h.exited {
		h.terminated = true
		h.mu.Unlock()
		return
	}
	h.terminated = true
	pid := h.cmd.Process.Pid
	h.mu.Unlock()

	// Negative pid signals the whole process group.
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
		log.Debug().Int("pid", pid).Err(err).Msg("SIGTERM failed")
	}

	select {
	case <-h.done:
	case <-time.After(h.grace):
		log.Warn().Int("pid", pid).Str("command", h.command).Msg("Grace period expired, sending SIGKILL")
		if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil {
			log.Debug().Int("pid", pid).Err(err).Msg("SIGKILL failed")
		}
		<-h.done
	}
}

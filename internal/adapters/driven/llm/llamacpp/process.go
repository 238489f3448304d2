package llamacpp

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/custodia-labs/docchat/internal/logger"
)

// Process is a running model server.
type Process interface {
	// Exited is closed when the process ends.
	Exited() <-chan struct{}

	// Stop terminates the process and waits for it to exit.
	Stop() error
}

// ProcessStarter launches a model server.
type ProcessStarter func(name string, args ...string) (Process, error)

// stopGrace is how long a server gets to exit after an interrupt.
const stopGrace = 5 * time.Second

type execProcess struct {
	cmd    *exec.Cmd
	exited chan struct{}
	once   sync.Once
	err    error
}

// StartProcess runs name with args, sending output to the log at debug level.
func StartProcess(name string, args ...string) (Process, error) {
	cmd := exec.Command(name, args...)
	cmd.Stdout = logWriter{}
	cmd.Stderr = logWriter{}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", name, err)
	}

	p := &execProcess{cmd: cmd, exited: make(chan struct{})}
	go func() {
		p.err = cmd.Wait()
		close(p.exited)
	}()
	return p, nil
}

func (p *execProcess) Exited() <-chan struct{} {
	return p.exited
}

func (p *execProcess) Stop() error {
	p.once.Do(func() {
		select {
		case <-p.exited:
			return
		default:
		}
		if err := p.cmd.Process.Signal(os.Interrupt); err != nil {
			_ = p.cmd.Process.Kill()
		}
		select {
		case <-p.exited:
		case <-time.After(stopGrace):
			_ = p.cmd.Process.Kill()
			<-p.exited
		}
	})

	var exitErr *exec.ExitError
	if p.err != nil && !errors.As(p.err, &exitErr) {
		return p.err
	}
	return nil
}

type logWriter struct{}

func (logWriter) Write(b []byte) (int, error) {
	logger.Debug("model server: %s", b)
	return len(b), nil
}

// findAvailablePort finds a free port on host in the given range.
func findAvailablePort(host string, startPort, endPort int) (int, error) {
	for port := startPort; port <= endPort; port++ {
		listener, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
		if err == nil {
			listener.Close()
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available port in range %d-%d", startPort, endPort)
}

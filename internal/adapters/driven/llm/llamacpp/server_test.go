package llamacpp

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

// fakeProcess serves the llama.cpp HTTP API in-process.
type fakeProcess struct {
	server *httptest.Server
	exited chan struct{}
	once   sync.Once
}

func (p *fakeProcess) Exited() <-chan struct{} { return p.exited }

func (p *fakeProcess) Stop() error {
	p.once.Do(func() {
		if p.server != nil {
			p.server.Close()
		}
	})
	p.markExited()
	return nil
}

// markExited closes exited once, whether the process died on its own or
// was stopped.
func (p *fakeProcess) markExited() {
	select {
	case <-p.exited:
	default:
		close(p.exited)
	}
}

type fakeStarter struct {
	mu      sync.Mutex
	name    string
	args    []string
	healthy bool
	exit    bool
	procs   []*fakeProcess
}

func (s *fakeStarter) start(name string, args ...string) (Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name, s.args = name, args

	proc := &fakeProcess{exited: make(chan struct{})}
	s.procs = append(s.procs, proc)
	if s.exit {
		proc.markExited()
		return proc, nil
	}

	listener, err := net.Listen("tcp", net.JoinHostPort(flagValue(args, "--host"), flagValue(args, "--port")))
	if err != nil {
		return nil, err
	}
	healthy := s.healthy
	server := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			if !healthy {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		case "/v1/chat/completions":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"local answer"}}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	server.Listener.Close()
	server.Listener = listener
	server.Start()
	proc.server = server
	return proc, nil
}

func flagValue(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func writeModel(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("weights"), 0o600))
	return path
}

func testConfig(starter *fakeStarter) Config {
	return Config{
		FirstPort:      18090,
		LastPort:       18190,
		StartupTimeout: 2 * time.Second,
		Start:          starter.start,
	}
}

func localModelConfig() domain.ModelConfig {
	mc := domain.DefaultModelConfig()
	mc.ModelType = domain.ModelTypeLocal
	mc.ContextWindow = 2048
	mc.GPULayers = 8
	return mc
}

func TestGGUFFactory_StartsServerAndGenerates(t *testing.T) {
	starter := &fakeStarter{healthy: true}
	path := writeModel(t, "mistral.gguf")

	gen, err := NewGGUFFactory(testConfig(starter))(context.Background(), path, localModelConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = gen.Close() })

	assert.Equal(t, DefaultBinary, starter.name)
	assert.Equal(t, path, flagValue(starter.args, "--model"))
	assert.Equal(t, "2048", flagValue(starter.args, "--ctx-size"))
	assert.Equal(t, "8", flagValue(starter.args, "--n-gpu-layers"))
	assert.Equal(t, "0.95", flagValue(starter.args, "--top-p"))
	assert.Equal(t, "1.2", flagValue(starter.args, "--repeat-penalty"))
	assert.Equal(t, "mistral.gguf", gen.ModelName())

	answer, err := gen.Generate(context.Background(), "q", nil, driven.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "local answer", answer)
}

func TestLlamafileFactory_ExecutesModelFile(t *testing.T) {
	starter := &fakeStarter{healthy: true}
	path := writeModel(t, "phi.llamafile")

	gen, err := NewLlamafileFactory(testConfig(starter))(context.Background(), path, localModelConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = gen.Close() })

	assert.Equal(t, path, starter.name)
	assert.Contains(t, starter.args, "--server")
	assert.Empty(t, flagValue(starter.args, "--model"))
}

func TestFactory_AllGPULayers(t *testing.T) {
	mc := localModelConfig()
	mc.GPULayers = -1

	assert.Equal(t, "999", flagValue(serverArgs(mc), "--n-gpu-layers"))
}

func TestFactory_MissingFile(t *testing.T) {
	starter := &fakeStarter{healthy: true}

	_, err := NewGGUFFactory(testConfig(starter))(context.Background(), "/nope/model.gguf", localModelConfig())

	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
	assert.Empty(t, starter.procs)
}

func TestFactory_ProcessExitsDuringStartup(t *testing.T) {
	starter := &fakeStarter{exit: true}
	path := writeModel(t, "broken.gguf")

	_, err := NewGGUFFactory(testConfig(starter))(context.Background(), path, localModelConfig())

	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
	require.Len(t, starter.procs, 1)
	// Stopping a process that already exited must stay safe.
	assert.NotPanics(t, func() { _ = starter.procs[0].Stop() })
}

func TestFactory_StartupTimeoutStopsProcess(t *testing.T) {
	starter := &fakeStarter{healthy: false}
	cfg := testConfig(starter)
	cfg.StartupTimeout = 300 * time.Millisecond
	path := writeModel(t, "slow.gguf")

	_, err := NewGGUFFactory(cfg)(context.Background(), path, localModelConfig())

	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
	require.Len(t, starter.procs, 1)
	select {
	case <-starter.procs[0].Exited():
	default:
		t.Fatal("process not stopped")
	}
}

func TestFactory_StartError(t *testing.T) {
	cfg := testConfig(&fakeStarter{})
	cfg.Start = func(string, ...string) (Process, error) { return nil, errors.New("exec: not found") }
	path := writeModel(t, "model.gguf")

	_, err := NewGGUFFactory(cfg)(context.Background(), path, localModelConfig())

	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
}

func TestFindAvailablePort(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()
	taken := listener.Addr().(*net.TCPAddr).Port

	port, err := findAvailablePort("127.0.0.1", taken, taken+50)
	require.NoError(t, err)
	assert.NotEqual(t, taken, port)

	_, err = findAvailablePort("127.0.0.1", taken, taken)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), strconv.Itoa(taken))
}

// Package llamacpp serves local model files through an OpenAI-compatible
// llama.cpp server. GGUF files are run by llama-server; llamafiles carry
// their own server and are executed directly.
package llamacpp

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/docchat/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
	"github.com/custodia-labs/docchat/internal/logger"
)

// Ensure Server implements the interfaces.
var _ driven.StreamingGenerator = (*Server)(nil)

// Default configuration values.
const (
	DefaultBinary         = "llama-server"
	DefaultHost           = "127.0.0.1"
	DefaultStartupTimeout = 2 * time.Minute
	DefaultFirstPort      = 8090
	DefaultLastPort       = 8190

	healthInterval = 250 * time.Millisecond
)

// Config holds configuration shared by the local backends.
type Config struct {
	// Binary is the llama.cpp server executable (default: llama-server).
	// Unused for llamafiles.
	Binary string

	// Host is the loopback address the server binds to (default: 127.0.0.1).
	Host string

	// StartupTimeout bounds model loading (default: 2m).
	StartupTimeout time.Duration

	// FirstPort and LastPort bound the ports tried for the server.
	FirstPort int
	LastPort  int

	// Start launches the server process (default: StartProcess).
	Start ProcessStarter
}

func (c Config) withDefaults() Config {
	if c.Binary == "" {
		c.Binary = DefaultBinary
	}
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.StartupTimeout <= 0 {
		c.StartupTimeout = DefaultStartupTimeout
	}
	if c.FirstPort == 0 {
		c.FirstPort = DefaultFirstPort
	}
	if c.LastPort < c.FirstPort {
		c.LastPort = c.FirstPort + (DefaultLastPort - DefaultFirstPort)
	}
	if c.Start == nil {
		c.Start = StartProcess
	}
	return c
}

// Server is a generator backed by a running model server process.
// Runtime parameters are fixed when the model is loaded.
type Server struct {
	*openai.Generator

	proc Process
	path string
}

// ModelName returns the model file name.
func (s *Server) ModelName() string {
	return filepath.Base(s.path)
}

// Close stops the server process.
func (s *Server) Close() error {
	logger.Info("Stopping model server for %s", s.ModelName())
	return s.proc.Stop()
}

// NewGGUFFactory returns a backend factory that runs .gguf files with llama-server.
func NewGGUFFactory(cfg Config) driven.LocalBackendFactory {
	cfg = cfg.withDefaults()
	return func(ctx context.Context, path string, mc domain.ModelConfig) (driven.Generator, error) {
		args := append([]string{"--model", path}, serverArgs(mc)...)
		return launch(ctx, cfg, path, cfg.Binary, args)
	}
}

// NewLlamafileFactory returns a backend factory that executes .llamafile files.
func NewLlamafileFactory(cfg Config) driven.LocalBackendFactory {
	cfg = cfg.withDefaults()
	return func(ctx context.Context, path string, mc domain.ModelConfig) (driven.Generator, error) {
		args := append([]string{"--server", "--nobrowser"}, serverArgs(mc)...)
		return launch(ctx, cfg, path, path, args)
	}
}

// serverArgs maps model configuration onto server flags.
func serverArgs(mc domain.ModelConfig) []string {
	args := []string{
		"--ctx-size", strconv.Itoa(mc.ContextWindow),
		"--n-gpu-layers", strconv.Itoa(gpuLayers(mc.GPULayers)),
		"--n-predict", strconv.Itoa(mc.MaxTokens),
		"--temp", formatFloat(mc.Temperature),
		"--top-p", formatFloat(mc.TopP),
	}
	if mc.RepeatPenalty > 0 {
		args = append(args, "--repeat-penalty", formatFloat(mc.RepeatPenalty))
	}
	return args
}

// gpuLayers maps -1 (offload everything) to a layer count the server accepts.
func gpuLayers(n int) int {
	if n < 0 {
		return 999
	}
	return n
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func launch(ctx context.Context, cfg Config, path, name string, args []string) (*Server, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: model file: %w", domain.ErrProviderUnavailable, err)
	}

	port, err := findAvailablePort(cfg.Host, cfg.FirstPort, cfg.LastPort)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
	}
	args = append(args, "--host", cfg.Host, "--port", strconv.Itoa(port))

	logger.Info("Starting model server for %s on port %d", filepath.Base(path), port)
	logger.Debug("%s %s", name, strings.Join(args, " "))

	proc, err := cfg.Start(name, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
	}

	baseURL := "http://" + net.JoinHostPort(cfg.Host, strconv.Itoa(port))
	if err := waitHealthy(ctx, baseURL, proc, cfg.StartupTimeout); err != nil {
		_ = proc.Stop()
		return nil, err
	}

	gen, err := openai.NewGenerator(openai.Config{
		AllowNoKey: true,
		BaseURL:    baseURL + "/v1",
		Model:      filepath.Base(path),
	})
	if err != nil {
		_ = proc.Stop()
		return nil, err
	}

	logger.Info("Model server ready for %s", filepath.Base(path))
	return &Server{Generator: gen, proc: proc, path: path}, nil
}

// waitHealthy polls /health until the model is loaded.
func waitHealthy(ctx context.Context, baseURL string, proc Process, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", http.NoBody)
		if err != nil {
			return err
		}
		if resp, err := client.Do(req); err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}

		select {
		case <-proc.Exited():
			return fmt.Errorf("%w: model server exited during startup", domain.ErrProviderUnavailable)
		case <-ctx.Done():
			return fmt.Errorf("%w: model server not ready: %w", domain.ErrProviderUnavailable, ctx.Err())
		case <-ticker.C:
		}
	}
}

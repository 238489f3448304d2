// Command docchat answers questions about uploaded documents.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/docchat/internal/adapters/driven/config/file"
	"github.com/custodia-labs/docchat/internal/adapters/driving/cli"
	"github.com/custodia-labs/docchat/internal/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	loadEnv(".env")

	dir, err := resolveDataDir(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return cli.ExitConfig
	}
	loadEnv(filepath.Join(dir, ".env"))

	if logPath, err := logger.OpenFile(filepath.Join(dir, "logs")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: file logging disabled: %v\n", err)
	} else {
		defer func() { _ = logger.CloseFile() }()
		logger.Debug("logging to %s", logPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return cli.ExitCode(err)
	}
	defer a.Close()

	go a.watch(ctx)
	go a.runScheduler(ctx)

	cli.SetVersion(version)
	cli.SetServices(a.services)
	if err := cli.Execute(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return cli.ExitCode(err)
	}
	return cli.ExitOK
}

// resolveDataDir picks the data directory before cobra parses the command
// line, since services must exist before any command runs.
func resolveDataDir(args []string) (string, error) {
	flags := pflag.NewFlagSet("docchat", pflag.ContinueOnError)
	flags.ParseErrorsWhitelist.UnknownFlags = true
	flags.Usage = func() {}
	flags.SetOutput(io.Discard)
	dir := flags.String(cli.DataDirFlag, "", "")
	// Help and malformed flags are reported by cobra later.
	_ = flags.Parse(args)

	if *dir != "" {
		return filepath.Abs(*dir)
	}
	return file.DefaultDir()
}

// loadEnv reads KEY=value pairs from path without overriding variables
// already set. A missing file is ignored.
func loadEnv(path string) {
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("load %s: %v", path, err)
	}
}

package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func reset(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		SetVerbose(false)
		SetOutput(os.Stderr)
		_ = CloseFile()
		now = time.Now
	})
}

func TestSetVerbose(t *testing.T) {
	reset(t)

	SetVerbose(false)
	if IsVerbose() {
		t.Error("expected verbose to be false initially")
	}

	SetVerbose(true)
	if !IsVerbose() {
		t.Error("expected verbose to be true after SetVerbose(true)")
	}
}

func TestLevels_WhenVerbose(t *testing.T) {
	reset(t)

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)

	Debug("test message %s", "arg")
	Info("info message %d", 42)
	Warn("warning message")
	Section("Retrieval")
	Error("upload failed: %s", "boom")

	want := "[DEBUG] test message arg\n" +
		"[INFO] info message 42\n" +
		"[WARN] warning message\n" +
		"\n=== Retrieval ===\n" +
		"[ERROR] upload failed: boom\n"
	if buf.String() != want {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

func TestLevels_WhenNotVerbose(t *testing.T) {
	reset(t)

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(false)

	Debug("test message")
	Info("info")
	Warn("warn")
	Error("error")

	if buf.Len() > 0 {
		t.Errorf("expected no output when verbose is disabled, got %q", buf.String())
	}
}

func TestOpenFile_DatedAndAppendsErrors(t *testing.T) {
	reset(t)
	dir := t.TempDir()
	now = func() time.Time { return time.Date(2024, 5, 17, 9, 30, 0, 0, time.UTC) }

	path, err := OpenFile(dir)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if want := filepath.Join(dir, "logs", "docchat_20240517.log"); path != want {
		t.Errorf("expected path %s, got %s", want, path)
	}

	Error("index %s: %v", "doc-1", "corrupt")
	Warn("not written to file")
	if err := CloseFile(); err != nil {
		t.Fatalf("CloseFile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "2024-05-17T09:30:00Z [ERROR] index doc-1: corrupt") {
		t.Errorf("unexpected log content: %q", content)
	}
	if strings.Contains(content, "not written") {
		t.Error("warnings should not be written to the log file")
	}
}

func TestCloseFile_WithoutOpenFile(t *testing.T) {
	reset(t)
	if err := CloseFile(); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
}

func TestConcurrentAccess(t *testing.T) {
	reset(t)
	SetOutput(&bytes.Buffer{})

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			SetVerbose(i%2 == 0)
			IsVerbose()
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRun(t *testing.T) {
	originalWD, _ := os.Getwd()
	defer func() {
		if err := os.Chdir(originalWD); err != nil {
			t.Logf("failed to restore working directory: %v", err)
		}
	}()

	tmp := t.TempDir()
	if err := os.Chdir(tmp); err != nil {
		t.Fatalf("failed to chdir to temp dir: %v", err)
	}

	tempConfig := `
server:
    address: "localhost:0"
dem:
    etopo1_path: "missing-etopo1.bin"
log:
    server:
        path: "logs/test_server.log"
        level: "debug"
    requests:
        path: "logs/test_requests.log"
        level: "info"
`
	configPath := filepath.Join(tmp, "ruggedgo_test.yaml")
	if err := os.WriteFile(configPath, []byte(tempConfig), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if err := run(ctx, configPath); err != nil {
		t.Fatalf("run() failed: %v", err)
	}
}

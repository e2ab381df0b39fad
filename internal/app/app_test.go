package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestRun_MemoryGracefulShutdown(t *testing.T) {
	cfg := memoryConfig()
	cfg.CallbackAddr = fmt.Sprintf("127.0.0.1:%d", findFreePort(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg) }()

	waitForHTTP(t, "http://"+cfg.CallbackAddr+"/livez")

	resp, err := http.Get("http://" + cfg.CallbackAddr + "/livez")
	if err != nil {
		t.Fatalf("failed to get /livez: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "ok" {
		t.Errorf("expected 'ok' from /livez, got '%s'", string(body))
	}

	// Backend недоступен: готовность сохраняется, статус деградирует.
	resp, err = http.Get("http://" + cfg.CallbackAddr + "/readyz")
	if err != nil {
		t.Fatalf("failed to get /readyz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected /readyz 200 with degraded backend, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRun_InvalidStorageDriver(t *testing.T) {
	cfg := memoryConfig()
	cfg.StorageDriver = "invalid-driver"

	err := Run(context.Background(), cfg)
	if err == nil || !strings.Contains(err.Error(), "unsupported storage driver") {
		t.Fatalf("expected unsupported storage driver error, got %v", err)
	}
}

func TestRun_CallbackAddrInUse(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to create listener: %v", err)
	}
	defer listener.Close()

	cfg := memoryConfig()
	cfg.CallbackAddr = listener.Addr().String()

	err = Run(context.Background(), cfg)
	if err == nil || !strings.Contains(err.Error(), "listen callback addr") {
		t.Fatalf("expected listen error, got %v", err)
	}
}

package metrics

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/good-yellow-bee/focusdial/pkg/config"
)

func TestServer_ServesMetricsAndBuildInfo(t *testing.T) {
	info := config.BuildInfo{Version: "1.2.3", Commit: "abc123", BuildTime: "today"}
	s := NewServer("127.0.0.1:0", info)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for s.Addr() == "127.0.0.1:0" {
		if time.Now().After(deadline) {
			t.Fatal("server did not start listening")
		}
		time.Sleep(10 * time.Millisecond)
	}
	base := "http://" + s.Addr()

	resp, err := http.Get(base + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	var got config.BuildInfo
	err = json.NewDecoder(resp.Body).Decode(&got)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Version != "1.2.3" || got.Commit != "abc123" {
		t.Errorf("build info = %+v", got)
	}

	resp, err = http.Get(base + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), `focusdial_build_info{build_time="today",commit="abc123",version="1.2.3"} 1`) {
		t.Errorf("build_info missing from /metrics:\n%s", body)
	}

	resp, err = http.Get(base + "/nope")
	if err == nil {
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("GET /nope status = %d, want 404", resp.StatusCode)
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(6 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

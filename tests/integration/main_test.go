//go:build integration
// +build integration

package integration

import (
	"fmt"
	"net/http"
	"testing"
)

func TestHealthz(t *testing.T) {
	resp, err := http.Get(fmt.Sprintf("%s/healthz", baseURL()))
	if err != nil {
		t.Fatalf("health check request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status code: %d", resp.StatusCode)
	}
}

func TestPingReachesDependencies(t *testing.T) {
	out := doJSON(t, http.MethodGet, "/v1/ping", "", nil, http.StatusOK)
	if out["pong"] != true {
		t.Fatalf("unexpected ping body: %v", out)
	}
}

func TestGuestCreation(t *testing.T) {
	guest := createGuest(t, "TestGuest")
	if guest.ID == "" {
		t.Fatal("guest ID is empty")
	}
}

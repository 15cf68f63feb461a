//go:build integration
// +build integration

package integration

import (
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestUnauthorizedAccess(t *testing.T) {
	out := doJSON(t, http.MethodGet, "/v1/quizzes/1/me", "", nil, http.StatusUnauthorized)
	if out["error"] != "authentication_required" {
		t.Fatalf("expected authentication_required, got %v", out["error"])
	}

	out = doJSON(t, http.MethodGet, "/v1/quizzes/1/me", "garbage", nil, http.StatusUnauthorized)
	if out["error"] == nil {
		t.Fatal("error field is missing")
	}
}

func TestForbiddenAccess(t *testing.T) {
	guest := createGuest(t, "TestGuest")

	out := doJSON(t, http.MethodPost, "/v1/quizzes", guest.AccessToken, map[string]interface{}{"title": "Nope"}, http.StatusForbidden)
	if out["error"] != "host_required" {
		t.Fatalf("expected error code 'host_required', got %v", out["error"])
	}
}

func TestAnotherHostsQuizIsForbidden(t *testing.T) {
	owner := hostToken(t)
	other := hostToken(t)
	quizID, _ := createLockedQuiz(t, owner)

	out := doJSON(t, http.MethodPost, fmt.Sprintf("/v1/quizzes/%d/publish", quizID), other, nil, http.StatusForbidden)
	if out["error"] != "forbidden" {
		t.Fatalf("expected forbidden, got %v", out["error"])
	}
}

func TestValidationErrors(t *testing.T) {
	host := hostToken(t)

	testCases := []struct {
		name    string
		payload map[string]interface{}
	}{
		{name: "missing title", payload: map[string]interface{}{"title": "  "}},
		{name: "negative timer", payload: map[string]interface{}{"title": "T", "overall_timer_minutes": -1}},
		{
			name: "choice without options",
			payload: map[string]interface{}{
				"title":     "T",
				"questions": []map[string]interface{}{{"question_type": "single_choice", "text": "Q", "correct_answers": []string{"0"}}},
			},
		},
		{
			name: "unknown question type",
			payload: map[string]interface{}{
				"title":     "T",
				"questions": []map[string]interface{}{{"question_type": "essay", "text": "Q"}},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out := doJSON(t, http.MethodPost, "/v1/quizzes", host, tc.payload, http.StatusBadRequest)
			if out["error"] == nil {
				t.Fatal("error field is missing")
			}
		})
	}
}

func TestNotFoundErrors(t *testing.T) {
	out := doJSON(t, http.MethodGet, "/v1/join/ZZZZZZ", "", nil, http.StatusNotFound)
	if out["error"] != "quiz_not_found" {
		t.Fatalf("expected error code 'quiz_not_found', got %v", out["error"])
	}

	out = doJSON(t, http.MethodGet, "/v1/quizzes/999999999/status", "", nil, http.StatusNotFound)
	if out["error"] != "quiz_not_found" {
		t.Fatalf("expected error code 'quiz_not_found', got %v", out["error"])
	}
}

func TestInvalidJSONPayload(t *testing.T) {
	req, err := http.NewRequest(http.MethodPost, baseURL()+"/v1/guests", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

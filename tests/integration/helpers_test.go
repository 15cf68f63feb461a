//go:build integration
// +build integration

package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/livequiz/internal/auth"
	"github.com/gokatarajesh/livequiz/internal/auth/jwt"
	wsmsg "github.com/gokatarajesh/livequiz/pkg/http/ws"
)

type guestInfo struct {
	ID          string
	Name        string
	AccessToken string
}

func envOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func baseURL() string {
	return envOrDefault("INTEGRATION_BASE_URL", "http://localhost:8080")
}

func createGuest(t *testing.T, displayName string) guestInfo {
	t.Helper()

	name := fmt.Sprintf("%s-%d", displayName, time.Now().UnixNano()%100000)
	resp := makeAuthenticatedRequest(t, http.MethodPost, baseURL()+"/v1/guests", "", map[string]string{"display_name": name})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected guest response status: %d", resp.StatusCode)
	}

	var out struct {
		UserID      string `json:"user_id"`
		DisplayName string `json:"display_name"`
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode guest response failed: %v", err)
	}
	if out.AccessToken == "" {
		t.Fatalf("empty access token in guest response")
	}
	return guestInfo{ID: out.UserID, Name: out.DisplayName, AccessToken: out.AccessToken}
}

// hostToken signs a host token with the server's secret. Tests needing a host skip without it.
func hostToken(t *testing.T) string {
	t.Helper()

	secret := os.Getenv("INTEGRATION_JWT_SECRET")
	if secret == "" {
		t.Skip("INTEGRATION_JWT_SECRET not set")
	}
	svc := auth.NewService(auth.ServiceOptions{TokenConfig: jwt.TokenConfig{
		Secret: []byte(secret),
		Issuer: envOrDefault("INTEGRATION_APP_NAME", "livequiz"),
	}}, zerolog.Nop())
	_, token, err := svc.IssueHostToken(auth.HostRequest{HostID: uuid.New(), DisplayName: "Integration Host"})
	if err != nil {
		t.Fatalf("issue host token: %v", err)
	}
	return token.AccessToken
}

func makeAuthenticatedRequest(t *testing.T, method, url, token string, payload interface{}) *http.Response {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	return resp
}

func doJSON(t *testing.T, method, path, token string, payload interface{}, wantStatus int) map[string]interface{} {
	t.Helper()

	resp := makeAuthenticatedRequest(t, method, baseURL()+path, token, payload)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s: expected %d, got %d: %v", method, path, wantStatus, resp.StatusCode, out)
	}
	return out
}

// createLockedQuiz creates and locks a two-question quiz, returning its id and question ids.
func createLockedQuiz(t *testing.T, host string) (int64, []int64) {
	t.Helper()

	created := doJSON(t, http.MethodPost, "/v1/quizzes", host, map[string]interface{}{
		"title":            "Integration Rivers",
		"show_leaderboard": true,
		"questions": []map[string]interface{}{
			{"question_type": "short_answer", "text": "Longest river", "correct_answers": []string{"Nile"}},
			{"question_type": "single_choice", "text": "River through Paris", "options": []map[string]string{{"text": "Thames"}, {"text": "Seine"}}, "correct_answers": []string{"1"}},
		},
	}, http.StatusCreated)

	quizID := int64(created["id"].(float64))
	var questionIDs []int64
	for _, q := range created["questions"].([]interface{}) {
		questionIDs = append(questionIDs, int64(q.(map[string]interface{})["id"].(float64)))
	}
	doJSON(t, http.MethodPost, fmt.Sprintf("/v1/quizzes/%d/lock", quizID), host, nil, http.StatusOK)
	return quizID, questionIDs
}

func dialQuizWS(t *testing.T, token string) *websocket.Conn {
	t.Helper()

	u, err := url.Parse(envOrDefault("INTEGRATION_WS_URL", "ws://localhost:8080/ws/quiz"))
	if err != nil {
		t.Fatalf("invalid WS url: %v", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendWS(t *testing.T, conn *websocket.Conn, msgType string, payload interface{}) {
	t.Helper()

	msg, err := wsmsg.NewMessage(msgType, payload)
	if err != nil {
		t.Fatalf("build %s: %v", msgType, err)
	}
	_ = conn.SetWriteDeadline(time.Now().Add(3 * time.Second))
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("failed to send %s: %v", msgType, err)
	}
}

func waitForMessage(t *testing.T, conn *websocket.Conn, msgType string, timeout time.Duration) wsmsg.Message {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(deadline)
		var msg wsmsg.Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %s: %v", msgType, err)
		}
		if msg.Type == msgType {
			return msg
		}
	}
	t.Fatalf("timed out waiting for %s", msgType)
	return wsmsg.Message{}
}

package authoring

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gokatarajesh/livequiz/internal/quiz"
)

// TriviaQuery selects questions from the Open Trivia DB.
type TriviaQuery struct {
	Amount     int
	Difficulty string
	Category   int
}

// TriviaSource fetches ready-made choice questions from the Open Trivia DB (no API key).
type TriviaSource struct {
	baseURL    string
	httpClient *http.Client
	pick       func(n int) int
}

// NewTriviaSource creates a source. Empty baseURL targets opentdb.com.
func NewTriviaSource(baseURL string, httpClient *http.Client) *TriviaSource {
	if baseURL == "" {
		baseURL = "https://opentdb.com"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &TriviaSource{baseURL: baseURL, httpClient: httpClient, pick: rand.IntN}
}

type triviaQuestion struct {
	Type             string   `json:"type"`
	Difficulty       string   `json:"difficulty"`
	Question         string   `json:"question"`
	CorrectAnswer    string   `json:"correct_answer"`
	IncorrectAnswers []string `json:"incorrect_answers"`
}

type triviaResponse struct {
	ResponseCode int              `json:"response_code"`
	Results      []triviaQuestion `json:"results"`
}

// Fetch returns question inputs with the correct option placed at a random position.
func (s *TriviaSource) Fetch(ctx context.Context, q TriviaQuery) ([]QuestionInput, error) {
	if q.Amount < 1 || q.Amount > 50 {
		return nil, quiz.Invalid("amount", "amount must be between 1 and 50")
	}
	values := url.Values{}
	values.Set("amount", strconv.Itoa(q.Amount))
	if q.Difficulty != "" {
		values.Set("difficulty", q.Difficulty)
	}
	if q.Category > 0 {
		values.Set("category", strconv.Itoa(q.Category))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api.php?%s", s.baseURL, values.Encode()), nil)
	if err != nil {
		return nil, fmt.Errorf("build trivia request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch trivia: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch trivia: status %d", resp.StatusCode)
	}
	var payload triviaResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode trivia: %w", err)
	}
	if payload.ResponseCode != 0 {
		return nil, fmt.Errorf("fetch trivia: response code %d", payload.ResponseCode)
	}

	inputs := make([]QuestionInput, 0, len(payload.Results))
	for _, tq := range payload.Results {
		inputs = append(inputs, s.toInput(tq))
	}
	return inputs, nil
}

func (s *TriviaSource) toInput(tq triviaQuestion) QuestionInput {
	var texts []string
	correct := 0
	if tq.Type == "boolean" {
		texts = []string{"True", "False"}
		if tq.CorrectAnswer == "False" {
			correct = 1
		}
	} else {
		for _, wrong := range tq.IncorrectAnswers {
			texts = append(texts, html.UnescapeString(wrong))
		}
		correct = s.pick(len(texts) + 1)
		texts = append(texts[:correct], append([]string{html.UnescapeString(tq.CorrectAnswer)}, texts[correct:]...)...)
	}

	options := make([]quiz.Option, len(texts))
	for i, text := range texts {
		options[i] = quiz.Option{Text: text}
	}
	return QuestionInput{
		Type:    string(quiz.TypeSingleChoice),
		Text:    html.UnescapeString(tq.Question),
		Options: options,
		Correct: []string{strconv.Itoa(correct)},
	}
}

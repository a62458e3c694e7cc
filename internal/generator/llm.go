package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aeroprep/examd/internal/model"
)

const (
	maxRetries = 3
	baseDelay  = 2 * time.Second
)

// User-facing failure messages. The engine passes these through unchanged.
var (
	ErrQuotaExceeded = errors.New("server is busy (quota exceeded), please try again in a minute")
	ErrUnavailable   = errors.New("AI service is temporarily unavailable, please try again later")
	ErrGeneration    = errors.New("could not generate exam questions, please check your connection or API key")
)

// LLMConfig configures the question generation client.
type LLMConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	Logger  zerolog.Logger
}

// LLMClient generates exam questions through an OpenAI-compatible
// chat-completion endpoint. Rate-limit and server errors are retried with
// exponential backoff before the failure is reported as terminal.
type LLMClient struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
	log     zerolog.Logger
}

// NewLLMClient creates an LLMClient.
func NewLLMClient(cfg LLMConfig) *LLMClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &LLMClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		log:     cfg.Logger.With().Str("component", "question_generator").Logger(),
	}
}

type chatCompletionRequest struct {
	Model          string                  `json:"model"`
	Messages       []chatCompletionMessage `json:"messages"`
	Temperature    float64                 `json:"temperature"`
	ResponseFormat *responseFormat         `json:"response_format,omitempty"`
}

type chatCompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatCompletionMessage `json:"message"`
	} `json:"choices"`
}

// generatedQuestion is the shape the model is instructed to emit.
type generatedQuestion struct {
	QuestionText       string   `json:"questionText"`
	Options            []string `json:"options"`
	CorrectOptionIndex int      `json:"correctOptionIndex"`
	Explanation        string   `json:"explanation"`
	Topic              string   `json:"topic"`
}

// Generate requests count questions for the subject in the given language.
func (c *LLMClient) Generate(ctx context.Context, subject model.Subject, count int, language model.Language) ([]model.Question, error) {
	prompt := buildPrompt(subject, count, language)

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		questions, err := c.requestOnce(ctx, prompt)
		if err == nil {
			return questions, nil
		}
		lastErr = err

		if !retryable(err) || attempt == maxRetries {
			break
		}

		delay := baseDelay << attempt
		c.log.Warn().Err(err).Int("attempt", attempt+1).Dur("backoff", delay).Msg("Generation attempt failed")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, terminalError(lastErr)
}

// httpStatusError carries the upstream status code for retry classification.
type httpStatusError struct {
	status int
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("generator: upstream returned %d", e.status)
}

func retryable(err error) bool {
	var se *httpStatusError
	if errors.As(err, &se) {
		return se.status == http.StatusTooManyRequests ||
			se.status == http.StatusInternalServerError ||
			se.status == http.StatusServiceUnavailable
	}
	return false
}

// terminalError maps the last attempt's failure onto a user-facing message.
func terminalError(err error) error {
	var se *httpStatusError
	if errors.As(err, &se) {
		switch se.status {
		case http.StatusTooManyRequests:
			return ErrQuotaExceeded
		case http.StatusServiceUnavailable:
			return ErrUnavailable
		}
	}
	return ErrGeneration
}

func (c *LLMClient) requestOnce(ctx context.Context, prompt string) ([]model.Question, error) {
	payload := chatCompletionRequest{
		Model: c.model,
		Messages: []chatCompletionMessage{
			{Role: "system", Content: "You are an EASA flight instructor writing examination questions. Respond with JSON only."},
			{Role: "user", Content: prompt},
		},
		Temperature:    0.7,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call generator: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &httpStatusError{status: resp.StatusCode}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(raw, &completion); err != nil {
		return nil, fmt.Errorf("decode completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, errors.New("generator: empty completion")
	}

	return parseQuestions(completion.Choices[0].Message.Content)
}

// parseQuestions decodes the model output and assigns stable question ids.
// The payload may be a bare array or wrapped in a {"questions": [...]} object.
func parseQuestions(content string) ([]model.Question, error) {
	content = strings.TrimSpace(content)

	var generated []generatedQuestion
	if err := json.Unmarshal([]byte(content), &generated); err != nil {
		var wrapped struct {
			Questions []generatedQuestion `json:"questions"`
		}
		if err := json.Unmarshal([]byte(content), &wrapped); err != nil {
			return nil, fmt.Errorf("decode questions: %w", err)
		}
		generated = wrapped.Questions
	}
	if len(generated) == 0 {
		return nil, errors.New("generator: no questions in completion")
	}

	now := time.Now().UnixMilli()
	questions := make([]model.Question, 0, len(generated))
	for i, g := range generated {
		q := model.Question{
			ID:                 fmt.Sprintf("q-%d-%d", now, i),
			Text:               g.QuestionText,
			Options:            g.Options,
			CorrectOptionIndex: g.CorrectOptionIndex,
			Explanation:        g.Explanation,
			Topic:              g.Topic,
		}
		if !q.Valid() {
			return nil, fmt.Errorf("generator: question %d is malformed", i)
		}
		questions = append(questions, q)
	}
	return questions, nil
}

func buildPrompt(subject model.Subject, count int, language model.Language) string {
	langName := "English"
	switch language {
	case model.LanguageGerman:
		langName = "German"
	case model.LanguageFrench:
		langName = "French"
	}

	return fmt.Sprintf(`Generate %d multiple-choice questions for an EASA (European Union Aviation Safety Agency) pilot theory examination.
The subject is: %s.
The language of the questions, options, and explanations must be strictly in %s.

Requirements:
1. Questions should be challenging, suitable for PPL/ATPL level, following the standard EASA syllabus and ECQB style.
2. Provide exactly 4 options per question.
3. Indicate the correct index (0-3).
4. Provide a brief but technically accurate explanation for the correct answer in %s, citing the logic or regulation where applicable.
5. Categorize each question into a specific sub-topic (e.g. for Air Law: 'Personnel Licensing', 'Rules of the Air', 'Altimetry').

Return a JSON object of the form {"questions": [{"questionText": ..., "options": [...], "correctOptionIndex": ..., "explanation": ..., "topic": ...}]} and nothing else.`,
		count, subject, langName, langName)
}

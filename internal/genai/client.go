// Package genai is the client for the generative collaborators the
// engine consumes as black boxes: rule-set generation from a domain
// description and linguistic analysis of raw text. Both speak an
// OpenAI-compatible chat completion protocol and return structured
// JSON payloads.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cognicore/reason/internal/textprep"
	"github.com/cognicore/reason/pkg/reason/rule"
)

// Client calls an OpenAI-compatible chat completion endpoint.
type Client struct {
	BaseURL string
	APIKey  string
	Model   string

	HTTPClient *http.Client
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// GenerateRequest describes the rule set to be generated.
type GenerateRequest struct {
	Domain       string   `json:"domain"`
	Requirements string   `json:"requirements"`
	Examples     []string `json:"examples,omitempty"`
	Constraints  []string `json:"constraints,omitempty"`
	Style        string   `json:"style,omitempty"`
}

// EntitySpec names an entity the generated rules refer to.
type EntitySpec struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// IntentSpec names an intent the generated rules refer to.
type IntentSpec struct {
	Name     string   `json:"name"`
	Examples []string `json:"examples,omitempty"`
}

// RuleSetSpec is the full specification a generation call returns.
type RuleSetSpec struct {
	Name     string       `json:"name"`
	Domain   string       `json:"domain"`
	Rules    []*rule.Rule `json:"rules"`
	Entities []EntitySpec `json:"entities,omitempty"`
	Intents  []IntentSpec `json:"intents,omitempty"`
}

// Analysis is the structured output of a text analysis call.
type Analysis struct {
	Entities        []EntitySpec        `json:"entities"`
	Intents         []IntentSpec        `json:"intents"`
	Patterns        []string            `json:"patterns"`
	Vocabulary      map[string][]string `json:"vocabulary"` // term → synonyms
	Confidence      float64             `json:"confidence"`
	Recommendations []string            `json:"recommendations"`
}

// GenerateRuleSet asks the collaborator for a complete rule-set
// specification for the given domain.
func (c *Client) GenerateRuleSet(ctx context.Context, req GenerateRequest) (*RuleSetSpec, error) {
	if req.Domain == "" {
		return nil, fmt.Errorf("genai: domain required")
	}
	system := "You design rule sets for a condition-action reasoning engine. " +
		"Respond with a single JSON object: {name, domain, rules, entities, intents}. " +
		"Each rule has name, condition (expression over fact names), action, priority, confidence."
	out, err := c.chat(ctx, system, formatGeneratePrompt(req))
	if err != nil {
		return nil, err
	}
	var spec RuleSetSpec
	if err := json.Unmarshal(extractJSON(out), &spec); err != nil {
		return nil, fmt.Errorf("genai: decode rule set: %w", err)
	}
	return &spec, nil
}

// AnalyzeText asks the collaborator to extract entities, intents,
// patterns, and vocabulary from raw text. Markup is stripped first.
func (c *Client) AnalyzeText(ctx context.Context, text, domain string) (*Analysis, error) {
	text = textprep.StripHTML(text)
	if text == "" {
		return nil, fmt.Errorf("genai: empty text")
	}
	system := "You analyze text for a reasoning engine. " +
		"Respond with a single JSON object: {entities, intents, patterns, vocabulary, confidence, recommendations}."
	user := fmt.Sprintf("Domain: %s\nText:\n%s", domain, text)
	out, err := c.chat(ctx, system, user)
	if err != nil {
		return nil, err
	}
	var analysis Analysis
	if err := json.Unmarshal(extractJSON(out), &analysis); err != nil {
		return nil, fmt.Errorf("genai: decode analysis: %w", err)
	}
	return &analysis, nil
}

func (c *Client) chat(ctx context.Context, system, user string) (string, error) {
	if c.BaseURL == "" || c.Model == "" {
		return "", fmt.Errorf("genai: base URL and model required")
	}
	messages := []chatMessage{{Role: "system", Content: system}, {Role: "user", Content: user}}
	payload, err := c.send(ctx, messages)
	if err != nil {
		return "", err
	}
	if len(payload.Choices) == 0 {
		return "", fmt.Errorf("genai: empty response")
	}
	return payload.Choices[0].Message.Content, nil
}

func (c *Client) send(ctx context.Context, messages []chatMessage) (*chatResponse, error) {
	reqBody, err := json.Marshal(chatRequest{Model: c.Model, Messages: messages})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var payload chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	if payload.Error != nil {
		return nil, fmt.Errorf("genai error: %s", payload.Error.Message)
	}
	return &payload, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func formatGeneratePrompt(req GenerateRequest) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Domain: %s\nRequirements: %s\n", req.Domain, req.Requirements)
	for _, ex := range req.Examples {
		fmt.Fprintf(&buf, "Example: %s\n", ex)
	}
	for _, con := range req.Constraints {
		fmt.Fprintf(&buf, "Constraint: %s\n", con)
	}
	if req.Style != "" {
		fmt.Fprintf(&buf, "Style: %s\n", req.Style)
	}
	return buf.String()
}

// extractJSON pulls the JSON object out of a response that may wrap it
// in markdown code fences or surrounding prose.
func extractJSON(s string) []byte {
	s = strings.TrimSpace(s)
	if fence := strings.Index(s, "```"); fence >= 0 {
		rest := s[fence+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end >= 0 {
			s = rest[:end]
		} else {
			s = rest
		}
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		s = s[start : end+1]
	}
	return []byte(strings.TrimSpace(s))
}

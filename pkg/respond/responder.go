// Package respond runs multi-agent turns: one user message fanned through a
// primary persona and its collaborators, strictly in order, each later call
// seeing the transcript of the earlier ones.
package respond

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"flux/pkg/logger"
	"flux/pkg/models"
	"flux/pkg/personas"
	"flux/pkg/telemetry"
)

// DefaultBaseURL is the Groq OpenAI-compatible chat-completion endpoint.
const DefaultBaseURL = "https://api.groq.com/openai/v1"

// Config carries the upstream settings for a Responder. The zero value of
// every field has a usable default except APIKey: without a key the
// responder runs in its deliberate "not configured" fallback mode.
type Config struct {
	APIKey      string
	BaseURL     string
	MaxPersonas int           // total personas per turn, primary included
	MaxTokens   int           // per completion
	Temperature float32       // per completion
	CallTimeout time.Duration // per upstream call
	PacingDelay time.Duration // cosmetic gap between personas
	RPS         float64       // upstream rate limit
	Burst       int
}

type Responder struct {
	client  *openai.Client
	limiter *rate.Limiter
	cfg     Config
}

// New builds a Responder. With an empty APIKey no HTTP client calls are
// ever made; every turn returns the fixed fallback reply.
func New(cfg Config) *Responder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.MaxPersonas <= 0 {
		cfg.MaxPersonas = 3
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 500
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.7
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 20 * time.Second
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	r := &Responder{
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		cfg:     cfg,
	}
	if cfg.APIKey != "" {
		cc := openai.DefaultConfig(cfg.APIKey)
		cc.BaseURL = cfg.BaseURL
		r.client = openai.NewClientWithConfig(cc)
	}
	return r
}

// Configured reports whether an upstream credential is available.
func (r *Responder) Configured() bool {
	return r.client != nil
}

// Respond runs one turn for the user message. It always returns a
// well-formed turn: upstream failures degrade individual persona entries
// instead of aborting, and total upstream outage yields an all-degraded
// list. The calls are sequential because each persona's prompt depends on
// the previous personas' text.
func (r *Responder) Respond(ctx context.Context, message string) models.Turn {
	primaryKey, teamCall := personas.DetectPrimary(message)
	collabs := personas.Collaborators(primaryKey, teamCall)

	plan := append([]string{primaryKey}, collabs...)
	if len(plan) > r.cfg.MaxPersonas {
		plan = plan[:r.cfg.MaxPersonas]
	}
	turn := models.Turn{
		Primary:       primaryKey,
		Collaborators: append([]string(nil), plan[1:]...),
		Configured:    r.Configured(),
	}

	if !r.Configured() {
		p, _ := personas.Get(primaryKey)
		turn.Responses = []models.AgentResponse{{
			Agent:     primaryKey,
			AgentName: p.DisplayName(),
			Message:   fmt.Sprintf("Hello! I'm %s. I received your message: %q. The upstream API key is not configured.", p.Name, message),
			TS:        time.Now().UTC().UnixNano(),
		}}
		logger.Info("turn_not_configured", "primary", primaryKey)
		return turn
	}

	logger.Info("turn_started", "primary", primaryKey, "team_call", teamCall, "personas", len(plan))
	var prior []models.AgentResponse
	for i, key := range plan {
		p, ok := personas.Get(key)
		if !ok {
			continue
		}
		if i > 0 && r.cfg.PacingDelay > 0 {
			select {
			case <-time.After(r.cfg.PacingDelay):
			case <-ctx.Done():
			}
		}
		start := time.Now()
		text, err := r.generate(ctx, p, message, plan, prior)
		telemetry.ObserveUpstreamCall(key, err, time.Since(start))
		resp := models.AgentResponse{
			Agent:     key,
			AgentName: p.DisplayName(),
			Model:     p.Model,
			TS:        time.Now().UTC().UnixNano(),
		}
		if err != nil {
			logger.Warn("persona_call_failed", "agent", key, "model", p.Model, "error", err)
			resp.Message = fmt.Sprintf("I encountered an error processing your request: %v", err)
			resp.Degraded = true
		} else {
			resp.Message = text
			// only successful responses feed later personas
			prior = append(prior, resp)
		}
		turn.Responses = append(turn.Responses, resp)
	}
	return turn
}

// generate performs one upstream chat completion for a persona. The user
// content names all participating personas and, after the first persona,
// carries the prior responses so this one can reference them by name.
func (r *Responder) generate(ctx context.Context, p personas.Persona, message string, plan []string, prior []models.AgentResponse) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
	defer cancel()

	if err := r.limiter.Wait(cctx); err != nil {
		return "", fmt.Errorf("upstream rate limit wait: %w", err)
	}

	req := openai.ChatCompletionRequest{
		Model: p.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildUserContent(message, plan, prior)},
		},
		MaxTokens:   r.cfg.MaxTokens,
		Temperature: r.cfg.Temperature,
	}
	resp, err := r.client.CreateChatCompletion(cctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("upstream returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func buildUserContent(message string, plan []string, prior []models.AgentResponse) string {
	var b strings.Builder
	names := make([]string, 0, len(plan))
	for _, key := range plan {
		if p, ok := personas.Get(key); ok {
			names = append(names, p.DisplayName())
		}
	}
	fmt.Fprintf(&b, "Team members in this discussion: %s.\n\n", strings.Join(names, ", "))
	fmt.Fprintf(&b, "User message: %s", message)
	if len(prior) > 0 {
		b.WriteString("\n\nResponses so far in this turn:\n")
		for _, pr := range prior {
			fmt.Fprintf(&b, "\n%s: %s\n", pr.AgentName, pr.Message)
		}
	}
	return b.String()
}

package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/vitos/intraday_trade_bot/internal/domain"
)

const explainSystemPrompt = "You are a trading journal assistant. In two or three sentences, " +
	"explain plainly why this losing trade lost: did the stop do its job, was the move against " +
	"the entry immediate, did trailing give back open profit. No advice, no disclaimers."

// ChatExplainer asks an OpenAI-compatible chat completions endpoint for
// a short post-mortem of a losing trade.
type ChatExplainer struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

func NewChatExplainer(baseURL, apiKey, model string) *ChatExplainer {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &ChatExplainer{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (e *ChatExplainer) ExplainLoss(ctx context.Context, p *domain.Position) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: e.model,
		Messages: []chatMessage{
			{Role: "system", Content: explainSystemPrompt},
			{Role: "user", Content: describeTrade(p)},
		},
		Temperature: 0.3,
		MaxTokens:   200,
	})
	if err != nil {
		return "", fmt.Errorf("marshal explain request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build explain request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("explain request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("explain request: status %d", resp.StatusCode)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode explain response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("explain response: no choices")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

// describeTrade flattens the position into the facts the model needs.
func describeTrade(p *domain.Position) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s via %s: entry %.2f, initial stop %.2f, exit %.2f, R=%.2f, pnl %.2f.",
		p.Side, p.Symbol, p.StrategyID, p.EntryPrice, p.InitialStopPrice, p.ExitPrice, p.RMultiple, p.RealizedPnL)
	for _, sc := range p.StopChanges {
		fmt.Fprintf(&b, " Stop moved %.2f->%.2f (%s).", sc.OldStop, sc.NewStop, sc.Stage)
	}
	return b.String()
}

// RuleExplainer is the offline fallback: a fixed taxonomy keyed on the
// stop history and R-multiple.
type RuleExplainer struct{}

func (RuleExplainer) ExplainLoss(_ context.Context, p *domain.Position) (string, error) {
	switch {
	case len(p.StopChanges) == 0 && p.RMultiple <= -0.95:
		return "Full stop-out at the initial stop; the move against the entry never paused.", nil
	case len(p.StopChanges) > 0 && p.RMultiple > -0.5:
		return "Trailed stop gave the trade room but the retrace took back most of the open profit.", nil
	case p.RMultiple > -0.5:
		return "Partial loss; the exit fired before the full initial risk was consumed.", nil
	default:
		return "Stopped out for close to the planned initial risk.", nil
	}
}

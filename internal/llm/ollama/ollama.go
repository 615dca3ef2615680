package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"crypto-trading-bot/internal/store"
	"crypto-trading-bot/internal/trace"
	"crypto-trading-bot/internal/types"
)

// Client talks to a local Ollama server through its generate API.
type Client struct {
	cfg   *store.Config
	base  string
	httpc *http.Client
}

// New creates an Ollama-backed advisor from the llm config section.
func New(cfg *store.Config) *Client {
	return &Client{
		cfg:  cfg,
		base: strings.TrimRight(cfg.LLM.URL, "/"),
		httpc: &http.Client{
			Timeout: cfg.LLM.Timeout,
		},
	}
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Recommend asks the model for a trading recommendation and parses the
// labeled-field reply. Parse gaps are filled per field; only a reply with
// no recommendation line at all is an error.
func (c *Client) Recommend(ctx context.Context, snap *types.MarketSnapshot, inds types.IndicatorSet, pivots types.PivotLevels, pctx types.AdvisorContext) (types.Recommendation, error) {
	ctx, span := trace.StartSpan(ctx, "ollama-generate")
	defer span.End()

	prompt := buildPrompt(snap, inds, pivots, pctx)

	body, _ := json.Marshal(generateRequest{
		Model:  c.cfg.LLM.Model,
		Prompt: prompt,
		Stream: false,
		Options: generateOptions{
			Temperature: c.cfg.LLM.Temperature,
			NumPredict:  c.cfg.LLM.NumPredict,
		},
	})

	req, err := http.NewRequestWithContext(ctx, "POST", c.base+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return types.Recommendation{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return types.Recommendation{}, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return types.Recommendation{}, fmt.Errorf("ollama http %d: %s", resp.StatusCode, string(b))
	}

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return types.Recommendation{}, fmt.Errorf("ollama response decode failed: %w", err)
	}

	rec, err := ParseRecommendation(gr.Response, snap.CurrentPrice, pivots)
	if err != nil {
		return types.Recommendation{}, err
	}
	rec.Source = types.SourceAI
	rec.At = time.Now().Unix()
	return rec, nil
}

// Healthy probes the tags endpoint to see whether the server is up.
func (c *Client) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", c.base+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

package openai

import (
    "context"
    "encoding/json"
    "errors"
    "strings"

    "github.com/deploypulse/deploypulse/internal/config"
    "github.com/deploypulse/deploypulse/internal/domain"
    openai "github.com/openai/openai-go/v2"
    "github.com/openai/openai-go/v2/option"
    "github.com/rs/zerolog"
)

// Client wraps the OpenAI chat API to turn a batch of weekly reports into a
// short narrative for the Telegram digest. Optional: an empty key disables it.
type Client struct {
    api   openai.Client
    key   string
    model string
    log   zerolog.Logger
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
    return &Client{
        api:   openai.NewClient(option.WithAPIKey(cfg.OpenAIKey), option.WithRequestTimeout(cfg.OpenAITimeout)),
        key:   cfg.OpenAIKey,
        model: cfg.OpenAIModel,
        log:   log,
    }
}

func (c *Client) Enabled() bool { return strings.TrimSpace(c.key) != "" }

const narrativePrompt = "You are a delivery-performance analyst. Given per-module DORA " +
    "metrics (deployment frequency, change failure rate, MTTR, lead time for changes), " +
    "write a short plain-text summary: call out the strongest and weakest modules, " +
    "notable failure rates, and one suggested action. No markdown, under 150 words."

// Narrate produces a prose summary of the given reports.
func (c *Client) Narrate(ctx context.Context, reports []domain.Report) (string, error) {
    if !c.Enabled() { return "", errors.New("openai: missing key") }
    payload, err := json.Marshal(reports)
    if err != nil { return "", err }
    resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
        Model: openai.ChatModel(c.model),
        Messages: []openai.ChatCompletionMessageParamUnion{
            openai.SystemMessage(narrativePrompt),
            openai.UserMessage(string(payload)),
        },
        Temperature: openai.Float(0.2),
    })
    if err != nil { return "", err }
    if len(resp.Choices) == 0 { return "", errors.New("openai: no choices") }
    return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package telegram

import (
    "bytes"
    "context"
    "encoding/json"
    "fmt"
    "io"
    "net/http"
    "time"

    "github.com/deploypulse/deploypulse/internal/config"
    "github.com/rs/zerolog"
)

type Client struct {
    token string
    http  *http.Client
    log   zerolog.Logger
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
    return &Client{ token: cfg.TelegramToken, http: &http.Client{ Timeout: 10 * time.Second }, log: log }
}

func (c *Client) post(ctx context.Context, method string, body map[string]any) ([]byte, error) {
    url := fmt.Sprintf("https://api.telegram.org/bot%s/%s", c.token, method)
    b, _ := json.Marshal(body)
    req, _ := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(b))
    req.Header.Set("Content-Type", "application/json")
    resp, err := c.http.Do(req)
    if err != nil { return nil, err }
    defer resp.Body.Close()
    out, _ := io.ReadAll(resp.Body)
    if resp.StatusCode >= 300 {
        return nil, fmt.Errorf("telegram %s status=%d body=%s", method, resp.StatusCode, string(out))
    }
    return out, nil
}

// SendMessage sends a Markdown-formatted digest message.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
    if c.token == "" || chatID == 0 { return fmt.Errorf("telegram: missing token or chat id") }
    _, err := c.post(ctx, "sendMessage", map[string]any{
        "chat_id": chatID, "text": text, "parse_mode": "Markdown", "disable_web_page_preview": true,
    })
    return err
}

// SendMessagePlain sends without parse_mode to avoid markdown parsing errors
// on report bodies that contain user-authored commit messages.
func (c *Client) SendMessagePlain(ctx context.Context, chatID int64, text string) error {
    if c.token == "" || chatID == 0 { return fmt.Errorf("telegram: missing token or chat id") }
    _, err := c.post(ctx, "sendMessage", map[string]any{
        "chat_id": chatID, "text": text, "disable_web_page_preview": true,
    })
    return err
}

func (c *Client) ResolveUsername(ctx context.Context, username string) (int64, error) {
    if c.token == "" || username == "" { return 0, fmt.Errorf("telegram: missing token or username") }
    out, err := c.post(ctx, "getChat", map[string]any{"chat_id": username})
    if err != nil { return 0, err }
    var r struct{ OK bool `json:"ok"`; Result struct{ ID int64 `json:"id"` } `json:"result"` }
    if err := json.Unmarshal(out, &r); err != nil { return 0, err }
    if !r.OK || r.Result.ID == 0 { return 0, fmt.Errorf("telegram: invalid getChat response") }
    return r.Result.ID, nil
}

// SetWebhook registers the webhook URL and secret with Telegram
func (c *Client) SetWebhook(ctx context.Context, webhookURL string, secretToken string) error {
    if c.token == "" || webhookURL == "" || secretToken == "" { return fmt.Errorf("telegram: missing token, url or secret") }
    _, err := c.post(ctx, "setWebhook", map[string]any{
        "url": webhookURL,
        "secret_token": secretToken,
        "drop_pending_updates": true,
        "allowed_updates": []string{"message"},
    })
    return err
}

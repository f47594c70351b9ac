/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package github

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "net/url"
    "strconv"
    "strings"
    "time"

    "github.com/deploypulse/deploypulse/internal/config"
    "github.com/rs/zerolog"
)

// Client is a minimal GitHub REST v3 client covering the endpoints the ETL
// needs: commits, pull requests, and issues, with pagination and retry on
// 429/5xx plus X-RateLimit backoff.
type Client struct {
    baseURL string
    token   string
    http    *http.Client
    log     zerolog.Logger

    // rate-limit waits are capped so a stale Reset header cannot stall a run
    maxRateWait time.Duration
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
    base := strings.TrimRight(cfg.GitHubBaseURL, "/")
    if base == "" { base = "https://api.github.com" }
    return &Client{
        baseURL:     base,
        token:       cfg.GitHubToken,
        http:        &http.Client{Timeout: cfg.HTTPTimeout},
        log:         log,
        maxRateWait: cfg.GitHubRateWaitMax,
    }
}

func (c *Client) apiURL(path string, q url.Values) string {
    if !strings.HasPrefix(path, "/") { path = "/" + path }
    u := c.baseURL + path
    if len(q) > 0 { u = u + "?" + q.Encode() }
    return u
}

func (c *Client) doJSON(ctx context.Context, u string, out any) error {
    if c.baseURL == "" { return errors.New("github: empty baseURL") }
    var lastErr error
    for attempt := 0; attempt < 3; attempt++ {
        req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
        if err != nil { return err }
        req.Header.Set("Accept", "application/vnd.github.v3+json")
        if c.token != "" { req.Header.Set("Authorization", "Bearer "+c.token) }
        resp, err := c.http.Do(req)
        if err != nil {
            lastErr = err
        } else {
            body, rerr := io.ReadAll(resp.Body)
            resp.Body.Close()
            if rerr != nil { return rerr }
            if resp.StatusCode < 300 {
                if err := c.waitForRateLimit(ctx, resp.Header); err != nil { return err }
                return json.Unmarshal(body, out)
            }
            msg := fmt.Errorf("github api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
            if resp.StatusCode == 429 || resp.StatusCode >= 500 {
                lastErr = msg
            } else {
                return msg
            }
        }
        select {
        case <-ctx.Done():
            return ctx.Err()
        case <-time.After(time.Duration(300*(1<<attempt)) * time.Millisecond):
        }
    }
    return lastErr
}

// waitForRateLimit sleeps until X-RateLimit-Reset when the remaining budget
// is nearly exhausted, the way the forge expects polite clients to behave.
func (c *Client) waitForRateLimit(ctx context.Context, h http.Header) error {
    remaining, err := strconv.Atoi(h.Get("X-RateLimit-Remaining"))
    if err != nil || remaining > 1 { return nil }
    reset, err := strconv.ParseInt(h.Get("X-RateLimit-Reset"), 10, 64)
    if err != nil { return nil }
    wait := time.Until(time.Unix(reset, 0))
    if wait <= 0 { return nil }
    if c.maxRateWait > 0 && wait > c.maxRateWait { wait = c.maxRateWait }
    c.log.Warn().Dur("wait", wait).Msg("github: rate limit nearly exhausted; waiting")
    select {
    case <-ctx.Done():
        return ctx.Err()
    case <-time.After(wait):
        return nil
    }
}

// Commits returns one page of commits, oldest fields as GitHub sends them.
func (c *Client) Commits(ctx context.Context, owner, repo string, page, perPage int, since, until time.Time) ([]map[string]any, error) {
    if owner == "" || repo == "" { return nil, errors.New("github: empty owner or repo") }
    q := url.Values{}
    q.Set("page", strconv.Itoa(page))
    q.Set("per_page", strconv.Itoa(perPage))
    if !since.IsZero() { q.Set("since", since.UTC().Format(time.RFC3339)) }
    if !until.IsZero() { q.Set("until", until.UTC().Format(time.RFC3339)) }
    u := c.apiURL("/repos/"+url.PathEscape(owner)+"/"+url.PathEscape(repo)+"/commits", q)
    var out []map[string]any
    if err := c.doJSON(ctx, u, &out); err != nil { return nil, err }
    return out, nil
}

// PullRequests returns one page of pull requests. state is open|closed|all.
func (c *Client) PullRequests(ctx context.Context, owner, repo, state string, page, perPage int) ([]map[string]any, error) {
    if owner == "" || repo == "" { return nil, errors.New("github: empty owner or repo") }
    if state == "" { state = "all" }
    q := url.Values{}
    q.Set("state", state)
    q.Set("page", strconv.Itoa(page))
    q.Set("per_page", strconv.Itoa(perPage))
    u := c.apiURL("/repos/"+url.PathEscape(owner)+"/"+url.PathEscape(repo)+"/pulls", q)
    var out []map[string]any
    if err := c.doJSON(ctx, u, &out); err != nil { return nil, err }
    return out, nil
}

// Issues returns one page of issues (GitHub includes PRs here; callers that
// want issues only should drop entries carrying a pull_request key).
func (c *Client) Issues(ctx context.Context, owner, repo, state string, page, perPage int) ([]map[string]any, error) {
    if owner == "" || repo == "" { return nil, errors.New("github: empty owner or repo") }
    if state == "" { state = "all" }
    q := url.Values{}
    q.Set("state", state)
    q.Set("page", strconv.Itoa(page))
    q.Set("per_page", strconv.Itoa(perPage))
    u := c.apiURL("/repos/"+url.PathEscape(owner)+"/"+url.PathEscape(repo)+"/issues", q)
    var out []map[string]any
    if err := c.doJSON(ctx, u, &out); err != nil { return nil, err }
    return out, nil
}

/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
    "github.com/deploypulse/deploypulse/internal/config"
    "github.com/gin-gonic/gin"
    "github.com/rs/zerolog"
)

func NewRouter(cfg config.Config, log zerolog.Logger, svc service) *gin.Engine {
    if cfg.AppEnv != "dev" { gin.SetMode(gin.ReleaseMode) }
    r := gin.New()
    r.Use(gin.Recovery())
    r.Use(func(c *gin.Context) {
        c.Next()
        log.Info().Str("m", c.Request.Method).Str("p", c.FullPath()).Int("s", c.Writer.Status()).Msg("http")
    })

    h := NewHandlers(cfg, log, svc)

    r.GET("/healthz", h.Healthz)
    r.GET("/reports/:module", h.ModuleReport)
    r.GET("/admin/last-run", h.LastRun)
    r.POST("/admin/run", h.RunNow)
    // Support both header-authenticated and path-secret webhook endpoints
    r.POST("/telegram/webhook", h.TelegramWebhook)
    r.POST("/telegram/webhook/:secret", h.TelegramWebhook)

    return r
}

package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/branch/attachment"
	"github.com/cppla/branch/config"
	"github.com/cppla/branch/utils"
)

// ConfigController serves the client-facing subset of configuration.
type ConfigController struct{}

func NewConfigController() *ConfigController { return &ConfigController{} }

// GetClientConfig returns limits the UI needs before the first request.
func (c *ConfigController) GetClientConfig(ctx *gin.Context) {
	cfg := config.Get()
	utils.Success(ctx, gin.H{
		"quota_ceiling":         cfg.QuotaCeiling,
		"session_ttl_hours":     cfg.SessionTTLHours,
		"attachment_max_bytes":  attachment.MaxSize,
		"suggestions_enabled":   cfg.OpenAIAPIKey != "",
		"invite_emails_enabled": cfg.SMTPHost != "" && cfg.SMTPFrom != "",
	})
}

package mail

import (
	"github.com/casaflora/tienda-core/internal/config"
)

// BuildMailConfig constructs a mail.Config from the persisted StoreConfig.
// Centralises the mapping so every caller builds the mailer consistently.
func BuildMailConfig(cfg *config.StoreConfig) Config {
	if cfg == nil {
		return Config{}
	}
	mc := Config{
		Enable:  cfg.Mail.Enable,
		From:    cfg.Mail.From,
		ReplyTo: cfg.Mail.ReplyTo,
	}
	if cfg.Mail.SMTP != nil {
		mc.Host = cfg.Mail.SMTP.Options.Host
		mc.Port = cfg.Mail.SMTP.Options.Port
		mc.User = cfg.Mail.SMTP.User
		mc.Pass = cfg.Mail.SMTP.Pass
	}
	if cfg.Mail.Resend != nil && cfg.Mail.Resend.APIKey != "" {
		mc.UseResend = true
		mc.ResendKey = cfg.Mail.Resend.APIKey
	}
	return mc
}

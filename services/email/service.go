// Package emailsvc sends the emails of the portal.
package emailsvc

import (
	"log"

	"github.com/trezcool/classroom/core"
)

// NewService prints emails in debug mode or without a SendGrid key, and sends them through SendGrid otherwise.
func NewService(std *log.Logger, conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return NewConsoleService(std, conf)
	}
	return NewSendgridService(conf, logger)
}

package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"academy/backend/mail"
	"academy/backend/models"
)

type emailDef struct {
	template string
	subject  string
	link     func(p EmailPayload) string
}

// EmailHandlers returns a handler for each email task. appURL is the
// frontend, serverURL the API.
func EmailHandlers(sender mail.Sender, templates *mail.Templates, appName, appURL, serverURL string) map[string]Handler {
	appURL = strings.TrimRight(appURL, "/")
	serverURL = strings.TrimRight(serverURL, "/")

	defs := map[string]emailDef{
		TaskWelcomeEmail: {
			template: mail.TemplateWelcome,
			subject:  "Welcome to " + appName,
			link:     func(EmailPayload) string { return appURL + "/courses" },
		},
		TaskPromotionalWelcomeEmail: {
			template: mail.TemplatePromotional,
			subject:  "Getting Started With " + appName,
			link:     func(EmailPayload) string { return appURL + "/courses" },
		},
		TaskVerificationEmail: {
			template: mail.TemplateVerification,
			subject:  "Verify your " + appName + " account",
			link: func(p EmailPayload) string {
				return serverURL + "/api/auth/verify?token=" + url.QueryEscape(p.Token)
			},
		},
		TaskPasswordResetEmail: {
			template: mail.TemplatePasswordReset,
			subject:  "Reset your " + appName + " password",
			link: func(p EmailPayload) string {
				return appURL + "/reset-password?token=" + url.QueryEscape(p.Token)
			},
		},
	}

	handlers := make(map[string]Handler, len(defs))
	for task, def := range defs {
		handlers[task] = emailHandler(sender, templates, def)
	}
	return handlers
}

func emailHandler(sender mail.Sender, templates *mail.Templates, def emailDef) Handler {
	return func(ctx context.Context, job models.Job) error {
		var p EmailPayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		if p.Email == "" {
			return fmt.Errorf("payload has no email")
		}

		name := p.FullName
		if name == "" {
			name = p.Email
		}
		html, err := templates.Render(def.template, mail.Data{FullName: name, ActionURL: def.link(p)})
		if err != nil {
			return err
		}
		return sender.Send(ctx, mail.Message{To: p.Email, Subject: def.subject, HTML: html})
	}
}

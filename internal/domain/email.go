package domain

import "context"

// Mailer defines the contract for sending emails (infrastructure port).
type Mailer interface {
	Send(to, subject, html, text string) error
}

// EmailTemplateRenderer renders email content from a named template with the given data.
type EmailTemplateRenderer interface {
	Render(templateName string, data any) (subject, htmlBody, textBody string, err error)
}

// LoginCodeEmailData holds data for the passwordless login code email.
type LoginCodeEmailData struct {
	Email            string
	Code             string
	ExpiresInMinutes int
}

// WorkspaceInvitationEmailData holds data for the workspace invitation email.
// InviteURL embeds the raw invite token; the recipient follows it to redeem.
type WorkspaceInvitationEmailData struct {
	Email         string
	InviterName   string
	WorkspaceName string
	InviteURL     string
	ExpiresInDays int
}

// EmailService defines the contract for sending domain-level emails.
type EmailService interface {
	SendLoginCode(ctx context.Context, data *LoginCodeEmailData) error
	SendWorkspaceInvitation(ctx context.Context, data *WorkspaceInvitationEmailData) error
}

package services

import (
	"context"
	"fmt"
	"log"

	"launchline/internal/domain"
)

type emailService struct {
	mailer   domain.Mailer
	renderer domain.EmailTemplateRenderer
}

// NewEmailService returns an EmailService that uses the given Mailer and template renderer.
func NewEmailService(mailer domain.Mailer, renderer domain.EmailTemplateRenderer) domain.EmailService {
	return &emailService{mailer: mailer, renderer: renderer}
}

// SendLoginCode sends the passwordless login code email using the "login_code" template.
func (s *emailService) SendLoginCode(ctx context.Context, data *domain.LoginCodeEmailData) error {
	if data == nil {
		return fmt.Errorf("login code email data is nil")
	}
	subject, htmlBody, textBody, err := s.renderer.Render("login_code", data)
	if err != nil {
		return fmt.Errorf("failed to render login_code template: %w", err)
	}
	if err := s.mailer.Send(data.Email, subject, htmlBody, textBody); err != nil {
		return fmt.Errorf("failed to send login code email: %w", err)
	}
	log.Printf("[EMAIL] Login code sent to %s", data.Email)
	return nil
}

// SendWorkspaceInvitation sends the invitation email using the "workspace_invite" template.
func (s *emailService) SendWorkspaceInvitation(ctx context.Context, data *domain.WorkspaceInvitationEmailData) error {
	if data == nil {
		return fmt.Errorf("workspace invitation email data is nil")
	}
	subject, htmlBody, textBody, err := s.renderer.Render("workspace_invite", data)
	if err != nil {
		return fmt.Errorf("failed to render workspace_invite template: %w", err)
	}
	if err := s.mailer.Send(data.Email, subject, htmlBody, textBody); err != nil {
		return fmt.Errorf("failed to send invitation email: %w", err)
	}
	log.Printf("[EMAIL] Workspace invitation sent to %s", data.Email)
	return nil
}

package services

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/username/tradeanalytics/backend/src/logger"
)

type smtpEmailService struct {
	host     string
	port     int
	username string
	password string
	from     string
}

// NewEmailService builds an SMTP-backed mail sender. When host is empty the
// service logs the mail instead of sending it, which keeps local development
// working without an SMTP account.
func NewEmailService(host string, port int, username, password, from string) EmailService {
	return &smtpEmailService{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}
}

func (s *smtpEmailService) SendPasswordResetEmail(toEmail, resetLink string) error {
	subject := "Password reset request"
	body := fmt.Sprintf(
		"A password reset was requested for your account.\r\n\r\n"+
			"Open the link below to choose a new password. The link expires in 15 minutes.\r\n\r\n"+
			"%s\r\n\r\n"+
			"If you did not request this, you can ignore this email.\r\n", resetLink)

	if s.host == "" {
		logger.L.Info("SMTP not configured, logging password reset mail instead", "to", toEmail, "link", resetLink)
		return nil
	}

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s\r\n", s.from))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", toEmail))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	auth := smtp.PlainAuth("", s.username, s.password, s.host)
	if err := smtp.SendMail(addr, auth, s.from, []string{toEmail}, []byte(msg.String())); err != nil {
		logger.L.Error("failed to send password reset email", "to", toEmail, "error", err)
		return fmt.Errorf("sending password reset email: %w", err)
	}
	logger.L.Info("password reset email sent", "to", toEmail)
	return nil
}

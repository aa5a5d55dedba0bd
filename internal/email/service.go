package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	"time"

	"github.com/blogsphere/backend/internal/config"
	"github.com/blogsphere/backend/internal/logging"
)

// Service sends templated transactional mail over SMTP.
// Delivery is synchronous; callers decide whether a failure aborts the
// request. Every send is bounded by the configured timeout so a slow
// provider cannot stall a request indefinitely.
type Service struct {
	smtpHost     string
	smtpPort     string
	smtpUser     string
	smtpPassword string
	fromName     string
	frontendURL  string
	apiBaseURL   string
	sendTimeout  time.Duration
}

func NewService(cfg config.EmailConfig) *Service {
	return &Service{
		smtpHost:     cfg.SMTPHost,
		smtpPort:     cfg.SMTPPort,
		smtpUser:     cfg.SMTPUser,
		smtpPassword: cfg.SMTPPassword,
		fromName:     cfg.FromName,
		frontendURL:  cfg.FrontendURL,
		apiBaseURL:   cfg.APIBaseURL,
		sendTimeout:  cfg.SendTimeout,
	}
}

// SendVerificationEmail sends an email verification link to the user
func (s *Service) SendVerificationEmail(ctx context.Context, toEmail, token string) error {
	logger := logging.GetLoggerFromContext(ctx)

	verificationLink := fmt.Sprintf("%s/verify-email/%s", s.apiBaseURL, token)

	subject := "Email Verification Request"
	body, err := renderVerificationEmail(verificationLink)
	if err != nil {
		logger.Error("failed to render email template", "error", err)
		return fmt.Errorf("render template: %w", err)
	}

	if err := s.sendEmail(ctx, toEmail, subject, body); err != nil {
		logger.Error("failed to send verification email", "email", toEmail, "error", err)
		return fmt.Errorf("send email: %w", err)
	}

	logger.Info("verification email sent", "email", toEmail)
	return nil
}

// SendPasswordResetEmail sends a password reset link to the user
func (s *Service) SendPasswordResetEmail(ctx context.Context, toEmail, token string) error {
	logger := logging.GetLoggerFromContext(ctx)

	resetLink := fmt.Sprintf("%s/reset-password/%s", s.frontendURL, token)

	subject := "Password Reset Request"
	body, err := renderPasswordResetEmail(resetLink)
	if err != nil {
		logger.Error("failed to render password reset email template", "error", err)
		return fmt.Errorf("render template: %w", err)
	}

	if err := s.sendEmail(ctx, toEmail, subject, body); err != nil {
		logger.Error("failed to send password reset email", "email", toEmail, "error", err)
		return fmt.Errorf("send email: %w", err)
	}

	logger.Info("password reset email sent", "email", toEmail)
	return nil
}

// sendEmail delivers one message, bounded by the service timeout and the
// caller's context
func (s *Service) sendEmail(ctx context.Context, to, subject, body string) error {
	auth := smtp.PlainAuth("", s.smtpUser, s.smtpPassword, s.smtpHost)

	msg := []byte(fmt.Sprintf(
		"From: %s <%s>\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=UTF-8\r\n"+
			"\r\n"+
			"%s\r\n",
		s.fromName, s.smtpUser, to, subject, body,
	))

	addr := fmt.Sprintf("%s:%s", s.smtpHost, s.smtpPort)

	ctx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()

	// net/smtp has no context support, so run the send in a goroutine
	// and stop waiting when the deadline passes.
	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, s.smtpUser, []string{to}, msg)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("smtp delivery timed out: %w", ctx.Err())
	}
}

var verificationTmpl = template.Must(template.New("verification").Parse(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body {
            font-family: Arial, sans-serif;
            line-height: 1.6;
            color: #333;
            max-width: 600px;
            margin: 0 auto;
            padding: 20px;
        }
        .button {
            display: inline-block;
            background-color: #4CAF50;
            color: white !important;
            padding: 12px 30px;
            text-decoration: none;
            border-radius: 5px;
            margin: 20px 0;
        }
        .footer {
            margin-top: 30px;
            font-size: 12px;
            color: #666;
        }
    </style>
</head>
<body>
    <h3>Email Verification Request</h3>
    <p>You requested an email verification. Click the button below to verify your email:</p>

    <a href="{{.Link}}" class="button" style="color: white !important;">Verify Email</a>

    <p>Or copy and paste this link into your browser:</p>
    <p style="word-break: break-all; color: #4CAF50;">{{.Link}}</p>

    <p>If you did not request this, please ignore this email.</p>
    <div class="footer">
        <p>&copy; BlogSphere</p>
    </div>
</body>
</html>
`))

var passwordResetTmpl = template.Must(template.New("passwordReset").Parse(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body {
            font-family: Arial, sans-serif;
            line-height: 1.6;
            color: #333;
            max-width: 600px;
            margin: 0 auto;
            padding: 20px;
        }
        .button {
            display: inline-block;
            background-color: #4CAF50;
            color: white !important;
            padding: 12px 30px;
            text-decoration: none;
            border-radius: 5px;
            margin: 20px 0;
        }
        .footer {
            margin-top: 30px;
            font-size: 12px;
            color: #666;
        }
    </style>
</head>
<body>
    <h3>Password Reset Request</h3>
    <p>You requested a password reset. Click the button below to reset your password:</p>

    <a href="{{.Link}}" class="button" style="color: white !important;">Reset Password</a>

    <p>Or copy and paste this link into your browser:</p>
    <p style="word-break: break-all; color: #4CAF50;">{{.Link}}</p>

    <p>If you did not request this, please ignore this email. Your password will remain unchanged.</p>
    <div class="footer">
        <p>This link will expire in 1 hour.</p>
        <p>&copy; BlogSphere</p>
    </div>
</body>
</html>
`))

type linkData struct {
	Link string
}

func renderVerificationEmail(link string) (string, error) {
	var buf bytes.Buffer
	if err := verificationTmpl.Execute(&buf, linkData{Link: link}); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return buf.String(), nil
}

func renderPasswordResetEmail(link string) (string, error) {
	var buf bytes.Buffer
	if err := passwordResetTmpl.Execute(&buf, linkData{Link: link}); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return buf.String(), nil
}

package service

import (
	"bytes"
	"html/template"
	"strconv"
	"time"

	"github.com/kevinaaaquil/readersync/models"
)

var codeEmailTemplate = template.Must(template.New("code").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>{{.Title}}</title>
  <style>
    body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; margin: 0; padding: 0; background-color: #f9fafb; }
    .container { max-width: 600px; margin: 0 auto; background-color: white; }
    .header { background-color: #2563eb; color: white; padding: 32px 24px; text-align: center; }
    .content { padding: 32px 24px; }
    .code-box { background-color: #f3f4f6; border: 2px solid #e5e7eb; border-radius: 8px; padding: 24px; text-align: center; margin: 24px 0; }
    .code { font-size: 32px; font-weight: bold; letter-spacing: 4px; color: #1f2937; font-family: monospace; }
    .footer { background-color: #f9fafb; padding: 24px; text-align: center; color: #6b7280; font-size: 14px; }
    .button { display: inline-block; background-color: #2563eb; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; font-weight: 500; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1>{{.Brand}}</h1>
      <p>{{.Title}}</p>
    </div>
    <div class="content">
      <p>Hello,</p>
      <p>{{.Description}}</p>
      <div class="code-box">
        <div class="code">{{.Code}}</div>
      </div>
      {{if .Link}}<p style="text-align:center"><a class="button" href="{{.Link}}">Continue</a></p>{{end}}
      <p>This code will expire in {{.ExpiresIn}} for security reasons.</p>
      <p>If you didn't request this code, you can safely ignore this email.</p>
      <p>Happy reading!<br>The {{.Brand}} Team</p>
    </div>
    <div class="footer">
      <p>This email was sent to verify your identity. Please do not reply to this email.</p>
    </div>
  </div>
</body>
</html>
`))

type codeEmail struct {
	Brand       string
	Title       string
	Description string
	Code        string
	Link        string
	ExpiresIn   string
}

func emailSubject(brand string, t models.TokenType) string {
	switch t {
	case models.TokenProgressBackup:
		return "Your " + brand + " Verification Code"
	case models.TokenEmailVerification:
		return "Verify Your Email - " + brand
	case models.TokenAccountRecovery:
		return "Recover Your Progress - " + brand
	case models.TokenPasswordReset:
		return "Reset Your Password - " + brand
	default:
		return "Verification Code - " + brand
	}
}

func emailCopy(t models.TokenType) (title, description string) {
	switch t {
	case models.TokenProgressBackup:
		return "Save Your Reading Progress", "Use this code to connect your email and save your reading progress:"
	case models.TokenAccountRecovery:
		return "Recover Your Reading Progress", "Use this code to recover your saved reading progress:"
	case models.TokenPasswordReset:
		return "Reset Your Password", "Use this code to reset your password:"
	default:
		return "Verify Your Email", "Use this code to verify your email address:"
	}
}

func humanDuration(d time.Duration) string {
	if d%time.Hour == 0 {
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return strconv.Itoa(h) + " hours"
	}
	return d.String()
}

func renderCodeEmail(data codeEmail) (string, error) {
	var buf bytes.Buffer
	if err := codeEmailTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

package mailer

import (
	"bytes"
	htmltemplate "html/template"
	texttemplate "text/template"
)

type TemplateData struct {
	Code          string
	ValidMinutes  int
	SenderName    string
	RecipientAddr string
}

const defaultText = `Verification code

Hello,

Here is your code to sign in:

    {{.Code}}

This code is valid for {{.ValidMinutes}} minute{{if ne .ValidMinutes 1}}s{{end}}.

If you did not request this code, simply ignore this email.

{{if .SenderName}}The {{.SenderName}} team{{end}}
`

const defaultHTML = `<html>
  <body style="font-family: Arial, sans-serif; padding: 20px; background-color: #f5f5f5;">
    <div style="max-width: 600px; margin: 0 auto; background-color: white; padding: 30px; border-radius: 10px;">
      <h1 style="color: #333; text-align: center;">Verification code</h1>
      <p style="color: #666; font-size: 16px;">Hello,</p>
      <p style="color: #666; font-size: 16px;">Here is your code to sign in:</p>
      <div style="background-color: #4a90e2; color: white; font-size: 32px; font-weight: bold; text-align: center; padding: 20px; border-radius: 8px; letter-spacing: 8px;">{{.Code}}</div>
      <p style="color: #666; font-size: 14px;">This code is valid for <strong>{{.ValidMinutes}} minute{{if ne .ValidMinutes 1}}s{{end}}</strong>.</p>
      <p style="color: #999; font-size: 12px;">If you did not request this code, simply ignore this email.</p>
      {{if .SenderName}}<p style="color: #999; font-size: 12px;">The {{.SenderName}} team</p>{{end}}
    </div>
  </body>
</html>
`

// Templates holds the plain-text and HTML bodies of the verification email
type Templates struct {
	text *texttemplate.Template
	html *htmltemplate.Template
}

func DefaultTemplates() *Templates {
	return &Templates{
		text: texttemplate.Must(texttemplate.New("otp.txt").Parse(defaultText)),
		html: htmltemplate.Must(htmltemplate.New("otp.html").Parse(defaultHTML)),
	}
}

// Render returns the text and HTML bodies for data
func (t *Templates) Render(data TemplateData) (string, string, error) {
	var text, html bytes.Buffer
	if err := t.text.Execute(&text, data); err != nil {
		return "", "", err
	}
	if err := t.html.Execute(&html, data); err != nil {
		return "", "", err
	}
	return text.String(), html.String(), nil
}

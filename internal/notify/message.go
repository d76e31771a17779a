// Package notify renders and delivers signing-request emails.
package notify

import (
	"bytes"
	"fmt"
	"html/template"
)

// Message is one transactional email with a plain-text body and an HTML
// alternative.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

var signingHTML = template.Must(template.New("signing").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2>Document Signing Request</h2>
  <p>You have received a document that requires your signature.</p>
  <p><strong>Document:</strong> {{.Name}}</p>
  <p>Please click the button below to view and sign the document:</p>
  <div style="text-align: center; margin: 30px 0;">
    <a href="{{.Link}}" style="background-color: #4F46E5; color: white; padding: 12px 24px; text-decoration: none; border-radius: 4px; font-weight: bold;">View &amp; Sign Document</a>
  </div>
  <p>Or copy and paste this link into your browser:</p>
  <p>{{.Link}}</p>
</div>
`))

// SigningRequest builds the email inviting to to sign the named document at
// link. An empty name renders as "Document".
func SigningRequest(to, name, link string) (Message, error) {
	if name == "" {
		name = "Document"
	}
	var html bytes.Buffer
	if err := signingHTML.Execute(&html, struct{ Name, Link string }{name, link}); err != nil {
		return Message{}, fmt.Errorf("render signing email: %w", err)
	}
	return Message{
		To:      to,
		Subject: "Document for Signing: " + name,
		Text:    "Please sign the document at: " + link,
		HTML:    html.String(),
	}, nil
}

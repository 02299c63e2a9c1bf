package notify

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/jdholdren/aptwatch/internal/aptwatch"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

var (
	funcs = map[string]any{
		"inc":     func(i int) int { return i + 1 },
		"summary": summary,
		"foundAt": func(l aptwatch.Listing) string { return l.DiscoveredAt.Format("2006-01-02 15:04") },
	}

	textTmpl = texttemplate.Must(texttemplate.New("email.txt.tmpl").Funcs(funcs).ParseFS(templatesFS, "templates/email.txt.tmpl"))
	htmlTmpl = htmltemplate.Must(htmltemplate.New("email.html.tmpl").Funcs(funcs).ParseFS(templatesFS, "templates/email.html.tmpl"))
)

// Message is a single email with a plain text and an HTML body.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

type messageData struct {
	Source   string
	Listings []aptwatch.Listing
}

// Compose builds the alert email for one user covering all of their new
// listings on a source.
func Compose(to, sourceName string, listings []aptwatch.Listing, now time.Time) (Message, error) {
	data := messageData{Source: sourceName, Listings: listings}

	var text, html bytes.Buffer
	if err := textTmpl.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("error rendering text body: %s", err)
	}
	if err := htmlTmpl.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("error rendering html body: %s", err)
	}

	return Message{
		To:      to,
		Subject: fmt.Sprintf("New Apartments Found - %s", now.Format("02 January 2006")),
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}

// One line describing the listing's size and rooms.
func summary(l aptwatch.Listing) string {
	if l.Specs != "" {
		return l.Specs
	}

	var parts []string
	if l.Bedrooms != nil {
		parts = append(parts, fmt.Sprintf("%d bedrooms", *l.Bedrooms))
	}
	if l.Area != nil {
		parts = append(parts, fmt.Sprintf("%d m²", *l.Area))
	}

	return strings.Join(parts, ", ")
}

package notifications

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/bissquit/oncall-garden/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

var messageTypes = []MessageType{MessageTypeEscalated}

// Renderer renders notifications from templates.
type Renderer struct {
	templates map[string]*template.Template
}

// NewRenderer creates a new renderer and loads the template of every
// channel and message type.
func NewRenderer() (*Renderer, error) {
	funcMap := template.FuncMap{
		"title":        titleCase,
		"upper":        strings.ToUpper,
		"formatTime":   formatTime,
		"urgencyEmoji": urgencyEmoji,
		"humanize":     humanize,
	}

	r := &Renderer{templates: make(map[string]*template.Template)}

	for _, channel := range domain.AllChannelTypes {
		for _, msg := range messageTypes {
			name := fmt.Sprintf("%s_%s", channel, msg)
			filename := fmt.Sprintf("templates/%s.tmpl", name)

			content, err := templatesFS.ReadFile(filename)
			if err != nil {
				return nil, fmt.Errorf("read template %s: %w", filename, err)
			}

			tmpl, err := template.New(name).Funcs(funcMap).Parse(string(content))
			if err != nil {
				return nil, fmt.Errorf("parse template %s: %w", name, err)
			}

			r.templates[name] = tmpl
		}
	}

	return r, nil
}

// Render renders a payload for the channel type. Returns subject and body.
func (r *Renderer) Render(channelType domain.ChannelType, payload Payload) (subject, body string, err error) {
	templateName := fmt.Sprintf("%s_%s", channelType, payload.MessageType)
	tmpl, ok := r.templates[templateName]
	if !ok {
		return "", "", fmt.Errorf("template not found: %s", templateName)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, payload); err != nil {
		return "", "", fmt.Errorf("execute template %s: %w", templateName, err)
	}

	return renderSubject(payload), strings.TrimSpace(buf.String()), nil
}

func renderSubject(payload Payload) string {
	switch payload.MessageType {
	case MessageTypeEscalated:
		return fmt.Sprintf("[%s] Level %d: %s", strings.ToUpper(payload.Incident.Urgency), payload.Escalation.Level, payload.Incident.Title)
	default:
		return payload.Incident.Title
	}
}

var titleCaser = cases.Title(language.English)

func titleCase(s string) string {
	return titleCaser.String(s)
}

func humanize(s string) string {
	return titleCaser.String(strings.ReplaceAll(s, "_", " "))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("Jan 2, 2006 15:04 UTC")
}

func urgencyEmoji(urgency string) string {
	switch strings.ToLower(urgency) {
	case "high":
		return "🔴"
	case "low":
		return "🟡"
	default:
		return "⚪"
	}
}

package notify

import (
	"bytes"
	"context"
	"html/template"
	"net/url"

	"scrumboard/backend/internal/models"

	log "github.com/sirupsen/logrus"
)

type Notifier interface {
	SendConfirmation(ctx context.Context, user *models.User, token string) error
	SendPasswordReset(ctx context.Context, user *models.User, token string) error
}

var (
	confirmTemplate = template.Must(template.New("confirm").Parse(`<p>Hello {{.Name}}, you created an account on {{.App}}. One last step: confirm it.</p>
<p>Visit <a href="{{.Link}}">{{.Link}}</a> and enter the code <b>{{.Token}}</b>.</p>
<p>This code expires in 10 minutes.</p>`))

	resetTemplate = template.Must(template.New("reset").Parse(`<p>Hello {{.Name}}, you asked to reset your {{.App}} password.</p>
<p>Visit <a href="{{.Link}}">{{.Link}}</a> and enter the code <b>{{.Token}}</b>.</p>
<p>This code expires in 10 minutes.</p>`))
)

type emailData struct {
	Name  string
	App   string
	Link  string
	Token string
}

type EmailNotifier struct {
	dispatcher  Dispatcher
	frontendURL string
	appName     string
	logger      log.FieldLogger
}

func NewEmailNotifier(dispatcher Dispatcher, frontendURL, appName string, logger log.FieldLogger) *EmailNotifier {
	if appName == "" {
		appName = "Scrumboard"
	}
	return &EmailNotifier{dispatcher: dispatcher, frontendURL: frontendURL, appName: appName, logger: logger}
}

func (n *EmailNotifier) SendConfirmation(ctx context.Context, user *models.User, token string) error {
	return n.send(ctx, user, "Confirm your account", confirmTemplate, "/auth/confirm-account", token)
}

func (n *EmailNotifier) SendPasswordReset(ctx context.Context, user *models.User, token string) error {
	return n.send(ctx, user, "Reset your password", resetTemplate, "/auth/new-password", token)
}

func (n *EmailNotifier) send(ctx context.Context, user *models.User, subject string, tmpl *template.Template, path, token string) error {
	link, err := url.JoinPath(n.frontendURL, path)
	if err != nil {
		return err
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, emailData{Name: user.Name, App: n.appName, Link: link, Token: token}); err != nil {
		return err
	}

	msg := Message{To: user.Email, Subject: n.appName + " - " + subject, HTML: body.String()}
	if err := n.dispatcher.Dispatch(ctx, msg); err != nil {
		return err
	}
	n.logger.WithFields(log.Fields{"to": user.Email, "subject": subject}).Debug("Email dispatched")
	return nil
}

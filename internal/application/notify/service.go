package notify

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/go-sale-provisioner/internal/domain"
)

// Service delivers freshly issued credentials to a buyer.
type Service interface {
	Notify(ctx context.Context, email, secret string) error
}

type mailer interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

const (
	defaultSubject = "Your Login Credentials for {{.Product}}"
	defaultBody    = `Hello,

Thank you for purchasing {{.Product}}! Here are your login details:

Username: {{.Email}}
Password: {{.Secret}}

Regards,
The {{.Product}} Team
`
)

type message struct {
	Product string
	Email   string
	Secret  string
}

type service struct {
	mailer  mailer
	product string
	timeout time.Duration
	subject *template.Template
	body    *template.Template
}

type ServiceDeps struct {
	Mailer      mailer
	ProductName string
	Timeout     time.Duration
	// Optional overrides of the default templates.
	SubjectTemplate string
	BodyTemplate    string
}

func NewService(deps ServiceDeps) (Service, error) {
	subj, body := deps.SubjectTemplate, deps.BodyTemplate
	if subj == "" {
		subj = defaultSubject
	}
	if body == "" {
		body = defaultBody
	}
	st, err := template.New("subject").Option("missingkey=error").Parse(subj)
	if err != nil {
		return nil, fmt.Errorf("parse subject template: %w", err)
	}
	bt, err := template.New("body").Option("missingkey=error").Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse body template: %w", err)
	}
	return &service{
		mailer:  deps.Mailer,
		product: deps.ProductName,
		timeout: deps.Timeout,
		subject: st,
		body:    bt,
	}, nil
}

func (s *service) Notify(ctx context.Context, email, secret string) error {
	if strings.TrimSpace(email) == "" {
		return fmt.Errorf("empty recipient: %w", domain.ErrNotifyInvalidAddress)
	}

	msg := message{Product: s.product, Email: email, Secret: secret}
	subject, err := render(s.subject, msg)
	if err != nil {
		return err
	}
	body, err := render(s.body, msg)
	if err != nil {
		return err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.mailer.SendEmail(ctx, email, subject, body)
}

func render(t *template.Template, msg message) (string, error) {
	var b bytes.Buffer
	if err := t.Execute(&b, msg); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return b.String(), nil
}

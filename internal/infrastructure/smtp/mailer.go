package smtp

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"time"

	"github.com/go-sale-provisioner/internal/config"
	"github.com/go-sale-provisioner/internal/domain"
)

// TLS modes accepted in config.SMTP.TLS.
const (
	TLSImplicit = "implicit"
	TLSStartTLS = "starttls"
	TLSNone     = "none"
)

// Mailer sends emails.
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type mailer struct {
	host     string
	port     string
	from     string
	username string
	password string
	tlsMode  string
	tlsCfg   *tls.Config
	now      func() time.Time
}

func NewMailer(cfg config.SMTP) Mailer {
	return &mailer{
		host:     cfg.Host,
		port:     cfg.Port,
		from:     cfg.From,
		username: cfg.Username,
		password: cfg.Password,
		tlsMode:  cfg.TLS,
		tlsCfg:   &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12},
		now:      time.Now,
	}
}

// SendEmail delivers a plain-text message. The whole SMTP exchange is bound
// to ctx: its deadline is applied to the connection and cancellation closes it.
// Returned errors wrap domain.ErrNotifyAuth, domain.ErrNotifyInvalidAddress or
// domain.ErrNotifyTransient.
func (m *mailer) SendEmail(ctx context.Context, to, subject, body string) error {
	rcpt, err := mail.ParseAddress(to)
	if err != nil {
		return fmt.Errorf("recipient %q: %w", to, domain.ErrNotifyInvalidAddress)
	}

	conn, err := m.dial(ctx)
	if err != nil {
		return fmt.Errorf("dial smtp: %w: %w", domain.ErrNotifyTransient, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err := m.send(conn, rcpt.Address, m.buildMessage(rcpt.Address, subject, body)); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("smtp: %w: %w", domain.ErrNotifyTransient, ctxErr)
		}
		return classify(err)
	}
	return nil
}

func (m *mailer) dial(ctx context.Context) (net.Conn, error) {
	addr := net.JoinHostPort(m.host, m.port)
	nd := &net.Dialer{}
	if m.tlsMode == TLSImplicit {
		td := &tls.Dialer{NetDialer: nd, Config: m.tlsCfg}
		return td.DialContext(ctx, "tcp", addr)
	}
	return nd.DialContext(ctx, "tcp", addr)
}

func (m *mailer) send(conn net.Conn, to string, msg []byte) error {
	c, err := smtp.NewClient(conn, m.host)
	if err != nil {
		return err
	}
	defer c.Close()

	if m.tlsMode == TLSStartTLS {
		ok, _ := c.Extension("STARTTLS")
		if !ok {
			return errors.New("server does not offer STARTTLS")
		}
		if err := c.StartTLS(m.tlsCfg); err != nil {
			return err
		}
	}
	if m.username != "" {
		if err := c.Auth(smtp.PlainAuth("", m.username, m.password, m.host)); err != nil {
			return &authError{err: err}
		}
	}
	if err := c.Mail(m.from); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func (m *mailer) buildMessage(to, subject, body string) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&b, "Date: %s\r\n", m.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return b.Bytes()
}

// authError marks failures raised while authenticating, including the ones
// net/smtp produces locally (e.g. refusing PLAIN over an unencrypted link).
type authError struct{ err error }

func (e *authError) Error() string { return e.err.Error() }
func (e *authError) Unwrap() error { return e.err }

// classify maps an SMTP exchange error onto the notification taxonomy.
func classify(err error) error {
	var aErr *authError
	if errors.As(err, &aErr) {
		return fmt.Errorf("smtp auth: %w: %w", domain.ErrNotifyAuth, err)
	}
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		switch tpErr.Code {
		case 530, 534, 535:
			return fmt.Errorf("smtp %d: %w: %w", tpErr.Code, domain.ErrNotifyAuth, err)
		case 501, 550, 553:
			return fmt.Errorf("smtp %d: %w: %w", tpErr.Code, domain.ErrNotifyInvalidAddress, err)
		}
	}
	return fmt.Errorf("smtp: %w: %w", domain.ErrNotifyTransient, err)
}

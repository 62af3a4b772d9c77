// Package mailer sends mail over SMTP for scripts and the bridge.
package mailer

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/gomail.v2"
)

// Config is the SMTP account, read from SMTP_HOST, SMTP_PORT, SMTP_USER
// and SMTP_PASS.
type Config struct {
	Host string
	Port int
	User string
	Pass string
}

var ErrNotConfigured = errors.New("SMTP_HOST and SMTP_PORT environment variables must be set")

func FromEnv() (Config, error) {
	host := os.Getenv("SMTP_HOST")
	portStr := os.Getenv("SMTP_PORT")
	if host == "" || portStr == "" {
		return Config{}, ErrNotConfigured
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Config{}, fmt.Errorf("SMTP_PORT must be an integer")
	}
	return Config{Host: host, Port: port, User: os.Getenv("SMTP_USER"), Pass: os.Getenv("SMTP_PASS")}, nil
}

type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
	HTML    string
}

// Sender delivers a composed message. *gomail.Dialer satisfies it.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Compose builds the gomail message. From falls back to the SMTP user.
func Compose(cfg Config, msg Message) (*gomail.Message, error) {
	if len(msg.To) == 0 {
		return nil, errors.New("missing recipient")
	}
	from := msg.From
	if from == "" {
		from = cfg.User
	}
	if from == "" {
		from = "noreply@example.com"
	}
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", msg.To...)
	m.SetHeader("Subject", msg.Subject)
	if msg.HTML != "" {
		m.SetBody("text/html", msg.HTML)
		if msg.Body != "" {
			m.AddAlternative("text/plain", msg.Body)
		}
	} else {
		m.SetBody("text/plain", msg.Body)
	}
	return m, nil
}

// Send composes msg and delivers it through sender, or through a dialer
// for cfg when sender is nil.
func Send(cfg Config, sender Sender, msg Message) error {
	m, err := Compose(cfg, msg)
	if err != nil {
		return err
	}
	if sender == nil {
		sender = gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass)
	}
	if err := sender.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// Recipients splits a comma separated address list.
func Recipients(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

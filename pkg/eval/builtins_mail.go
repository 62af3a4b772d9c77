package eval

import (
	"poly/pkg/mailer"
	"poly/pkg/sovereignty"
)

func init() {
	register("mail_send", builtinMailSend, "to", "subject", "body", "html", "from")
}

// builtinMailSend takes either a single dict with to/subject/body/html/from
// keys or the same fields as arguments. The SMTP host must be reachable
// under the http permission.
func builtinMailSend(in *Interpreter, args ...Object) Object {
	var msg mailer.Message
	if d, ok := dictArg(args, 0); ok && len(args) == 1 {
		field := func(name string) string {
			if v, ok := d.GetString(name); ok {
				return v.Inspect()
			}
			return ""
		}
		msg = mailer.Message{
			To:      mailer.Recipients(field("to")),
			From:    field("from"),
			Subject: field("subject"),
			Body:    field("body"),
			HTML:    field("html"),
		}
	} else {
		field := func(i int) string {
			if v, ok := arg(args, i); ok {
				return v.Inspect()
			}
			return ""
		}
		msg = mailer.Message{
			To:      mailer.Recipients(field(0)),
			Subject: field(1),
			Body:    field(2),
			HTML:    field(3),
			From:    field(4),
		}
	}

	cfg, err := mailer.FromEnv()
	if err != nil {
		return newError("%s", err)
	}
	if err := in.check(sovereignty.HTTP(sovereignty.DomainOf(cfg.Host))); err != nil {
		return err
	}
	if err := mailer.Send(cfg, in.mail, msg); err != nil {
		return newError("%s", err)
	}
	return TRUE
}

package emailsvc

import (
	"fmt"
	"net/http"
	"net/mail"
	"strings"

	"github.com/pkg/errors"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/trezcool/classroom/core"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

var sendgridAPI = sendgrid.API // mockable

type sendgridService struct {
	key        string
	from       *sgmail.Email
	subjPrefix string
	appName    string
	logger     core.Logger
}

var _ core.EmailService = (*sendgridService)(nil)

// NewSendgridService delivers notices through the SendGrid v3 API.
// Every message is tagged with the app name and its category.
func NewSendgridService(conf *core.Config, logger core.Logger) core.EmailService {
	from := conf.DefaultFromEmail()
	return &sendgridService{
		key:        conf.SendgridApiKey,
		from:       sgmail.NewEmail(from.Name, from.Address),
		subjPrefix: "[" + conf.AppName + "] ",
		appName:    conf.AppName,
		logger:     logger,
	}
}

// SendMessages renders messages synchronously and delivers them in the background, in order.
func (svc *sendgridService) SendMessages(messages ...*core.EmailMessage) {
	batch := svc.deliverable(messages)
	if len(batch) == 0 {
		return
	}
	go svc.sendAll(batch)
}

func (svc *sendgridService) deliverable(messages []*core.EmailMessage) []core.EmailMessage {
	batch := make([]core.EmailMessage, 0, len(messages))
	for _, msg := range messages {
		if err := msg.Render(); err != nil {
			svc.logger.Error(fmt.Sprintf("rendering email %q: %v", msg.Subject, err), err)
			continue
		}
		if msg.HasRecipients() && msg.HasContent() {
			batch = append(batch, *msg)
		}
	}
	return batch
}

func (svc *sendgridService) sendAll(batch []core.EmailMessage) {
	for _, msg := range batch {
		if err := svc.send(msg); err != nil {
			svc.logger.Error(
				fmt.Sprintf("sending %s email to %s: %v", categoryOf(msg), recipients(msg.To), err),
				err, map[string]interface{}{"subject": msg.Subject},
			)
		}
	}
}

func (svc *sendgridService) prepare(msg core.EmailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = svc.subjPrefix + msg.Subject
	for _, to := range msg.To {
		p.AddTos(sgEmail(to))
	}
	for _, cc := range msg.Cc {
		p.AddCCs(sgEmail(cc))
	}
	for _, bcc := range msg.Bcc {
		p.AddBCCs(sgEmail(bcc))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(svc.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	m.AddCategories(svc.appName, categoryOf(msg))
	return m
}

func (svc *sendgridService) send(msg core.EmailMessage) error {
	req := sendgrid.GetRequest(svc.key, sendgridEndpoint, sendgridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(svc.prepare(msg))

	res, err := sendgridAPI(req)
	if err != nil {
		return errors.Wrap(err, "calling sendgrid")
	}
	if res.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("sendgrid status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

func sgEmail(addr mail.Address) *sgmail.Email {
	return sgmail.NewEmail(addr.Name, addr.Address)
}

func categoryOf(msg core.EmailMessage) string {
	if msg.Category == "" {
		return "general"
	}
	return msg.Category
}

func recipients(addrs []mail.Address) string {
	emails := make([]string, 0, len(addrs))
	for _, a := range addrs {
		emails = append(emails, a.Address)
	}
	return strings.Join(emails, ", ")
}

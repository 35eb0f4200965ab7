package billing

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"log/slog"
	texttemplate "text/template"

	"tatuticket/internal/mailer"
	"tatuticket/internal/metrics"
	"tatuticket/internal/pricing"
	"tatuticket/internal/rbac"
	"tatuticket/internal/tenants"

	"github.com/shopspring/decimal"
)

// UserLister resolves a tenant's users.
type UserLister interface {
	ListUsersByTenant(ctx context.Context, tenantID string) ([]tenants.User, error)
}

// Notifier emails overage statements to a tenant's billing contacts.
// Delivery is best-effort: failures are logged and counted, never returned.
type Notifier struct {
	users   UserLister
	sender  mailer.Sender
	log     *slog.Logger
	metrics *metrics.BillingMetrics
}

func NewNotifier(users UserLister, sender mailer.Sender, log *slog.Logger, m *metrics.BillingMetrics) *Notifier {
	if log == nil {
		log = slog.Default()
	}
	return &Notifier{users: users, sender: sender, log: log, metrics: m}
}

type notificationLine struct {
	Description string
	Amount      string
}

type notificationData struct {
	TenantName string
	Lines      []notificationLine
	Total      string
}

var notificationHTML = htmltemplate.Must(htmltemplate.New("overage_html").Parse(`<!DOCTYPE html>
<html lang="pt">
<body style="font-family: Arial, sans-serif; color: #1f2937;">
  <h2>Cobrança de excedentes</h2>
  <p>Olá, a organização <strong>{{.TenantName}}</strong> ultrapassou os limites do plano neste período.</p>
  <table cellpadding="6" style="border-collapse: collapse;">
    <thead>
      <tr><th align="left">Descrição</th><th align="right">Valor</th></tr>
    </thead>
    <tbody>
    {{- range .Lines}}
      <tr><td>{{.Description}}</td><td align="right">{{.Amount}}</td></tr>
    {{- end}}
    </tbody>
    <tfoot>
      <tr><td><strong>Total</strong></td><td align="right"><strong>{{.Total}}</strong></td></tr>
    </tfoot>
  </table>
  <p>O valor será incluído na próxima fatura.</p>
  <p>Equipa TatuTicket</p>
</body>
</html>
`))

var notificationText = texttemplate.Must(texttemplate.New("overage_text").Parse(`Cobrança de excedentes - {{.TenantName}}

{{range .Lines}}- {{.Description}}: {{.Amount}}
{{end}}
Total: {{.Total}}

O valor será incluído na próxima fatura.
Equipa TatuTicket
`))

func notificationSubject(tenantName string) string {
	return fmt.Sprintf("TatuTicket - Cobrança de excedentes (%s)", tenantName)
}

func renderNotification(t tenants.Tenant, charges []OverageCharge, total decimal.Decimal) (html, text string, err error) {
	currency := chargesCurrency(charges)
	data := notificationData{
		TenantName: t.Name,
		Total:      pricing.FormatAmount(currency, total),
	}
	for _, c := range charges {
		data.Lines = append(data.Lines, notificationLine{
			Description: c.Description,
			Amount:      pricing.FormatAmount(c.Currency, c.TotalCost),
		})
	}

	var hb, tb bytes.Buffer
	if err := notificationHTML.Execute(&hb, data); err != nil {
		return "", "", fmt.Errorf("render html: %w", err)
	}
	if err := notificationText.Execute(&tb, data); err != nil {
		return "", "", fmt.Errorf("render text: %w", err)
	}
	return hb.String(), tb.String(), nil
}

// SendBillingNotification emails every admin and super_admin of t and
// returns the number of messages sent.
func (n *Notifier) SendBillingNotification(ctx context.Context, t tenants.Tenant, charges []OverageCharge, total decimal.Decimal) int {
	log := n.log.With("tenant_id", t.ID)

	users, err := n.users.ListUsersByTenant(ctx, t.ID)
	if err != nil {
		log.ErrorContext(ctx, "billing notification: list users failed", "err", err)
		n.metrics.NotificationFailed()
		return 0
	}

	var recipients []string
	for _, u := range users {
		if u.Email != "" && rbac.IsBillingContact(u.Role) {
			recipients = append(recipients, u.Email)
		}
	}
	if len(recipients) == 0 {
		log.WarnContext(ctx, "billing notification: tenant has no admin users")
		return 0
	}

	html, text, err := renderNotification(t, charges, total)
	if err != nil {
		log.ErrorContext(ctx, "billing notification: render failed", "err", err)
		n.metrics.NotificationFailed()
		return 0
	}

	subject := notificationSubject(t.Name)
	sent := 0
	for _, to := range recipients {
		err := n.sender.SendEmail(ctx, mailer.Message{To: to, Subject: subject, HTML: html, Text: text})
		if err != nil {
			log.ErrorContext(ctx, "billing notification: send failed", "to", to, "err", err)
			n.metrics.NotificationFailed()
			continue
		}
		sent++
	}
	log.InfoContext(ctx, "billing notification sent", "recipients", len(recipients), "sent", sent)
	return sent
}

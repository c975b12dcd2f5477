package notification

import (
	"bytes"
	"fmt"
	"html/template"

	booking "github.com/slotable/service-booking/internal/domain/booking"
)

// Audience selects which party a message is rendered for.
type Audience string

const (
	AudienceCustomer Audience = "customer"
	AudienceProvider Audience = "provider"
)

type templateKey struct {
	audience Audience
	event    booking.EventType
}

type message struct {
	Subject string
	Body    string
}

type templateData struct {
	BookingNumber string
	Status        string
	ScheduledAt   string
	Amount        string
}

const customerCreatedBody = `<p>We received your booking <strong>{{.BookingNumber}}</strong>.</p>
<p>Scheduled for {{.ScheduledAt}}. Total: {{.Amount}}.</p>
<p>You will hear from us once the provider confirms.</p>`

const providerCreatedBody = `<p>You have a new booking <strong>{{.BookingNumber}}</strong>.</p>
<p>Scheduled for {{.ScheduledAt}}. Total: {{.Amount}}.</p>
<p>Please confirm or cancel it from your dashboard.</p>`

const customerStatusChangedBody = `<p>Your booking <strong>{{.BookingNumber}}</strong> is now <strong>{{.Status}}</strong>.</p>
<p>Scheduled for {{.ScheduledAt}}.</p>`

const providerStatusChangedBody = `<p>Booking <strong>{{.BookingNumber}}</strong> is now <strong>{{.Status}}</strong>.</p>
<p>Scheduled for {{.ScheduledAt}}.</p>`

var bodyTemplates = map[templateKey]*template.Template{
	{AudienceCustomer, booking.EventBookingCreated}:       template.Must(template.New("customer_created").Parse(customerCreatedBody)),
	{AudienceProvider, booking.EventBookingCreated}:       template.Must(template.New("provider_created").Parse(providerCreatedBody)),
	{AudienceCustomer, booking.EventBookingStatusChanged}: template.Must(template.New("customer_status_changed").Parse(customerStatusChangedBody)),
	{AudienceProvider, booking.EventBookingStatusChanged}: template.Must(template.New("provider_status_changed").Parse(providerStatusChangedBody)),
}

// renderMessage renders the subject and body for one audience and event.
func renderMessage(audience Audience, evt booking.TransitionEvent) (message, error) {
	tmpl, ok := bodyTemplates[templateKey{audience, evt.Type}]
	if !ok {
		return message{}, fmt.Errorf("no template for audience=%s event=%s", audience, evt.Type)
	}

	bk := evt.After
	data := templateData{
		BookingNumber: bk.BookingNumber(),
		Status:        string(bk.Status()),
		ScheduledAt:   bk.ScheduledAt().Format("2006-01-02 15:04 MST"),
		Amount:        formatAmount(bk.TotalAmountCents(), bk.Currency()),
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return message{}, fmt.Errorf("failed to render template: %w", err)
	}

	return message{
		Subject: subjectFor(audience, evt.Type, data),
		Body:    body.String(),
	}, nil
}

func subjectFor(audience Audience, event booking.EventType, data templateData) string {
	switch event {
	case booking.EventBookingCreated:
		if audience == AudienceProvider {
			return fmt.Sprintf("New booking %s", data.BookingNumber)
		}
		return fmt.Sprintf("Booking %s received", data.BookingNumber)
	default:
		if audience == AudienceProvider {
			return fmt.Sprintf("Booking %s is now %s", data.BookingNumber, data.Status)
		}
		return fmt.Sprintf("Your booking %s is now %s", data.BookingNumber, data.Status)
	}
}

func formatAmount(cents int64, currency string) string {
	return fmt.Sprintf("%d.%02d %s", cents/100, cents%100, currency)
}

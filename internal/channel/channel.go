// Package channel wraps the outbound delivery providers behind one dispatch
// surface. Ordinary delivery failures (bad number, closed window, provider
// rejection) come back as Results, never as errors; an error return means a
// programming fault and is handled by the worker's per-job containment.
package channel

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/siteplanhq/notify/internal/model"
)

// Result is the uniform outcome shape every channel client returns.
type Result struct {
	Status            model.DeliveryStatus
	ProviderMessageID string
	Detail            string
}

func sent(providerID string) Result {
	return Result{Status: model.DeliverySent, ProviderMessageID: providerID}
}

func failed(detail string) Result {
	return Result{Status: model.DeliveryFailed, Detail: detail}
}

func skipped(detail string) Result {
	return Result{Status: model.DeliverySkipped, Detail: detail}
}

// Registry routes jobs to channel clients by kind.
type Registry struct {
	whatsapp *WhatsApp
	sms      *SMS
	email    *Email
}

func NewRegistry(wa *WhatsApp, sms *SMS, email *Email) *Registry {
	return &Registry{whatsapp: wa, sms: sms, email: email}
}

func (r *Registry) Dispatch(ctx context.Context, job *model.Job) (Result, error) {
	switch job.Kind {
	case model.KindWhatsAppTemplate:
		return r.whatsapp.SendTemplate(ctx, job.Recipient, job.TemplateID, job.TemplateVars)
	case model.KindWhatsAppFreeform:
		return r.whatsapp.SendFreeform(ctx, job.Recipient, job.Body)
	case model.KindWhatsAppMedia:
		return r.whatsapp.SendMedia(ctx, job.Recipient, job.MediaURL, job.Body)
	case model.KindSMS:
		return r.sms.Send(ctx, job.Recipient, job.Body)
	case model.KindEmail:
		return r.email.Send(ctx, job.Recipient, job.Subject, job.Body)
	default:
		return failed(fmt.Sprintf("unknown job kind: %s", job.Kind)), nil
	}
}

func notConfigured(channel string) Result {
	slog.Warn("channel not configured, dropping send", "channel", channel)
	return skipped(channel + " channel not configured")
}

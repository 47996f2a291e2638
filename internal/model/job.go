package model

import (
	"time"

	"github.com/google/uuid"
)

type JobKind string

const (
	KindWhatsAppTemplate JobKind = "whatsapp_template"
	KindWhatsAppFreeform JobKind = "whatsapp_freeform"
	KindWhatsAppMedia    JobKind = "whatsapp_media"
	KindEmail            JobKind = "email"
	KindSMS              JobKind = "sms"
)

// Job is one pending delivery. It is owned by the queue until a worker
// claims it; after that the claiming worker owns it exclusively. A job gets
// exactly one delivery attempt.
type Job struct {
	ID        string
	Kind      JobKind
	Recipient string

	// Body is the rendered message text (or email HTML).
	Body string
	// Subject is set for email jobs only.
	Subject string
	// TemplateID and TemplateVars are set for template jobs only.
	TemplateID   string
	TemplateVars map[string]string
	// MediaURL is set for media jobs only.
	MediaURL string

	// Metadata travels with the job but is excluded from delivery logs.
	Metadata map[string]string

	// Fallback, when non-nil, is enqueued after this job's attempt fails.
	// Declared by the trigger layer (template WhatsApp -> SMS); one level
	// only, the fallback's own Fallback is ignored.
	Fallback *Job

	EnqueuedAt time.Time
}

func NewJob(kind JobKind, recipient string) *Job {
	return &Job{
		ID:        uuid.New().String(),
		Kind:      kind,
		Recipient: recipient,
	}
}

type DeliveryStatus string

const (
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
	DeliverySkipped DeliveryStatus = "skipped"
)

// DeliveryLogEntry is the append-only record of one dispatch attempt.
type DeliveryLogEntry struct {
	ID                int64
	JobID             string
	Kind              JobKind
	Recipient         string
	Body              string
	Status            DeliveryStatus
	ProviderMessageID string
	ErrorDetail       string
	AttemptedAt       time.Time
}

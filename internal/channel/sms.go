package channel

import (
	"context"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/siteplanhq/notify/internal/config"
)

// SMS is the plain-text fallback channel, backed by Twilio. It is used when
// a WhatsApp template delivery fails and for pre-opt-in invitations.
type SMS struct {
	cfg    config.TwilioConfig
	create func(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

func NewSMS(cfg config.TwilioConfig) *SMS {
	s := &SMS{cfg: cfg}
	if cfg.IsConfigured() {
		client := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		})
		s.create = client.Api.CreateMessage
	}
	return s
}

func (s *SMS) Send(_ context.Context, phone, body string) (Result, error) {
	if s.create == nil {
		return notConfigured("sms"), nil
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(phone)
	params.SetFrom(s.cfg.FromNumber)
	params.SetBody(body)

	msg, err := s.create(params)
	if err != nil {
		return failed(err.Error()), nil
	}

	sid := ""
	if msg.Sid != nil {
		sid = *msg.Sid
	}
	return sent(sid), nil
}

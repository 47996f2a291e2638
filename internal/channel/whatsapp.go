package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/siteplanhq/notify/internal/config"
	"github.com/siteplanhq/notify/internal/repo"
)

// freeformWindow is the provider rule: a conversational (non-template)
// message may only be sent within 24 hours of the customer's last inbound
// message. Template sends are exempt.
const freeformWindow = 24 * time.Hour

// WindowChecker reports whether the freeform conversation window is open
// for a phone number.
type WindowChecker interface {
	WindowOpen(ctx context.Context, phone string) (bool, error)
}

// InboundWindow checks the window against recorded inbound messages.
type InboundWindow struct {
	inbound repo.InboundRepository
	now     func() time.Time
}

func NewInboundWindow(inbound repo.InboundRepository) *InboundWindow {
	return &InboundWindow{inbound: inbound, now: time.Now}
}

func (w *InboundWindow) WindowOpen(ctx context.Context, phone string) (bool, error) {
	last, err := w.inbound.LastInboundAt(ctx, phone)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return w.now().Sub(last) < freeformWindow, nil
}

// WhatsApp sends template, freeform and media messages through the Cloud
// API messages endpoint.
type WhatsApp struct {
	cfg    config.WhatsAppConfig
	window WindowChecker
	client *http.Client
}

func NewWhatsApp(cfg config.WhatsAppConfig, window WindowChecker) *WhatsApp {
	return &WhatsApp{
		cfg:    cfg,
		window: window,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type waLanguage struct {
	Code string `json:"code"`
}

type waParameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type waComponent struct {
	Type       string        `json:"type"`
	Parameters []waParameter `json:"parameters"`
}

type waTemplate struct {
	Name       string        `json:"name"`
	Language   waLanguage    `json:"language"`
	Components []waComponent `json:"components,omitempty"`
}

type waText struct {
	Body string `json:"body"`
}

type waDocument struct {
	Link    string `json:"link"`
	Caption string `json:"caption,omitempty"`
}

type waRequest struct {
	MessagingProduct string      `json:"messaging_product"`
	To               string      `json:"to"`
	Type             string      `json:"type"`
	Template         *waTemplate `json:"template,omitempty"`
	Text             *waText     `json:"text,omitempty"`
	Document         *waDocument `json:"document,omitempty"`
}

type waResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// SendTemplate is always permitted; template messages are the
// business-initiated path and do not depend on the conversation window.
func (w *WhatsApp) SendTemplate(ctx context.Context, phone, templateID string, vars map[string]string) (Result, error) {
	if !w.cfg.IsConfigured() {
		return notConfigured("whatsapp"), nil
	}

	tpl := &waTemplate{
		Name:     templateID,
		Language: waLanguage{Code: "en"},
	}
	if len(vars) > 0 {
		keys := make([]string, 0, len(vars))
		for k := range vars {
			keys = append(keys, k)
		}
		// Template variables are positional; map keys are "1", "2", ...
		sort.Strings(keys)

		params := make([]waParameter, 0, len(keys))
		for _, k := range keys {
			params = append(params, waParameter{Type: "text", Text: vars[k]})
		}
		tpl.Components = []waComponent{{Type: "body", Parameters: params}}
	}

	return w.post(ctx, waRequest{
		MessagingProduct: "whatsapp",
		To:               phone,
		Type:             "template",
		Template:         tpl,
	})
}

// SendFreeform requires an open conversation window. A closed window is a
// skip, not a silent template retry: callers that need certainty must
// enqueue a template job instead.
func (w *WhatsApp) SendFreeform(ctx context.Context, phone, body string) (Result, error) {
	if !w.cfg.IsConfigured() {
		return notConfigured("whatsapp"), nil
	}

	open, err := w.window.WindowOpen(ctx, phone)
	if err != nil {
		return Result{}, fmt.Errorf("window check: %w", err)
	}
	if !open {
		return skipped("24h conversation window closed"), nil
	}

	return w.post(ctx, waRequest{
		MessagingProduct: "whatsapp",
		To:               phone,
		Type:             "text",
		Text:             &waText{Body: body},
	})
}

// SendMedia sends a document link with caption; window-gated like freeform.
func (w *WhatsApp) SendMedia(ctx context.Context, phone, mediaURL, caption string) (Result, error) {
	if !w.cfg.IsConfigured() {
		return notConfigured("whatsapp"), nil
	}

	open, err := w.window.WindowOpen(ctx, phone)
	if err != nil {
		return Result{}, fmt.Errorf("window check: %w", err)
	}
	if !open {
		return skipped("24h conversation window closed"), nil
	}

	return w.post(ctx, waRequest{
		MessagingProduct: "whatsapp",
		To:               phone,
		Type:             "document",
		Document:         &waDocument{Link: mediaURL, Caption: caption},
	})
}

func (w *WhatsApp) post(ctx context.Context, payload waRequest) (Result, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return Result{}, err
	}

	url := fmt.Sprintf("%s/%s/messages", w.cfg.BaseURL, w.cfg.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+w.cfg.AccessToken)

	resp, err := w.client.Do(req)
	if err != nil {
		return failed(err.Error()), nil
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	var wr waResponse
	if err := json.Unmarshal(body, &wr); err != nil {
		return failed(fmt.Sprintf("failed to decode json: %v body=%q", err, string(body))), nil
	}

	if resp.StatusCode != http.StatusOK {
		detail := fmt.Sprintf("unexpected status code: %d body=%q", resp.StatusCode, string(body))
		if wr.Error != nil {
			detail = fmt.Sprintf("provider error %d: %s", wr.Error.Code, wr.Error.Message)
		}
		return failed(detail), nil
	}
	if len(wr.Messages) == 0 || wr.Messages[0].ID == "" {
		return failed(fmt.Sprintf("missing message id in response body=%q", string(body))), nil
	}

	return sent(wr.Messages[0].ID), nil
}

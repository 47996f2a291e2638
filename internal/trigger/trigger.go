// Package trigger is the boundary between the application's domain events
// and the dispatch engine. Each trigger gathers recipients, writes the
// in-app notification row synchronously (the UI must reflect the event even
// if external delivery lags or fails), mints magic links for deep linking,
// and enqueues fire-and-forget delivery jobs.
package trigger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/siteplanhq/notify/internal/cache"
	"github.com/siteplanhq/notify/internal/magiclink"
	"github.com/siteplanhq/notify/internal/model"
	"github.com/siteplanhq/notify/internal/queue"
	"github.com/siteplanhq/notify/internal/repo"
)

// WhatsApp template identifiers, pre-approved with the provider.
const (
	TemplateWelcomeInvite     = "welcome_invite"
	TemplateProjectCreated    = "project_created"
	TemplateDrawingUploaded   = "drawing_uploaded"
	TemplateApprovalNeeded    = "approval_needed"
	TemplateRevisionRequested = "revision_requested"
	TemplateTaskAssigned      = "task_assigned"
	TemplateApprovalReminder  = "approval_reminder"
)

const userCacheTTL = 5 * time.Minute

type Triggers struct {
	queue         *queue.Queue
	magic         *magiclink.Service
	users         repo.UserRepository
	drawings      repo.DrawingRepository
	notifications repo.NotificationRepository
	cache         cache.Cache
	baseURL       string
	now           func() time.Time
}

func New(
	q *queue.Queue,
	magic *magiclink.Service,
	users repo.UserRepository,
	drawings repo.DrawingRepository,
	notifications repo.NotificationRepository,
	c cache.Cache,
	baseURL string,
) (*Triggers, error) {
	if q == nil || magic == nil || users == nil || drawings == nil || notifications == nil || c == nil {
		return nil, fmt.Errorf("all trigger dependencies must be non-nil")
	}
	return &Triggers{
		queue:         q,
		magic:         magic,
		users:         users,
		drawings:      drawings,
		notifications: notifications,
		cache:         c,
		baseURL:       baseURL,
		now:           time.Now,
	}, nil
}

// Fire-and-forget enqueue helpers exposed to the rest of the application.

func (t *Triggers) EnqueueWhatsAppTemplate(phone, templateID string, vars map[string]string) {
	job := model.NewJob(model.KindWhatsAppTemplate, phone)
	job.TemplateID = templateID
	job.TemplateVars = vars
	t.queue.Enqueue(job)
}

func (t *Triggers) EnqueueWhatsAppFreeform(phone, message string) {
	job := model.NewJob(model.KindWhatsAppFreeform, phone)
	job.Body = message
	t.queue.Enqueue(job)
}

func (t *Triggers) EnqueueWhatsAppMedia(phone, mediaURL, message string) {
	job := model.NewJob(model.KindWhatsAppMedia, phone)
	job.MediaURL = mediaURL
	job.Body = message
	t.queue.Enqueue(job)
}

func (t *Triggers) EnqueueEmail(to, subject, html string) {
	job := model.NewJob(model.KindEmail, to)
	job.Subject = subject
	job.Body = html
	t.queue.Enqueue(job)
}

func (t *Triggers) EnqueueSMS(phone, message string) {
	job := model.NewJob(model.KindSMS, phone)
	job.Body = message
	t.queue.Enqueue(job)
}

// NotifyUserRegistered sends the welcome email and, when a phone number is
// on file, the pre-opt-in invite. The invite goes out as SMS because the
// recipient has never messaged the business on WhatsApp.
func (t *Triggers) NotifyUserRegistered(ctx context.Context, user *model.User) error {
	t.EnqueueEmail(user.Email, "Welcome to SitePlan",
		fmt.Sprintf("<p>Hi %s,</p><p>Your SitePlan account is ready.</p>", user.Name))

	if user.Phone != "" {
		t.EnqueueSMS(user.Phone,
			fmt.Sprintf("Hi %s, your SitePlan account is ready. Message us on WhatsApp to get project updates there.", user.Name))
	}
	return nil
}

// NotifyProjectCreated tells the owner their project exists, with a deep
// link straight into it.
func (t *Triggers) NotifyProjectCreated(ctx context.Context, projectID, projectName, ownerID string) error {
	owner, err := t.lookupUser(ctx, ownerID)
	if err != nil {
		return err
	}

	if err := t.writeInApp(ctx, owner.ID,
		"Project created",
		fmt.Sprintf("Project %q has been set up.", projectName),
		"/projects/"+projectID,
	); err != nil {
		return err
	}

	link, err := t.mintLink(ctx, owner, model.DestProject, projectID, nil)
	if err != nil {
		return err
	}

	t.enqueueTemplateWithSMSFallback(owner.Phone,
		TemplateProjectCreated,
		map[string]string{"1": owner.Name, "2": projectName, "3": link},
		fmt.Sprintf("Your project %q is ready: %s", projectName, link),
	)
	return nil
}

// NotifyDrawingUploaded announces a fresh drawing to the project owner and
// sends the file itself when the conversation window allows it.
func (t *Triggers) NotifyDrawingUploaded(ctx context.Context, d *model.Drawing, fileURL string) error {
	owner, err := t.lookupUser(ctx, d.OwnerID)
	if err != nil {
		return err
	}

	path := fmt.Sprintf("/projects/%s/drawing/%s", d.ProjectID, d.ID)
	if err := t.writeInApp(ctx, owner.ID,
		"New drawing uploaded",
		fmt.Sprintf("Drawing %q was uploaded to your project.", d.Title),
		path,
	); err != nil {
		return err
	}

	link, err := t.mintLink(ctx, owner, model.DestDrawing, d.ID,
		map[string]string{"project_id": d.ProjectID})
	if err != nil {
		return err
	}

	t.enqueueTemplateWithSMSFallback(owner.Phone,
		TemplateDrawingUploaded,
		map[string]string{"1": owner.Name, "2": d.Title, "3": link},
		fmt.Sprintf("New drawing %q uploaded. View it: %s", d.Title, link),
	)

	if fileURL != "" {
		t.EnqueueWhatsAppMedia(owner.Phone, fileURL, d.Title)
	}
	return nil
}

// NotifyApprovalNeeded marks the drawing as submitted for review and asks
// the owner to approve it. The magic link lands on the drawing review page.
func (t *Triggers) NotifyApprovalNeeded(ctx context.Context, d *model.Drawing) error {
	if err := t.drawings.MarkSubmitted(ctx, d.ID, t.now()); err != nil {
		return fmt.Errorf("mark submitted: %w", err)
	}

	owner, err := t.lookupUser(ctx, d.OwnerID)
	if err != nil {
		return err
	}

	path := fmt.Sprintf("/projects/%s/drawing/%s", d.ProjectID, d.ID)
	if err := t.writeInApp(ctx, owner.ID,
		"Approval needed",
		fmt.Sprintf("Drawing %q is waiting for your approval.", d.Title),
		path,
	); err != nil {
		return err
	}

	link, err := t.mintLink(ctx, owner, model.DestDrawingReview, d.ID,
		map[string]string{"project_id": d.ProjectID})
	if err != nil {
		return err
	}

	t.enqueueTemplateWithSMSFallback(owner.Phone,
		TemplateApprovalNeeded,
		map[string]string{"1": owner.Name, "2": d.Title, "3": link},
		fmt.Sprintf("Drawing %q needs your approval: %s", d.Title, link),
	)
	return nil
}

// NotifyRevisionRequested tells the recipient a reviewer asked for changes.
func (t *Triggers) NotifyRevisionRequested(ctx context.Context, d *model.Drawing, recipientID, note string) error {
	recipient, err := t.lookupUser(ctx, recipientID)
	if err != nil {
		return err
	}

	path := fmt.Sprintf("/projects/%s/drawing/%s", d.ProjectID, d.ID)
	if err := t.writeInApp(ctx, recipient.ID,
		"Revision requested",
		fmt.Sprintf("Changes requested on drawing %q: %s", d.Title, note),
		path,
	); err != nil {
		return err
	}

	link, err := t.mintLink(ctx, recipient, model.DestDrawingReview, d.ID,
		map[string]string{"project_id": d.ProjectID})
	if err != nil {
		return err
	}

	t.enqueueTemplateWithSMSFallback(recipient.Phone,
		TemplateRevisionRequested,
		map[string]string{"1": recipient.Name, "2": d.Title, "3": note, "4": link},
		fmt.Sprintf("Changes requested on %q: %s %s", d.Title, note, link),
	)
	return nil
}

// NotifyTaskAssigned tells a user they picked up a task.
func (t *Triggers) NotifyTaskAssigned(ctx context.Context, assigneeID, taskTitle, projectID string) error {
	assignee, err := t.lookupUser(ctx, assigneeID)
	if err != nil {
		return err
	}

	if err := t.writeInApp(ctx, assignee.ID,
		"Task assigned",
		fmt.Sprintf("You have been assigned: %s", taskTitle),
		"/projects/"+projectID,
	); err != nil {
		return err
	}

	link, err := t.mintLink(ctx, assignee, model.DestProject, projectID, nil)
	if err != nil {
		return err
	}

	t.enqueueTemplateWithSMSFallback(assignee.Phone,
		TemplateTaskAssigned,
		map[string]string{"1": assignee.Name, "2": taskTitle, "3": link},
		fmt.Sprintf("New task for you: %s %s", taskTitle, link),
	)
	return nil
}

// NotifyApprovalReminder escalates a drawing that has been waiting past the
// grace period. Called by the reminder scheduler.
func (t *Triggers) NotifyApprovalReminder(ctx context.Context, d *model.Drawing) error {
	owner, err := t.lookupUser(ctx, d.OwnerID)
	if err != nil {
		return err
	}

	path := fmt.Sprintf("/projects/%s/drawing/%s", d.ProjectID, d.ID)
	if err := t.writeInApp(ctx, owner.ID,
		"Approval still pending",
		fmt.Sprintf("Drawing %q is still waiting for your approval.", d.Title),
		path,
	); err != nil {
		return err
	}

	link, err := t.mintLink(ctx, owner, model.DestDrawingReview, d.ID,
		map[string]string{"project_id": d.ProjectID})
	if err != nil {
		return err
	}

	t.enqueueTemplateWithSMSFallback(owner.Phone,
		TemplateApprovalReminder,
		map[string]string{"1": owner.Name, "2": d.Title, "3": link},
		fmt.Sprintf("Reminder: drawing %q still needs your approval: %s", d.Title, link),
	)
	return nil
}

// enqueueTemplateWithSMSFallback is the guaranteed-delivery path: template
// WhatsApp first, SMS declared as the fallback. Email is deliberately never
// part of this chain.
func (t *Triggers) enqueueTemplateWithSMSFallback(phone, templateID string, vars map[string]string, smsBody string) {
	if phone == "" {
		slog.Warn("recipient has no phone number, skipping external notification", "template", templateID)
		return
	}

	job := model.NewJob(model.KindWhatsAppTemplate, phone)
	job.TemplateID = templateID
	job.TemplateVars = vars

	fb := model.NewJob(model.KindSMS, phone)
	fb.Body = smsBody
	job.Fallback = fb

	t.queue.Enqueue(job)
}

// writeInApp persists the in-app notification row before any job is
// enqueued, so it exists by the time the HTTP response returns.
func (t *Triggers) writeInApp(ctx context.Context, userID, title, body, linkPath string) error {
	n := &model.Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     title,
		Body:      body,
		LinkPath:  linkPath,
		CreatedAt: t.now().UTC(),
	}
	if err := t.notifications.Insert(ctx, n); err != nil {
		return fmt.Errorf("write in-app notification: %w", err)
	}
	return nil
}

func (t *Triggers) mintLink(ctx context.Context, u *model.User, destType model.DestinationType, destID string, extra map[string]string) (string, error) {
	token, err := t.magic.Generate(ctx, magiclink.GenerateParams{
		UserID:    u.ID,
		UserEmail: u.Email,
		UserRole:  u.Role,
		DestType:  destType,
		DestID:    destID,
		Extra:     extra,
	})
	if err != nil {
		return "", fmt.Errorf("mint magic link: %w", err)
	}
	return t.baseURL + "/magic/" + token, nil
}

// lookupUser reads through the cache; user records are hot and change
// rarely. Entries are stored as JSON text: the Redis cache round-trips
// values through JSON anyway, so a typed value would come back as a plain
// map and never hit.
func (t *Triggers) lookupUser(ctx context.Context, id string) (*model.User, error) {
	key := "users:" + id

	if v, ok := t.cache.Get(ctx, key); ok {
		if u, ok := decodeCachedUser(v); ok {
			return u, nil
		}
	}

	u, err := t.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lookup user %s: %w", id, err)
	}
	if b, err := json.Marshal(u); err == nil {
		t.cache.Set(ctx, key, string(b), userCacheTTL)
	}
	return u, nil
}

func decodeCachedUser(v any) (*model.User, bool) {
	s, ok := v.(string)
	if !ok {
		return nil, false
	}
	var u model.User
	if err := json.Unmarshal([]byte(s), &u); err != nil {
		return nil, false
	}
	return &u, true
}

// InvalidateUser drops a user's cache entry after the application mutates
// the record.
func (t *Triggers) InvalidateUser(ctx context.Context, id string) {
	t.cache.Delete(ctx, "users:"+id)
}

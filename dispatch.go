package clubsite

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Messenger delivers a text message to a messaging-platform identity.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// ErrRecipientNotFound is returned when a single-target notification has no
// reachable recipient (unknown id, banned, or never started the bot).
var ErrRecipientNotFound = errors.New("recipient not found")

// flexID accepts identifiers sent either as JSON strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number")
	}
	*f = flexID(n.String())
	return nil
}

// EventPayload is the body of a new-event trigger.
type EventPayload struct {
	EventID     flexID `json:"eventId"`
	Title       string `json:"title"`
	EventDate   string `json:"eventDate"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
}

func (p EventPayload) missing() []string {
	return missingFields(map[string]string{"eventId": string(p.EventID), "title": p.Title, "eventDate": p.EventDate},
		"eventId", "title", "eventDate")
}

// MatchPayload is the body of a new-match trigger.
type MatchPayload struct {
	UserID          flexID `json:"userId"`
	MatchID         flexID `json:"matchId,omitempty"`
	MatchedUserName string `json:"matchedUserName"`
}

func (p MatchPayload) missing() []string {
	return missingFields(map[string]string{"userId": string(p.UserID), "matchedUserName": p.MatchedUserName},
		"userId", "matchedUserName")
}

// RolePayload is the body of a role-granted trigger.
type RolePayload struct {
	UserID    flexID `json:"userId"`
	Role      string `json:"role"`
	GrantedBy string `json:"grantedBy,omitempty"`
}

func (p RolePayload) missing() []string {
	return missingFields(map[string]string{"userId": string(p.UserID), "role": p.Role}, "userId", "role")
}

func missingFields(values map[string]string, order ...string) []string {
	var out []string
	for _, k := range order {
		if strings.TrimSpace(values[k]) == "" {
			out = append(out, k)
		}
	}
	return out
}

// DispatchSummary is the result of a bulk dispatch run.
type DispatchSummary struct {
	Success    bool `json:"success"`
	SentCount  int  `json:"sentCount"`
	ErrorCount int  `json:"errorCount"`
	TotalUsers int  `json:"totalUsers"`
}

// Dispatcher relays trigger events to recipients through the Messenger and
// mirrors each delivered message into the in-app notification table.
//
// Sending and mirroring are independent: a failed insert never undoes a sent
// message, so a recipient can get a message without a mirrored row.
type Dispatcher struct {
	recipients    RecipientStore
	messenger     Messenger
	log           *zap.Logger
	metrics       *siteMetrics
	limiter       *rate.Limiter
	siteURL       string
	defaultLocale string
}

// NewDispatcher wires a Dispatcher.
func NewDispatcher(recipients RecipientStore, messenger Messenger, log *zap.Logger, siteURL, defaultLocale string) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		recipients:    recipients,
		messenger:     messenger,
		log:           log,
		siteURL:       strings.TrimSuffix(siteURL, "/"),
		defaultLocale: normalizeLocale(defaultLocale, LocaleEN),
	}
}

// SetRateLimit caps outgoing messages per second. Zero or less removes the cap.
func (d *Dispatcher) SetRateLimit(perSecond float64) {
	if perSecond <= 0 {
		d.limiter = nil
		return
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	d.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
}

func (d *Dispatcher) localeFor(r Recipient) string {
	return normalizeLocale(r.Language, d.defaultLocale)
}

// link builds a deep link into the site. Each segment is escaped as a single
// path element, so caller-supplied ids cannot climb out of their section.
func (d *Dispatcher) link(segments ...string) string {
	if d.siteURL == "" {
		return ""
	}
	escaped := make([]string, len(segments))
	for i, seg := range segments {
		if seg == "." || seg == ".." {
			escaped[i] = strings.Repeat("%2E", len(seg))
			continue
		}
		escaped[i] = url.PathEscape(seg)
	}
	return strings.TrimSuffix(d.siteURL, "/") + "/" + strings.Join(escaped, "/") + "/"
}

// deliver sends msg to r and, on success, inserts the mirrored notification.
func (d *Dispatcher) deliver(ctx context.Context, r Recipient, kind string, msg outgoing, data any) error {
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	if err := d.messenger.SendMessage(ctx, r.TelegramID, msg.HTML); err != nil {
		d.metrics.messageFailed(kind)
		return err
	}
	d.metrics.messageSent(kind)

	raw, err := json.Marshal(data)
	if err != nil {
		raw = []byte("{}")
	}
	if err := d.recipients.InsertNotification(ctx, Notification{
		UserID:  r.ID,
		Type:    kind,
		Title:   msg.Title,
		Message: msg.Plain,
		Data:    raw,
	}); err != nil {
		d.metrics.mirrorFailed(kind)
		d.log.Error("mirror notification failed",
			zap.String("type", kind), zap.String("user_id", r.ID), zap.Error(err))
	}
	return nil
}

// BroadcastEvent sends a new-event notification to every active recipient,
// one at a time. Individual failures are logged and counted.
func (d *Dispatcher) BroadcastEvent(ctx context.Context, ev EventPayload) (DispatchSummary, error) {
	recipients, err := d.recipients.ListActiveRecipients(ctx)
	if err != nil {
		return DispatchSummary{}, fmt.Errorf("load recipients: %w", err)
	}
	summary := DispatchSummary{Success: true}
	link := d.link("events", string(ev.EventID))
	for _, r := range recipients {
		if !r.Reachable() {
			continue
		}
		summary.TotalUsers++
		msg := eventMessage(d.localeFor(r), ev, link)
		if err := d.deliver(ctx, r, NotificationEvent, msg, ev); err != nil {
			summary.ErrorCount++
			d.log.Warn("event notification failed",
				zap.String("event_id", string(ev.EventID)), zap.String("user_id", r.ID), zap.Error(err))
			continue
		}
		summary.SentCount++
	}
	d.log.Info("event broadcast finished",
		zap.String("event_id", string(ev.EventID)),
		zap.Int("total", summary.TotalUsers),
		zap.Int("sent", summary.SentCount),
		zap.Int("errors", summary.ErrorCount))
	return summary, nil
}

func (d *Dispatcher) reachable(ctx context.Context, id string) (Recipient, error) {
	r, err := d.recipients.GetRecipient(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Recipient{}, ErrRecipientNotFound
		}
		return Recipient{}, fmt.Errorf("load recipient: %w", err)
	}
	if !r.Reachable() {
		return Recipient{}, ErrRecipientNotFound
	}
	return r, nil
}

// NotifyMatch tells one recipient about a new match.
func (d *Dispatcher) NotifyMatch(ctx context.Context, m MatchPayload) error {
	r, err := d.reachable(ctx, string(m.UserID))
	if err != nil {
		return err
	}
	link := d.link("matches")
	if m.MatchID != "" {
		link = d.link("matches", string(m.MatchID))
	}
	return d.deliver(ctx, r, NotificationMatch, matchMessage(d.localeFor(r), m, link), m)
}

// NotifyRole tells one recipient about a granted role.
func (d *Dispatcher) NotifyRole(ctx context.Context, p RolePayload) error {
	r, err := d.reachable(ctx, string(p.UserID))
	if err != nil {
		return err
	}
	return d.deliver(ctx, r, NotificationRole, roleMessage(d.localeFor(r), p, d.link("profile")), p)
}

// --- HTTP ---

// dispatchEndpoint wraps a dispatch handler with the shared contract: open
// CORS, empty 200 for OPTIONS, 405 for anything but POST, and the optional
// bearer secret.
func dispatchEndpoint(secret string, next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		h := c.Response().Header()
		h.Set(echo.HeaderAccessControlAllowOrigin, "*")
		h.Set(echo.HeaderAccessControlAllowMethods, "POST, OPTIONS")
		h.Set(echo.HeaderAccessControlAllowHeaders, "Content-Type, Authorization")
		switch c.Request().Method {
		case http.MethodOptions:
			return c.NoContent(http.StatusOK)
		case http.MethodPost:
		default:
			return echo.NewHTTPError(http.StatusMethodNotAllowed, "Method not allowed")
		}
		if secret != "" && !bearerMatches(c.Request().Header.Get(echo.HeaderAuthorization), secret) {
			return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
		}
		return next(c)
	}
}

// decodePayload reads a JSON body and rejects it when required fields are
// missing. A body that is not JSON is missing all of them.
func decodePayload[T interface{ missing() []string }](c echo.Context) (T, error) {
	var p T
	dec := json.NewDecoder(http.MaxBytesReader(c.Response(), c.Request().Body, 64<<10))
	if err := dec.Decode(&p); err != nil {
		var zero T
		p = zero
	}
	if missing := p.missing(); len(missing) > 0 {
		return p, echo.NewHTTPError(http.StatusBadRequest, "Missing required fields: "+strings.Join(missing, ", "))
	}
	return p, nil
}

// HandleNewEvent broadcasts a new event to every active recipient.
func (d *Dispatcher) HandleNewEvent(c echo.Context) error {
	ev, err := decodePayload[EventPayload](c)
	if err != nil {
		return err
	}
	// A started run finishes its recipient list even if the caller goes away.
	ctx := context.WithoutCancel(c.Request().Context())
	summary, err := d.BroadcastEvent(ctx, ev)
	if err != nil {
		d.log.Error("event broadcast failed", zap.String("event_id", string(ev.EventID)), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error").SetInternal(err)
	}
	return c.JSON(http.StatusOK, summary)
}

// HandleNewMatch notifies one recipient about a new match.
func (d *Dispatcher) HandleNewMatch(c echo.Context) error {
	m, err := decodePayload[MatchPayload](c)
	if err != nil {
		return err
	}
	return d.singleResult(c, "match", string(m.UserID), d.NotifyMatch(context.WithoutCancel(c.Request().Context()), m))
}

// HandleRoleGranted notifies one recipient about a granted role.
func (d *Dispatcher) HandleRoleGranted(c echo.Context) error {
	p, err := decodePayload[RolePayload](c)
	if err != nil {
		return err
	}
	return d.singleResult(c, "role", string(p.UserID), d.NotifyRole(context.WithoutCancel(c.Request().Context()), p))
}

func (d *Dispatcher) singleResult(c echo.Context, kind, userID string, err error) error {
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, map[string]bool{"success": true})
	case errors.Is(err, ErrRecipientNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Recipient not found")
	default:
		d.log.Error("notification failed", zap.String("type", kind), zap.String("user_id", userID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to send notification").SetInternal(err)
	}
}

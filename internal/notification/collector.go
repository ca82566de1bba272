package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cactuslab/cactus-client-go/internal/cerrors"
	"github.com/cactuslab/cactus-client-go/internal/resource"
	"github.com/cactuslab/cactus-client-go/internal/sep2"
	"github.com/cactuslab/cactus-client-go/internal/step"
	"github.com/cactuslab/cactus-client-go/internal/tracker"
)

type createEndpointResponse struct {
	EndpointID string `json:"endpoint_id"`
	WebhookURI string `json:"fully_qualified_webhook_uri"`
}

type collectedNotificationWire struct {
	Method      string            `json:"method"`
	Body        string            `json:"body"`
	Headers     map[string]string `json:"headers"`
	ContentType string            `json:"content_type"`
	ReceivedAt  string            `json:"received_at"`
	Remote      string            `json:"remote"`
}

type collectResponse struct {
	Notifications []collectedNotificationWire `json:"notifications"`
}

type updateEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// CollectedNotification is one push notification pulled off an
// endpoint, still in its raw XML form, along with the headers it
// arrived with.
type CollectedNotification struct {
	Endpoint    *Endpoint
	Raw         []byte
	ContentType string
	Remote      string
}

func (c *Context) do(ctx context.Context, s *step.Execution, kind, method, path string, body any) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, 0, cerrors.New(cerrors.NotificationKind, "notification.do", err)
		}
		reader = bytes.NewReader(encoded)
	}

	url := c.collectorBaseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, 0, cerrors.New(cerrors.NotificationKind, "notification.do", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	stepID := ""
	if s != nil && s.Step != nil {
		stepID = s.Step.ID
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.responses.LogNotification(tracker.NotificationRequest{
			StepID: stepID, ClientAlias: c.clientAlias, Kind: kind, URL: url, Err: err, At: time.Now(),
		})
		return nil, 0, cerrors.New(cerrors.NotificationKind, "notification.do", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.responses.LogNotification(tracker.NotificationRequest{
			StepID: stepID, ClientAlias: c.clientAlias, Kind: kind, URL: url, Err: err, At: time.Now(),
		})
		return nil, 0, cerrors.New(cerrors.NotificationKind, "notification.do", err)
	}

	c.responses.LogNotification(tracker.NotificationRequest{
		StepID: stepID, ClientAlias: c.clientAlias, Kind: kind, URL: url, At: time.Now(),
	})
	return respBody, resp.StatusCode, nil
}

// FetchWebhook returns the webhook uri subscribed against
// (resourceKind, resourceID) under alias, allocating a new collector
// endpoint if none exists yet.
func (c *Context) FetchWebhook(ctx context.Context, s *step.Execution, alias string, resourceKind sep2.Kind, resourceID resource.ID) (string, error) {
	for _, ep := range c.endpointsFor(alias) {
		if ep.ResourceKind == resourceKind && ep.ResourceID.Equal(resourceID) {
			return ep.URI, nil
		}
	}

	body, status, err := c.do(ctx, s, "create", http.MethodPost, "/endpoint-list", struct{}{})
	if err != nil {
		return "", err
	}
	if status < 200 || status >= 300 {
		return "", cerrors.Newf(cerrors.NotificationKind, "notification.FetchWebhook", "create endpoint: unexpected status %d", status)
	}
	var created createEndpointResponse
	if err := json.Unmarshal(body, &created); err != nil {
		return "", cerrors.New(cerrors.NotificationKind, "notification.FetchWebhook", fmt.Errorf("parse create response: %w", err))
	}

	c.addEndpoint(alias, &Endpoint{ID: created.EndpointID, URI: created.WebhookURI, ResourceKind: resourceKind, ResourceID: resourceID})
	return created.WebhookURI, nil
}

// Collect GETs every endpoint under alias and concatenates their
// notifications in endpoint order.
func (c *Context) Collect(ctx context.Context, s *step.Execution, alias string) ([]CollectedNotification, error) {
	endpoints := c.endpointsFor(alias)
	if len(endpoints) == 0 {
		return nil, cerrors.Newf(cerrors.NotificationKind, "notification.Collect", "alias %q has no endpoints", alias)
	}

	var out []CollectedNotification
	for _, ep := range endpoints {
		body, status, err := c.do(ctx, s, "collect", http.MethodGet, "/endpoint/"+ep.ID, nil)
		if err != nil {
			return nil, err
		}
		if status < 200 || status >= 300 {
			return nil, cerrors.Newf(cerrors.NotificationKind, "notification.Collect", "collect %s: unexpected status %d", ep.ID, status)
		}
		var parsed collectResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, cerrors.New(cerrors.NotificationKind, "notification.Collect", fmt.Errorf("parse collect response: %w", err))
		}
		for _, n := range parsed.Notifications {
			out = append(out, CollectedNotification{
				Endpoint:    ep,
				Raw:         []byte(n.Body),
				ContentType: notificationContentType(n),
				Remote:      n.Remote,
			})
		}
	}
	return out, nil
}

// notificationContentType prefers the wire struct's own content_type
// field, falling back to a case-insensitive lookup of the raw headers
// for collectors that only report it there.
func notificationContentType(n collectedNotificationWire) string {
	if n.ContentType != "" {
		return n.ContentType
	}
	for k, v := range n.Headers {
		if strings.EqualFold(k, "Content-Type") {
			return v
		}
	}
	return ""
}

// UpdateEnabled PUTs the enabled flag to every endpoint under alias.
func (c *Context) UpdateEnabled(ctx context.Context, s *step.Execution, alias string, enabled bool) error {
	for _, ep := range c.endpointsFor(alias) {
		_, status, err := c.do(ctx, s, "update", http.MethodPut, "/endpoint/"+ep.ID, updateEnabledRequest{Enabled: enabled})
		if err != nil {
			return err
		}
		if status < 200 || status >= 300 {
			return cerrors.Newf(cerrors.NotificationKind, "notification.UpdateEnabled", "update %s: unexpected status %d", ep.ID, status)
		}
	}
	return nil
}

// SafelyDeleteAll attempts to DELETE every endpoint this context has
// allocated across every alias, fanning the requests out concurrently
// since they are independent and shutdown should not serialize on
// round-trip latency. It never returns an error: failures are logged
// so that run shutdown always completes.
func (c *Context) SafelyDeleteAll(ctx context.Context) {
	g, gCtx := errgroup.WithContext(ctx)
	for _, ep := range c.allEndpoints() {
		ep := ep
		g.Go(func() error {
			_, status, err := c.do(gCtx, nil, "delete", http.MethodDelete, "/endpoint/"+ep.ID, nil)
			if err != nil {
				c.logger.Warn("delete endpoint failed", "endpoint", ep.ID, "error", err)
				return nil
			}
			if status < 200 || status >= 300 {
				c.logger.Warn("delete endpoint returned unexpected status", "endpoint", ep.ID, "status", status)
			}
			return nil
		})
	}
	_ = g.Wait()
}

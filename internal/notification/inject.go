package notification

import (
	"encoding/xml"
	"fmt"

	"github.com/cactuslab/cactus-client-go/internal/cerrors"
	"github.com/cactuslab/cactus-client-go/internal/sep2"
)

// subscriptionReceivedNamespace is the tag namespace a resource gets
// stamped with when it arrives via a DEFAULT-status notification,
// recording which subscription alias delivered it.
const subscriptionReceivedNamespace = "subscription-received"

// Inject parses one collected notification and, for a DEFAULT status,
// decodes and upserts the embedded resource into the store, tagging it
// with the delivering subscription alias. A cancellation status
// instead marks the subscription's side-channel and makes no store
// change. Mismatches between the envelope's declared subscribed
// resource and the endpoint it arrived on are logged as warnings, not
// failures.
func (c *Context) Inject(alias string, n CollectedNotification) error {
	var envelope sep2.Notification
	if err := xml.Unmarshal(n.Raw, &envelope); err != nil {
		return cerrors.New(cerrors.NotificationKind, "notification.Inject", fmt.Errorf("parse envelope: %w", err))
	}

	if n.Endpoint != nil && envelope.SubscribedResource != n.Endpoint.ResourceID.Href() {
		c.warnings.Log(fmt.Sprintf("notification subscribed-resource %q does not match endpoint resource %q", envelope.SubscribedResource, n.Endpoint.ResourceID.Href()), n.Endpoint)
	}
	if n.ContentType != "" && n.ContentType != sep2.MimeType {
		c.warnings.Log(fmt.Sprintf("notification content-type %q does not match %q", n.ContentType, sep2.MimeType), n.Endpoint)
	}

	switch envelope.Status {
	case sep2.NotificationStatusCancelled:
		c.markCancelled(envelope.SubscribedResource)
		return nil
	case sep2.NotificationStatusDefault:
		return c.injectResource(alias, envelope)
	default:
		c.warnings.Log(fmt.Sprintf("notification for %q has unrecognised status %d", envelope.SubscribedResource, envelope.Status), n.Endpoint)
		return nil
	}
}

func (c *Context) injectResource(alias string, envelope sep2.Notification) error {
	kind, ok := sep2.KindForXSIType(envelope.ResourceXSIType)
	if !ok {
		c.warnings.Log(fmt.Sprintf("notification embeds unsupported xsi:type %q", envelope.ResourceXSIType), alias)
		return nil
	}

	payload, items, err := sep2.DecodeResource(kind, envelope.ResourceXML)
	if err != nil {
		return cerrors.New(cerrors.NotificationKind, "notification.injectResource", fmt.Errorf("decode %s: %w", kind, err))
	}

	stored, err := c.store.Upsert(kind, nil, payload)
	if err != nil {
		return cerrors.New(cerrors.NotificationKind, "notification.injectResource", err)
	}
	c.store.AddTag(stored.ID, subscriptionReceivedNamespace, alias)

	if len(items) > 0 {
		itemKind := sep2.ItemKindOf(kind)
		for _, item := range items {
			if _, err := c.store.AppendListItem(itemKind, stored.ID, item, kind); err != nil {
				return cerrors.New(cerrors.NotificationKind, "notification.injectResource", err)
			}
		}
	}
	return nil
}

package action

import (
	"context"

	"github.com/cactuslab/cactus-client-go/internal/cerrors"
	"github.com/cactuslab/cactus-client-go/internal/resource"
	"github.com/cactuslab/cactus-client-go/internal/sep2"
	"github.com/cactuslab/cactus-client-go/internal/step"
)

const (
	subscriptionEncodingXML = 0
	subscriptionLevelS1     = "+S1"
	subscriptionLimit       = 100
)

// CreateSubscription allocates a webhook per currently-stored resource
// of the target kind and submits a Subscription for each, all recorded
// under alias.
func CreateSubscription(ctx context.Context, ac *Context, s *step.Execution, params map[string]any) (Result, error) {
	alias := stringParam(params, "sub-id", "")
	targetKind := sep2.Kind(stringParam(params, "kind", ""))

	lists := ac.Store.GetByKind(sep2.KindSubscriptionList)
	if len(lists) != 1 {
		return Failed("expected exactly one discovered SubscriptionList, found %d", len(lists)), nil
	}
	list := lists[0]

	targets := ac.Store.GetByKind(targetKind)
	if len(targets) == 0 {
		return Failed("no stored resources of kind %s to subscribe to", targetKind), nil
	}

	for _, target := range targets {
		href := target.ID.Href()
		if href == "" {
			continue
		}

		uri, err := ac.Notifications.FetchWebhook(ctx, s, alias, targetKind, target.ID)
		if err != nil {
			return Failed("create-subscription: %v", err), nil
		}

		payload := sep2.Subscription{
			Encoding:           subscriptionEncodingXML,
			Level:              subscriptionLevelS1,
			Limit:              subscriptionLimit,
			NotificationURI:    uri,
			SubscribedResource: href,
		}

		var refetched sep2.Subscription
		result, err := ac.Client.SubmitAndRefetch(ctx, s, "POST", list.ID.Href(), payload, &refetched, false)
		if err != nil {
			return Failed("create-subscription: %v", err), nil
		}
		if result.Warning != "" {
			ac.Warnings.Log(result.Warning, s)
		}

		stored, err := ac.Store.Upsert(sep2.KindSubscription, list.ID, refetched)
		if err != nil {
			return Result{}, cerrors.New(cerrors.UnhandledKind, "action.CreateSubscription", err)
		}
		ac.Store.SetAlias(stored.ID, alias)
	}
	return Done("subscriptions created"), nil
}

// DeleteSubscription deletes every Subscription annotated with alias,
// both server-side and from the store.
func DeleteSubscription(ctx context.Context, ac *Context, s *step.Execution, params map[string]any) (Result, error) {
	alias := stringParam(params, "sub-id", "")

	var matches []*resource.Stored
	for _, stored := range ac.Store.GetByKind(sep2.KindSubscription) {
		if a, ok := ac.Store.Alias(stored.ID); ok && a == alias {
			matches = append(matches, stored)
		}
	}
	if len(matches) == 0 {
		return Failed("no Subscription annotated %q", alias), nil
	}

	for _, stored := range matches {
		if err := ac.Client.DeleteAndCheck(ctx, s, stored.ID.Href()); err != nil {
			return Failed("delete-subscription: %v", err), nil
		}
		ac.Store.Delete(stored.ID)
	}
	return Done("subscriptions deleted"), nil
}

// Notifications optionally collects and injects pending notifications
// for alias, and optionally enables/disables its endpoints.
func Notifications(ctx context.Context, ac *Context, s *step.Execution, params map[string]any) (Result, error) {
	alias := stringParam(params, "sub-id", "")
	collect := boolParam(params, "collect")
	_, hasDisable := params["disable"]
	disable := boolParam(params, "disable")

	if collect {
		collected, err := ac.Notifications.Collect(ctx, s, alias)
		if err != nil {
			return Failed("notifications: %v", err), nil
		}
		for _, n := range collected {
			if err := ac.Notifications.Inject(alias, n); err != nil {
				return Failed("notifications: inject: %v", err), nil
			}
		}
	}

	if hasDisable {
		if err := ac.Notifications.UpdateEnabled(ctx, s, alias, !disable); err != nil {
			return Failed("notifications: %v", err), nil
		}
	}

	return Done("notifications processed"), nil
}

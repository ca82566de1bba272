// Package discovery walks the static parent tree from DeviceCapability
// down to a set of target kinds, refreshing list kinds by full
// page-by-page replacement and singleton kinds by plain GET+upsert,
// and silently skipping any branch whose parent link is absent.
package discovery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cactuslab/cactus-client-go/internal/cerrors"
	"github.com/cactuslab/cactus-client-go/internal/protocol"
	"github.com/cactuslab/cactus-client-go/internal/resource"
	"github.com/cactuslab/cactus-client-go/internal/sep2"
	"github.com/cactuslab/cactus-client-go/internal/step"
	"github.com/cactuslab/cactus-client-go/internal/tracker"
)

// DefaultPageSize is used when a Walker is built with pageSize <= 0.
const DefaultPageSize = 50

// Walker traverses one client's resource tree into its Store.
type Walker struct {
	client    *protocol.Client
	store     *resource.Store
	warnings  *tracker.WarningTracker
	logger    *slog.Logger
	pageSize  int
}

// NewWalker builds a Walker for one client's protocol.Client and
// resource.Store pair.
func NewWalker(client *protocol.Client, store *resource.Store, warnings *tracker.WarningTracker, logger *slog.Logger, pageSize int) *Walker {
	if logger == nil {
		logger = slog.Default()
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Walker{client: client, store: store, warnings: warnings, logger: logger.With("component", "discovery"), pageSize: pageSize}
}

// Walk fetches rootHref as DeviceCapability, then walks down to every
// ancestor of every target kind. Branches whose parent link is missing
// on the server are skipped without error.
func (w *Walker) Walk(ctx context.Context, s *step.Execution, rootHref string, targets []sep2.Kind) error {
	plan := resource.WalkPlan(targets)

	for _, kind := range plan {
		if kind == sep2.KindDeviceCapability {
			if err := w.fetchRoot(ctx, s, rootHref); err != nil {
				return err
			}
			continue
		}

		parentKind, ok := sep2.ParentKind(kind)
		if !ok {
			continue
		}

		for _, parent := range w.store.GetByKind(parentKind) {
			href, ok := parent.ChildLinks[kind]
			if !ok || href == "" {
				continue
			}

			var err error
			if sep2.IsListKind(kind) {
				err = w.refreshList(ctx, s, kind, parent.ID, href)
			} else {
				err = w.refreshSingleton(ctx, s, kind, parent.ID, href)
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *Walker) fetchRoot(ctx context.Context, s *step.Execution, rootHref string) error {
	var dcap sep2.DeviceCapability
	if err := w.client.Get(ctx, s, rootHref, &dcap); err != nil {
		return err
	}
	if _, err := w.store.Upsert(sep2.KindDeviceCapability, nil, dcap); err != nil {
		return cerrors.New(cerrors.UnhandledKind, "discovery.fetchRoot", err)
	}
	return nil
}

func (w *Walker) refreshSingleton(ctx context.Context, s *step.Execution, kind sep2.Kind, parent resource.ID, href string) error {
	_, body, err := w.client.Request(ctx, s, href, "GET", nil)
	if err != nil {
		return err
	}
	payload, _, err := sep2.DecodeResource(kind, body)
	if err != nil {
		return cerrors.New(cerrors.RequestKind, "discovery.refreshSingleton", fmt.Errorf("decode %s at %s: %w", kind, href, err))
	}
	if _, err := w.store.Upsert(kind, parent, payload); err != nil {
		return cerrors.New(cerrors.UnhandledKind, "discovery.refreshSingleton", err)
	}
	return nil
}

// refreshList fetches every page of the list at href, then atomically
// replaces the prior contents: every existing item of its item-kind
// under the list is cleared, the list container is upserted and the
// fetched items are re-appended, so a shrinking server-side list never
// leaves stale items behind.
func (w *Walker) refreshList(ctx context.Context, s *step.Execution, kind sep2.Kind, parent resource.ID, href string) error {
	itemKind := sep2.ItemKindOf(kind)

	offset := 0
	priorAll := -1
	var container any
	var items []any

	for page := 0; page < protocol.DefaultMaxPages; page++ {
		pageHref := href + protocol.PageQuery(offset, w.pageSize, nil)
		_, body, err := w.client.Request(ctx, s, pageHref, "GET", nil)
		if err != nil {
			return err
		}

		pageContainer, pageItems, err := sep2.DecodeResource(kind, body)
		if err != nil {
			return cerrors.New(cerrors.RequestKind, "discovery.refreshList", fmt.Errorf("decode %s at %s: %w", kind, pageHref, err))
		}
		if container == nil {
			container = pageContainer
		}

		all, results := listAttrs(pageContainer)
		if results != len(pageItems) {
			w.warnings.Log(fmt.Sprintf("%s: results attribute %d does not match %d returned items", pageHref, results, len(pageItems)), s)
		}
		if priorAll >= 0 && priorAll != all {
			w.warnings.Log(fmt.Sprintf("%s: all attribute changed from %d to %d across pages", pageHref, priorAll, all), s)
		}
		priorAll = all

		if len(pageItems) == 0 {
			break
		}
		items = append(items, pageItems...)
		offset += len(pageItems)

		if page == protocol.DefaultMaxPages-1 {
			return cerrors.Newf(cerrors.RequestKind, "discovery.refreshList", "%s: exceeded %d pages without a terminating empty page", href, protocol.DefaultMaxPages)
		}
	}

	listID := resource.NewID(href, parent)
	w.store.ClearChildrenOf(itemKind, listID)

	listStored, err := w.store.Upsert(kind, parent, container)
	if err != nil {
		return cerrors.New(cerrors.UnhandledKind, "discovery.refreshList", err)
	}
	for _, item := range items {
		if _, err := w.store.AppendListItem(itemKind, listStored.ID, item, kind); err != nil {
			return cerrors.New(cerrors.UnhandledKind, "discovery.refreshList", err)
		}
	}
	return nil
}

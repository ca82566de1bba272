package action

import (
	"context"
	"strings"

	"github.com/cactuslab/cactus-client-go/internal/cerrors"
	"github.com/cactuslab/cactus-client-go/internal/resource"
	"github.com/cactuslab/cactus-client-go/internal/sep2"
	"github.com/cactuslab/cactus-client-go/internal/step"
)

// NoOp always completes.
func NoOp(ctx context.Context, ac *Context, s *step.Execution, params map[string]any) (Result, error) {
	return Result{Completed: true}, nil
}

// Wait completes once the wall clock has advanced by the requested
// duration, measured from this step's first attempt.
func Wait(ctx context.Context, ac *Context, s *step.Execution, params map[string]any) (Result, error) {
	duration := durationParam(params, "duration")
	now := ac.now()
	deadline := ac.waitDeadline(s.Step.ID, duration, now)
	if now.Before(deadline) {
		return Failed("waiting until %s", deadline), nil
	}
	return Done("wait elapsed"), nil
}

// Forget clears every named kind from the store.
func Forget(ctx context.Context, ac *Context, s *step.Execution, params map[string]any) (Result, error) {
	for _, k := range stringSliceParam(params, "kinds") {
		ac.Store.ClearKind(sep2.Kind(k))
	}
	return Done("forgot kinds"), nil
}

// Discovery invokes the discovery walker over the requested target
// kinds.
func Discovery(ctx context.Context, ac *Context, s *step.Execution, params map[string]any) (Result, error) {
	var targets []sep2.Kind
	for _, k := range stringSliceParam(params, "targets") {
		targets = append(targets, sep2.Kind(k))
	}
	if err := ac.Walker.Walk(ctx, s, ac.RootHref, targets); err != nil {
		return Failed("discovery failed: %v", err), nil
	}
	return Done("discovery complete"), nil
}

// RefreshResource re-fetches every stored resource of the named kind,
// or (when expectRejection/expectRejectionOrEmpty is set) asserts that
// the server now rejects or empties it.
func RefreshResource(ctx context.Context, ac *Context, s *step.Execution, params map[string]any) (Result, error) {
	kind := sep2.Kind(stringParam(params, "kind", ""))
	expectRejection := boolParam(params, "expect-rejection")
	expectRejectionOrEmpty := boolParam(params, "expect-rejection-or-empty")

	for _, stored := range ac.Store.GetByKind(kind) {
		href := stored.ID.Href()
		if href == "" {
			continue
		}

		switch {
		case expectRejectionOrEmpty && sep2.IsListKind(kind):
			if _, err := ac.Client.ClientErrorOrEmptyList(ctx, s, href, "GET", nil, listAttrsParser(kind)); err != nil {
				return Failed("refresh-resource %s: %v", href, err), nil
			}
		case expectRejection, expectRejectionOrEmpty:
			if _, err := ac.Client.ClientErrorRequest(ctx, s, href, "GET", nil); err != nil {
				return Failed("refresh-resource %s: %v", href, err), nil
			}
		default:
			payload, _, err := fetchAndDecode(ctx, ac, s, kind, href)
			if err != nil {
				return Failed("refresh-resource %s: %v", href, err), nil
			}
			if _, err := ac.Store.Upsert(kind, stored.ID.Parent(), payload); err != nil {
				return Result{}, cerrors.New(cerrors.UnhandledKind, "action.RefreshResource", err)
			}
		}
	}
	return Done("refreshed " + string(kind)), nil
}

// InsertEndDevice constructs this client's EndDevice payload from its
// configuration and submits it to the single discovered end-device
// list.
func InsertEndDevice(ctx context.Context, ac *Context, s *step.Execution, params map[string]any) (Result, error) {
	forceLFDI := stringParam(params, "force-lfdi", "")
	expectRejection := boolParam(params, "expect-rejection")

	lfdi := ac.ClientConfig.LFDI
	if forceLFDI != "" {
		lfdi = forceLFDI
	}
	sfdi, err := lfdiToSFDI(lfdi)
	if err != nil {
		return Result{}, cerrors.New(cerrors.TestDefinitionKind, "action.InsertEndDevice", err)
	}

	device := sep2.EndDevice{
		LFDI:           lfdi,
		SFDI:           sfdi,
		DeviceCategory: deviceCategoryPhotovoltaic,
		PostRate:       defaultPostRateSeconds,
	}

	lists := ac.Store.GetByKind(sep2.KindEndDeviceList)
	if len(lists) != 1 {
		return Failed("expected exactly one discovered EndDeviceList, found %d", len(lists)), nil
	}
	list := lists[0]

	if expectRejection {
		body, err := marshalXML(device)
		if err != nil {
			return Result{}, cerrors.New(cerrors.UnhandledKind, "action.InsertEndDevice", err)
		}
		if _, err := ac.Client.ClientErrorRequest(ctx, s, list.ID.Href(), "POST", body); err != nil {
			return Failed("insert-end-device: %v", err), nil
		}
		return Done("end device rejected as expected"), nil
	}

	var refetched sep2.EndDevice
	submitResult, err := ac.Client.SubmitAndRefetch(ctx, s, "POST", list.ID.Href(), device, &refetched, false)
	if err != nil {
		return Failed("insert-end-device: %v", err), nil
	}
	if submitResult.Warning != "" {
		ac.Warnings.Log(submitResult.Warning, s)
	}
	if _, err := ac.Store.Upsert(sep2.KindEndDevice, list.ID, refetched); err != nil {
		return Result{}, cerrors.New(cerrors.UnhandledKind, "action.InsertEndDevice", err)
	}
	return Done("end device inserted"), nil
}

// UpsertConnectionPoint PUTs the connection point id to this client's
// EndDevice, located by caseless LFDI match.
func UpsertConnectionPoint(ctx context.Context, ac *Context, s *step.Execution, params map[string]any) (Result, error) {
	connectionPointID := stringParam(params, "connection-point-id", "")
	expectRejection := boolParam(params, "expect-rejection")

	device, ok := findEndDeviceByLFDI(ac, ac.ClientConfig.LFDI)
	if !ok {
		return Failed("no discovered EndDevice matches this client's LFDI"), nil
	}
	href, ok := device.ChildLinks[sep2.KindConnectionPoint]
	if !ok {
		return Failed("EndDevice has no ConnectionPoint link"), nil
	}

	payload := sep2.ConnectionPoint{ID: connectionPointID}

	if expectRejection {
		body, err := marshalXML(payload)
		if err != nil {
			return Result{}, cerrors.New(cerrors.UnhandledKind, "action.UpsertConnectionPoint", err)
		}
		if _, err := ac.Client.ClientErrorRequest(ctx, s, href, "PUT", body); err != nil {
			return Failed("upsert-connection-point: %v", err), nil
		}
		return Done("connection point rejected as expected"), nil
	}

	var refetched sep2.ConnectionPoint
	result, err := ac.Client.SubmitAndRefetch(ctx, s, "PUT", href, payload, &refetched, false)
	if err != nil {
		return Failed("upsert-connection-point: %v", err), nil
	}
	if !strings.EqualFold(refetched.ID, connectionPointID) {
		ac.Warnings.Log("connection point id did not round-trip exactly", s)
	}
	if result.Warning != "" {
		ac.Warnings.Log(result.Warning, s)
	}
	if _, err := ac.Store.Upsert(sep2.KindConnectionPoint, device.ID, refetched); err != nil {
		return Result{}, cerrors.New(cerrors.UnhandledKind, "action.UpsertConnectionPoint", err)
	}
	return Done("connection point upserted"), nil
}

const (
	deviceCategoryPhotovoltaic = "photovoltaic"
	defaultPostRateSeconds     = 60
)

func findEndDeviceByLFDI(ac *Context, lfdi string) (*resource.Stored, bool) {
	for _, stored := range ac.Store.GetByKind(sep2.KindEndDevice) {
		device, ok := stored.Payload.(sep2.EndDevice)
		if !ok {
			continue
		}
		if strings.EqualFold(device.LFDI, lfdi) {
			return stored, true
		}
	}
	return nil, false
}

package action

import (
	"context"
	"strings"
	"time"

	"github.com/cactuslab/cactus-client-go/internal/cerrors"
	"github.com/cactuslab/cactus-client-go/internal/resource"
	"github.com/cactuslab/cactus-client-go/internal/sep2"
	"github.com/cactuslab/cactus-client-go/internal/sep2util"
	"github.com/cactuslab/cactus-client-go/internal/step"
)

const responsesNamespace = "responses"

// Response tag names recorded under responsesNamespace.
const (
	tagEventReceived   = "RECEIVED"
	tagEventStarted    = "STARTED"
	tagEventCompleted  = "COMPLETED"
	tagEventCancelled  = "CANCELLED"
	tagEventSuperseded = "SUPERSEDED"
)

// nextResponse computes the next DERControl response code to send, or
// false if none is due, following the per-event response state
// machine: RECEIVED once, then STARTED/COMPLETED/CANCELLED/SUPERSEDED
// as the event's status and tags dictate.
func nextResponse(eventStatus sep2.EventStatus, tags map[string]bool, interval sep2.DateTimeInterval, now int64) (sep2.ResponseStatus, bool) {
	if tags[tagEventCancelled] || tags[tagEventSuperseded] {
		return 0, false
	}
	switch eventStatus {
	case sep2.EventStatusCancelled, sep2.EventStatusCancelledWithRandomize:
		return sep2.ResponseStatusEventCancelled, true
	case sep2.EventStatusSuperseded:
		return sep2.ResponseStatusEventSuperseded, true
	case sep2.EventStatusScheduled:
		if !tags[tagEventReceived] {
			return sep2.ResponseStatusEventReceived, true
		}
		return 0, false
	case sep2.EventStatusActive:
		if !tags[tagEventReceived] {
			return sep2.ResponseStatusEventReceived, true
		}
		if now >= interval.Start && !tags[tagEventStarted] {
			return sep2.ResponseStatusEventStarted, true
		}
		if now >= interval.Start+interval.Duration && !tags[tagEventCompleted] {
			return sep2.ResponseStatusEventCompleted, true
		}
		return 0, false
	default:
		return 0, false
	}
}

func responseTagFor(status sep2.ResponseStatus) string {
	switch status {
	case sep2.ResponseStatusEventReceived:
		return tagEventReceived
	case sep2.ResponseStatusEventStarted:
		return tagEventStarted
	case sep2.ResponseStatusEventCompleted:
		return tagEventCompleted
	case sep2.ResponseStatusEventCancelled:
		return tagEventCancelled
	case sep2.ResponseStatusEventSuperseded:
		return tagEventSuperseded
	default:
		return ""
	}
}

// RespondDERControls enumerates every stored DERControl, computes its
// next due response, and posts it to the control's replyTo.
func RespondDERControls(ctx context.Context, ac *Context, s *step.Execution, params map[string]any) (Result, error) {
	now := ac.now().Unix()

	for _, stored := range ac.Store.GetByKind(sep2.KindDERControl) {
		derc, ok := stored.Payload.(sep2.DERControl)
		if !ok {
			continue
		}
		hasReplyTo := derc.ReplyTo != ""
		hasResponseRequired := derc.ResponseRequired != ""
		if !hasReplyTo && !hasResponseRequired {
			continue
		}
		if hasReplyTo != hasResponseRequired {
			ac.Warnings.Log("DERControl "+derc.MRID+" has exactly one of replyTo/responseRequired set", s)
			continue
		}

		tags := ac.Store.Tags(stored.ID, responsesNamespace)
		status, due := nextResponse(derc.EventStatus.CurrentStatus, tags, derc.Interval, now)
		if !due {
			continue
		}

		device, ok := ac.Store.GetAncestorOf(sep2.KindEndDevice, stored.ID)
		if !ok {
			ac.Warnings.Log("DERControl "+derc.MRID+" has no discoverable parent EndDevice, skipping response", s)
			continue
		}
		endDevice, ok := device.Payload.(sep2.EndDevice)
		if !ok || endDevice.LFDI == "" {
			ac.Warnings.Log("DERControl "+derc.MRID+" parent EndDevice is missing its LFDI, skipping response", s)
			continue
		}

		payload := sep2.Response{
			EndDeviceLFDI:   endDevice.LFDI,
			Status:          int(status),
			CreatedDateTime: now,
			Subject:         derc.MRID,
		}
		var refetched sep2.Response
		if _, err := ac.Client.SubmitAndRefetch(ctx, s, "POST", derc.ReplyTo, payload, &refetched, true); err != nil {
			return Failed("respond-der-controls: %v", err), nil
		}
		ac.Store.AddTag(stored.ID, responsesNamespace, responseTagFor(status))
	}
	return Done("der controls responded"), nil
}

// malformedLFDIValue, malformedMRIDValue and malformedStatus are the
// fixed substitution values for send-malformed-response's flags.
const (
	malformedLFDIValue = 999999
	malformedMRIDValue = "0xFFFFFFFF"
	malformedStatus    = "15"
)

// SendMalformedResponse builds a valid Response for the most recently
// stored DERControl carrying a replyTo, corrupts it per the requested
// flags, and POSTs it expecting a 4xx.
func SendMalformedResponse(ctx context.Context, ac *Context, s *step.Execution, params map[string]any) (Result, error) {
	mridUnknown := boolParam(params, "mrid-unknown")
	lfdiUnknown := boolParam(params, "lfdi-unknown")
	responseInvalid := boolParam(params, "response-invalid")
	if !mridUnknown && !lfdiUnknown && !responseInvalid {
		return Result{}, cerrors.Newf(cerrors.TestDefinitionKind, "action.SendMalformedResponse", "at least one of mrid-unknown/lfdi-unknown/response-invalid must be set")
	}

	var latestID resource.ID
	var latest sep2.DERControl
	var latestAt time.Time
	found := false
	for _, stored := range ac.Store.GetByKind(sep2.KindDERControl) {
		derc, ok := stored.Payload.(sep2.DERControl)
		if !ok || derc.ReplyTo == "" {
			continue
		}
		if !found || stored.CreatedAt.After(latestAt) {
			latestID, latest, latestAt, found = stored.ID, derc, stored.CreatedAt, true
		}
	}
	if !found {
		return Failed("no stored DERControl carries a replyTo"), nil
	}

	lfdi := ""
	if device, ok := ac.Store.GetAncestorOf(sep2.KindEndDevice, latestID); ok {
		if ed, ok := device.Payload.(sep2.EndDevice); ok {
			lfdi = ed.LFDI
		}
	}
	if lfdiUnknown {
		lfdi = sep2util.ToHexBinary(malformedLFDIValue)
	}
	mrid := latest.MRID
	if mridUnknown {
		mrid = malformedMRIDValue
	}

	payload := sep2.Response{
		EndDeviceLFDI:   lfdi,
		Status:          int(sep2.ResponseStatusEventReceived),
		CreatedDateTime: ac.now().Unix(),
		Subject:         mrid,
	}
	body, err := marshalXML(payload)
	if err != nil {
		return Result{}, cerrors.New(cerrors.UnhandledKind, "action.SendMalformedResponse", err)
	}
	if responseInvalid {
		body = rewriteStatusElement(body, malformedStatus)
	}

	if _, err := ac.Client.ClientErrorRequest(ctx, s, latest.ReplyTo, "POST", body); err != nil {
		return Failed("send-malformed-response: %v", err), nil
	}
	return Done("malformed response rejected as expected"), nil
}

// rewriteStatusElement replaces the contents of the first <status>
// element in body with value, leaving the rest of the document as-is.
func rewriteStatusElement(body []byte, value string) []byte {
	open := "<status>"
	closeTag := "</status>"
	start := strings.Index(string(body), open)
	if start < 0 {
		return body
	}
	rest := string(body[start+len(open):])
	end := strings.Index(rest, closeTag)
	if end < 0 {
		return body
	}
	var out []byte
	out = append(out, body[:start+len(open)]...)
	out = append(out, []byte(value)...)
	out = append(out, body[start+len(open)+end:]...)
	return out
}

// findDERByLink locates this client's DER unit by walking down from
// its EndDevice (caseless LFDI match), used by the upsert-der-*
// actions to resolve the capability/settings/status link to PUT.
func findDERByLink(ac *Context, lfdi string) (*resource.Stored, bool) {
	device, ok := findEndDeviceByLFDI(ac, lfdi)
	if !ok {
		return nil, false
	}
	ders := ac.Store.GetDescendantsOf(sep2.KindDER, device.ID)
	if len(ders) == 0 {
		return nil, false
	}
	return ders[0], true
}

// UpsertDERCapability PUTs rtg-max-w to this client's DER's capability
// link.
func UpsertDERCapability(ctx context.Context, ac *Context, s *step.Execution, params map[string]any) (Result, error) {
	der, ok := findDERByLink(ac, ac.ClientConfig.LFDI)
	if !ok {
		return Failed("no discovered DER for this client"), nil
	}
	href, ok := der.ChildLinks[sep2.KindDERCapability]
	if !ok {
		return Failed("DER has no DERCapabilityLink"), nil
	}
	payload := sep2.DERCapability{RtgMaxW: int64(intParam(params, "rtg-max-w", 0))}
	var refetched sep2.DERCapability
	result, err := ac.Client.SubmitAndRefetch(ctx, s, "PUT", href, payload, &refetched, false)
	if err != nil {
		return Failed("upsert-der-capability: %v", err), nil
	}
	if result.Warning != "" {
		ac.Warnings.Log(result.Warning, s)
	}
	if _, err := ac.Store.Upsert(sep2.KindDERCapability, der.ID, refetched); err != nil {
		return Result{}, cerrors.New(cerrors.UnhandledKind, "action.UpsertDERCapability", err)
	}
	return Done("der capability upserted"), nil
}

// UpsertDERSettings PUTs set-max-w to this client's DER's settings
// link.
func UpsertDERSettings(ctx context.Context, ac *Context, s *step.Execution, params map[string]any) (Result, error) {
	der, ok := findDERByLink(ac, ac.ClientConfig.LFDI)
	if !ok {
		return Failed("no discovered DER for this client"), nil
	}
	href, ok := der.ChildLinks[sep2.KindDERSettings]
	if !ok {
		return Failed("DER has no DERSettingsLink"), nil
	}
	payload := sep2.DERSettings{SetMaxW: int64(intParam(params, "set-max-w", 0))}
	var refetched sep2.DERSettings
	result, err := ac.Client.SubmitAndRefetch(ctx, s, "PUT", href, payload, &refetched, false)
	if err != nil {
		return Failed("upsert-der-settings: %v", err), nil
	}
	if result.Warning != "" {
		ac.Warnings.Log(result.Warning, s)
	}
	if _, err := ac.Store.Upsert(sep2.KindDERSettings, der.ID, refetched); err != nil {
		return Result{}, cerrors.New(cerrors.UnhandledKind, "action.UpsertDERSettings", err)
	}
	return Done("der settings upserted"), nil
}

// UpsertDERStatus PUTs gen-connect-status to this client's DER's
// status link.
func UpsertDERStatus(ctx context.Context, ac *Context, s *step.Execution, params map[string]any) (Result, error) {
	der, ok := findDERByLink(ac, ac.ClientConfig.LFDI)
	if !ok {
		return Failed("no discovered DER for this client"), nil
	}
	href, ok := der.ChildLinks[sep2.KindDERStatus]
	if !ok {
		return Failed("DER has no DERStatusLink"), nil
	}
	payload := sep2.DERStatus{GenConnectStatus: intParam(params, "gen-connect-status", 0)}
	var refetched sep2.DERStatus
	result, err := ac.Client.SubmitAndRefetch(ctx, s, "PUT", href, payload, &refetched, false)
	if err != nil {
		return Failed("upsert-der-status: %v", err), nil
	}
	if result.Warning != "" {
		ac.Warnings.Log(result.Warning, s)
	}
	if _, err := ac.Store.Upsert(sep2.KindDERStatus, der.ID, refetched); err != nil {
		return Result{}, cerrors.New(cerrors.UnhandledKind, "action.UpsertDERStatus", err)
	}
	return Done("der status upserted"), nil
}

// SendMalformedDERSettings PUTs a DERSettings payload whose setMaxW
// element is rewritten to a non-numeric literal, expecting a 4xx.
func SendMalformedDERSettings(ctx context.Context, ac *Context, s *step.Execution, params map[string]any) (Result, error) {
	der, ok := findDERByLink(ac, ac.ClientConfig.LFDI)
	if !ok {
		return Failed("no discovered DER for this client"), nil
	}
	href, ok := der.ChildLinks[sep2.KindDERSettings]
	if !ok {
		return Failed("DER has no DERSettingsLink"), nil
	}
	payload := sep2.DERSettings{SetMaxW: int64(intParam(params, "set-max-w", 0))}
	body, err := marshalXML(payload)
	if err != nil {
		return Result{}, cerrors.New(cerrors.UnhandledKind, "action.SendMalformedDERSettings", err)
	}
	body = rewriteSetMaxWElement(body)
	if _, err := ac.Client.ClientErrorRequest(ctx, s, href, "PUT", body); err != nil {
		return Failed("send-malformed-der-settings: %v", err), nil
	}
	return Done("malformed der settings rejected as expected"), nil
}

func rewriteSetMaxWElement(body []byte) []byte {
	open := "<setMaxW>"
	closeTag := "</setMaxW>"
	start := strings.Index(string(body), open)
	if start < 0 {
		return body
	}
	rest := string(body[start+len(open):])
	end := strings.Index(rest, closeTag)
	if end < 0 {
		return body
	}
	var out []byte
	out = append(out, body[:start+len(open)]...)
	out = append(out, []byte("not-a-number")...)
	out = append(out, body[start+len(open)+end:]...)
	return out
}

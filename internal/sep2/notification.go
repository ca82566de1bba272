package sep2

import "encoding/xml"

// subscribableKinds is the closed lookup table from a Notification's
// xsi:type attribute to the resource kind it decodes as. Only resource
// kinds the server can actually subscribe a client to appear here.
var subscribableKinds = map[string]Kind{
	"EndDevice":            KindEndDevice,
	"EndDeviceList":        KindEndDeviceList,
	"DER":                  KindDER,
	"DERList":              KindDERList,
	"DERControl":           KindDERControl,
	"DERControlList":       KindDERControlList,
	"DERProgram":           KindDERProgram,
	"DefaultDERControl":    KindDefaultDERControl,
	"FunctionSetAssignments": KindFunctionSetAssignments,
	"Subscription":         KindSubscription,
	"MirrorUsagePoint":     KindMirrorUsagePoint,
}

// KindForXSIType resolves a Notification's embedded xsi:type to a
// resource Kind. ok is false for any xsi:type outside the
// subscribable set.
func KindForXSIType(xsiType string) (Kind, bool) {
	k, ok := subscribableKinds[xsiType]
	return k, ok
}

// DecodeResource unmarshals raw XML for kind into the matching typed
// payload. Returns the payload and, when kind is itself a list kind,
// the hrefs/payloads of each contained item (so callers can upsert
// both the list and every item). Covers every resource kind but
// DeviceCapability and Notification, which the discovery
// walker and notification decoder handle directly.
func DecodeResource(kind Kind, raw []byte) (any, []any, error) {
	switch kind {
	case KindTime:
		var v Time
		if err := xml.Unmarshal(raw, &v); err != nil {
			return nil, nil, err
		}
		return v, nil, nil
	case KindConnectionPoint:
		var v ConnectionPoint
		if err := xml.Unmarshal(raw, &v); err != nil {
			return nil, nil, err
		}
		return v, nil, nil
	case KindRegistration:
		var v Registration
		if err := xml.Unmarshal(raw, &v); err != nil {
			return nil, nil, err
		}
		return v, nil, nil
	case KindSubscriptionList:
		var v SubscriptionList
		if err := xml.Unmarshal(raw, &v); err != nil {
			return nil, nil, err
		}
		items := make([]any, 0, len(v.Subscriptions))
		for _, i := range v.Subscriptions {
			items = append(items, i)
		}
		return v, items, nil
	case KindFunctionSetAssignmentsList:
		var v FunctionSetAssignmentsList
		if err := xml.Unmarshal(raw, &v); err != nil {
			return nil, nil, err
		}
		items := make([]any, 0, len(v.FunctionSetAssignments))
		for _, i := range v.FunctionSetAssignments {
			items = append(items, i)
		}
		return v, items, nil
	case KindDERProgramList:
		var v DERProgramList
		if err := xml.Unmarshal(raw, &v); err != nil {
			return nil, nil, err
		}
		items := make([]any, 0, len(v.DERPrograms))
		for _, i := range v.DERPrograms {
			items = append(items, i)
		}
		return v, items, nil
	case KindDERCapability:
		var v DERCapability
		if err := xml.Unmarshal(raw, &v); err != nil {
			return nil, nil, err
		}
		return v, nil, nil
	case KindDERSettings:
		var v DERSettings
		if err := xml.Unmarshal(raw, &v); err != nil {
			return nil, nil, err
		}
		return v, nil, nil
	case KindDERStatus:
		var v DERStatus
		if err := xml.Unmarshal(raw, &v); err != nil {
			return nil, nil, err
		}
		return v, nil, nil
	case KindMirrorUsagePointList:
		var v MirrorUsagePointList
		if err := xml.Unmarshal(raw, &v); err != nil {
			return nil, nil, err
		}
		items := make([]any, 0, len(v.MirrorUsagePoints))
		for _, i := range v.MirrorUsagePoints {
			items = append(items, i)
		}
		return v, items, nil
	case KindEndDevice:
		var v EndDevice
		if err := xml.Unmarshal(raw, &v); err != nil {
			return nil, nil, err
		}
		return v, nil, nil
	case KindEndDeviceList:
		var v EndDeviceList
		if err := xml.Unmarshal(raw, &v); err != nil {
			return nil, nil, err
		}
		items := make([]any, 0, len(v.EndDevices))
		for _, i := range v.EndDevices {
			items = append(items, i)
		}
		return v, items, nil
	case KindDER:
		var v DER
		if err := xml.Unmarshal(raw, &v); err != nil {
			return nil, nil, err
		}
		return v, nil, nil
	case KindDERList:
		var v DERList
		if err := xml.Unmarshal(raw, &v); err != nil {
			return nil, nil, err
		}
		items := make([]any, 0, len(v.DERs))
		for _, i := range v.DERs {
			items = append(items, i)
		}
		return v, items, nil
	case KindDERControl:
		var v DERControl
		if err := xml.Unmarshal(raw, &v); err != nil {
			return nil, nil, err
		}
		return v, nil, nil
	case KindDERControlList:
		var v DERControlList
		if err := xml.Unmarshal(raw, &v); err != nil {
			return nil, nil, err
		}
		items := make([]any, 0, len(v.DERControls))
		for _, i := range v.DERControls {
			items = append(items, i)
		}
		return v, items, nil
	case KindDERProgram:
		var v DERProgram
		if err := xml.Unmarshal(raw, &v); err != nil {
			return nil, nil, err
		}
		return v, nil, nil
	case KindDefaultDERControl:
		var v DefaultDERControl
		if err := xml.Unmarshal(raw, &v); err != nil {
			return nil, nil, err
		}
		return v, nil, nil
	case KindFunctionSetAssignments:
		var v FunctionSetAssignments
		if err := xml.Unmarshal(raw, &v); err != nil {
			return nil, nil, err
		}
		return v, nil, nil
	case KindSubscription:
		var v Subscription
		if err := xml.Unmarshal(raw, &v); err != nil {
			return nil, nil, err
		}
		return v, nil, nil
	case KindMirrorUsagePoint:
		var v MirrorUsagePoint
		if err := xml.Unmarshal(raw, &v); err != nil {
			return nil, nil, err
		}
		return v, nil, nil
	default:
		return nil, nil, errUnsupportedKind(kind)
	}
}

type unsupportedKindError struct{ kind Kind }

func (e unsupportedKindError) Error() string {
	return "sep2: unsupported notification resource kind " + string(e.kind)
}

func errUnsupportedKind(kind Kind) error { return unsupportedKindError{kind: kind} }

// Package resource implements the resource identity & store: a typed
// tree of discovered server resources addressed by a stable,
// content-addressed identifier built from the chain of hrefs from the
// resource up to the discovery root.
package resource

import (
	"strings"

	"github.com/cactuslab/cactus-client-go/internal/sep2"
)

// ID is a stored-resource identifier: an ordered tuple of hrefs from
// self to root, e.g. (derc-href, derp-href, fsa-href, edev-href,
// dcap-href). Equality is tuple equality.
type ID []string

// NewID builds an identifier for a resource with the given href whose
// parent identifier is parent (nil/empty for a root resource).
func NewID(href string, parent ID) ID {
	id := make(ID, 0, len(parent)+1)
	id = append(id, href)
	id = append(id, parent...)
	return id
}

// Equal reports tuple equality.
func (id ID) Equal(other ID) bool {
	if len(id) != len(other) {
		return false
	}
	for i := range id {
		if id[i] != other[i] {
			return false
		}
	}
	return true
}

// Key renders the identifier as a map-safe string.
func (id ID) Key() string {
	return strings.Join(id, "\x00")
}

// Href is the identifier's own (head) href.
func (id ID) Href() string {
	if len(id) == 0 {
		return ""
	}
	return id[0]
}

// Parent drops the head, returning the parent identifier.
func (id ID) Parent() ID {
	if len(id) <= 1 {
		return nil
	}
	return id[1:]
}

// IsDescendantOf reports whether id's tail equals ancestor: i.e.
// ancestor is a proper suffix of id (shorter than id).
func (id ID) IsDescendantOf(ancestor ID) bool {
	if len(ancestor) >= len(id) {
		return false
	}
	tail := id[len(id)-len(ancestor):]
	return tail.Equal(ancestor)
}

// IsAncestorOf is the converse of IsDescendantOf.
func (id ID) IsAncestorOf(descendant ID) bool {
	return descendant.IsDescendantOf(id)
}

// childLinks extracts the href of every child-kind link a payload
// exposes, via a kind-specific type switch over the payload value.
func childLinks(kind sep2.Kind, payload any) map[sep2.Kind]string {
	links := map[sep2.Kind]string{}
	set := func(k sep2.Kind, href string) {
		if href != "" {
			links[k] = href
		}
	}

	switch v := payload.(type) {
	case sep2.DeviceCapability:
		if v.TimeLink != nil {
			set(sep2.KindTime, v.TimeLink.Href)
		}
		if v.EndDeviceListLink != nil {
			set(sep2.KindEndDeviceList, v.EndDeviceListLink.Href)
		}
		if v.MirrorUsagePointListLink != nil {
			set(sep2.KindMirrorUsagePointList, v.MirrorUsagePointListLink.Href)
		}
	case sep2.EndDevice:
		if v.ConnectionPointLink != nil {
			set(sep2.KindConnectionPoint, v.ConnectionPointLink.Href)
		}
		if v.RegistrationLink != nil {
			set(sep2.KindRegistration, v.RegistrationLink.Href)
		}
		if v.FunctionSetAssignmentsListLink != nil {
			set(sep2.KindFunctionSetAssignmentsList, v.FunctionSetAssignmentsListLink.Href)
		}
		if v.DERListLink != nil {
			set(sep2.KindDERList, v.DERListLink.Href)
		}
		if v.SubscriptionListLink != nil {
			set(sep2.KindSubscriptionList, v.SubscriptionListLink.Href)
		}
	case sep2.FunctionSetAssignments:
		if v.DERProgramListLink != nil {
			set(sep2.KindDERProgramList, v.DERProgramListLink.Href)
		}
	case sep2.DERProgram:
		if v.DefaultDERControlLink != nil {
			set(sep2.KindDefaultDERControl, v.DefaultDERControlLink.Href)
		}
		if v.DERControlListLink != nil {
			set(sep2.KindDERControlList, v.DERControlListLink.Href)
		}
	case sep2.DER:
		if v.DERCapabilityLink != nil {
			set(sep2.KindDERCapability, v.DERCapabilityLink.Href)
		}
		if v.DERSettingsLink != nil {
			set(sep2.KindDERSettings, v.DERSettingsLink.Href)
		}
		if v.DERStatusLink != nil {
			set(sep2.KindDERStatus, v.DERStatusLink.Href)
		}
	}
	return links
}

// hrefOf extracts the own href of a payload, or "" if it has none.
func hrefOf(payload any) string {
	switch v := payload.(type) {
	case sep2.DeviceCapability:
		return v.Href
	case sep2.Time:
		return v.Href
	case sep2.EndDeviceList:
		return v.Href
	case sep2.EndDevice:
		return v.Href
	case sep2.ConnectionPoint:
		return v.Href
	case sep2.Registration:
		return v.Href
	case sep2.SubscriptionList:
		return v.Href
	case sep2.Subscription:
		return v.Href
	case sep2.FunctionSetAssignmentsList:
		return v.Href
	case sep2.FunctionSetAssignments:
		return v.Href
	case sep2.DERProgramList:
		return v.Href
	case sep2.DERProgram:
		return v.Href
	case sep2.DefaultDERControl:
		return v.Href
	case sep2.DERControlList:
		return v.Href
	case sep2.DERControl:
		return v.Href
	case sep2.DERList:
		return v.Href
	case sep2.DER:
		return v.Href
	case sep2.DERCapability:
		return v.Href
	case sep2.DERSettings:
		return v.Href
	case sep2.DERStatus:
		return v.Href
	case sep2.MirrorUsagePointList:
		return v.Href
	case sep2.MirrorUsagePoint:
		return v.Href
	default:
		return ""
	}
}

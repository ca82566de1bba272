// Package sep2 models the CSIP-Aus/IEEE 2030.5 wire resources the
// harness exchanges with the server under test: the closed resource
// kind enum and static parent tree, the XML payload types, and the
// xsi:type lookup table used to decode polymorphic Notification
// bodies.
package sep2

// Kind identifies one of the closed set of protocol resource types.
type Kind string

const (
	KindDeviceCapability           Kind = "DeviceCapability"
	KindTime                       Kind = "Time"
	KindEndDeviceList              Kind = "EndDeviceList"
	KindEndDevice                  Kind = "EndDevice"
	KindConnectionPoint            Kind = "ConnectionPoint"
	KindRegistration               Kind = "Registration"
	KindSubscriptionList           Kind = "SubscriptionList"
	KindSubscription               Kind = "Subscription"
	KindFunctionSetAssignmentsList Kind = "FunctionSetAssignmentsList"
	KindFunctionSetAssignments     Kind = "FunctionSetAssignments"
	KindDERProgramList             Kind = "DERProgramList"
	KindDERProgram                 Kind = "DERProgram"
	KindDefaultDERControl          Kind = "DefaultDERControl"
	KindDERControlList             Kind = "DERControlList"
	KindDERControl                 Kind = "DERControl"
	KindDERList                    Kind = "DERList"
	KindDER                        Kind = "DER"
	KindDERCapability              Kind = "DERCapability"
	KindDERSettings                Kind = "DERSettings"
	KindDERStatus                  Kind = "DERStatus"
	KindMirrorUsagePointList       Kind = "MirrorUsagePointList"
	KindMirrorUsagePoint           Kind = "MirrorUsagePoint"
	KindNotification               Kind = "Notification"
)

// ListKinds is the subset of Kind whose items live as children.
var ListKinds = map[Kind]bool{
	KindEndDeviceList:              true,
	KindSubscriptionList:           true,
	KindFunctionSetAssignmentsList: true,
	KindDERProgramList:             true,
	KindDERControlList:             true,
	KindDERList:                    true,
	KindMirrorUsagePointList:       true,
}

// IsListKind reports whether kind holds items as children.
func IsListKind(kind Kind) bool { return ListKinds[kind] }

// ItemKindOf maps a list kind to the kind of the items it holds.
var itemKindOf = map[Kind]Kind{
	KindEndDeviceList:              KindEndDevice,
	KindSubscriptionList:           KindSubscription,
	KindFunctionSetAssignmentsList: KindFunctionSetAssignments,
	KindDERProgramList:             KindDERProgram,
	KindDERControlList:             KindDERControl,
	KindDERList:                    KindDER,
	KindMirrorUsagePointList:       KindMirrorUsagePoint,
}

// ItemKindOf returns the item kind of a list kind, or "" if kind is
// not a list kind.
func ItemKindOf(kind Kind) Kind { return itemKindOf[kind] }

// parentOf is the static, acyclic parent/child relation over resource
// kinds:
//
//	DERControl ⊳ DERControlList ⊳ DERProgram ⊳ DERProgramList ⊳
//	FunctionSetAssignments ⊳ FunctionSetAssignmentsList ⊳ EndDevice ⊳
//	EndDeviceList ⊳ DeviceCapability
var parentOf = map[Kind]Kind{
	KindTime:                       KindDeviceCapability,
	KindEndDeviceList:              KindDeviceCapability,
	KindMirrorUsagePointList:       KindDeviceCapability,
	KindEndDevice:                  KindEndDeviceList,
	KindConnectionPoint:            KindEndDevice,
	KindRegistration:               KindEndDevice,
	KindFunctionSetAssignmentsList: KindEndDevice,
	KindDERList:                    KindEndDevice,
	KindSubscriptionList:           KindEndDevice,
	KindFunctionSetAssignments:     KindFunctionSetAssignmentsList,
	KindDERProgramList:             KindFunctionSetAssignments,
	KindDERProgram:                 KindDERProgramList,
	KindDefaultDERControl:          KindDERProgram,
	KindDERControlList:             KindDERProgram,
	KindDERControl:                 KindDERControlList,
	KindDER:                        KindDERList,
	KindDERCapability:              KindDER,
	KindDERSettings:                KindDER,
	KindDERStatus:                  KindDER,
	KindSubscription:               KindSubscriptionList,
	KindMirrorUsagePoint:           KindMirrorUsagePointList,
}

// ParentKind returns the parent kind of kind, or "" (none) for roots
// such as DeviceCapability.
func ParentKind(kind Kind) (Kind, bool) {
	p, ok := parentOf[kind]
	return p, ok
}

// WalkPlan returns the ordered visit plan for a set of target kinds:
// ancestors of every target, then the target itself, with no
// duplicates, ancestors always preceding descendants.
func WalkPlan(targets []Kind) []Kind {
	seen := map[Kind]bool{}
	var plan []Kind

	var addChain func(k Kind)
	addChain = func(k Kind) {
		if seen[k] {
			return
		}
		if parent, ok := ParentKind(k); ok {
			addChain(parent)
		}
		seen[k] = true
		plan = append(plan, k)
	}

	for _, t := range targets {
		addChain(t)
	}
	return plan
}

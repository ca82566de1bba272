package sep2

import "testing"

func TestParentKindKnownAndUnknown(t *testing.T) {
	parent, ok := ParentKind(KindEndDevice)
	if !ok || parent != KindEndDeviceList {
		t.Errorf("ParentKind(EndDevice) = %v, %v", parent, ok)
	}
	if _, ok := ParentKind(KindDeviceCapability); ok {
		t.Error("DeviceCapability is a root and should have no parent")
	}
}

func TestIsListKind(t *testing.T) {
	if !IsListKind(KindDERList) {
		t.Error("DERList should be a list kind")
	}
	if IsListKind(KindDER) {
		t.Error("DER should not be a list kind")
	}
}

func TestItemKindOf(t *testing.T) {
	if got := ItemKindOf(KindEndDeviceList); got != KindEndDevice {
		t.Errorf("ItemKindOf(EndDeviceList) = %v", got)
	}
	if got := ItemKindOf(KindDER); got != "" {
		t.Errorf("ItemKindOf(DER) = %v, want empty", got)
	}
}

func TestWalkPlanOrdersAncestorsBeforeDescendants(t *testing.T) {
	plan := WalkPlan([]Kind{KindDERControl})
	index := map[Kind]int{}
	for i, k := range plan {
		index[k] = i
	}
	wantOrder := []Kind{
		KindDeviceCapability, KindEndDeviceList, KindEndDevice,
		KindFunctionSetAssignmentsList, KindFunctionSetAssignments,
		KindDERProgramList, KindDERProgram, KindDERControlList, KindDERControl,
	}
	for _, k := range wantOrder {
		if _, ok := index[k]; !ok {
			t.Fatalf("expected %s in the walk plan, got %v", k, plan)
		}
	}
	for i := 1; i < len(wantOrder); i++ {
		if index[wantOrder[i-1]] >= index[wantOrder[i]] {
			t.Errorf("expected %s before %s in %v", wantOrder[i-1], wantOrder[i], plan)
		}
	}
}

func TestWalkPlanDeduplicatesSharedAncestors(t *testing.T) {
	plan := WalkPlan([]Kind{KindDERControl, KindSubscriptionList})
	seen := map[Kind]int{}
	for _, k := range plan {
		seen[k]++
	}
	for k, count := range seen {
		if count > 1 {
			t.Errorf("kind %s appeared %d times in the walk plan", k, count)
		}
	}
	if seen[KindEndDevice] != 1 {
		t.Error("expected EndDevice, shared by both chains, to appear exactly once")
	}
}

func TestKindForXSIType(t *testing.T) {
	kind, ok := KindForXSIType("DERControl")
	if !ok || kind != KindDERControl {
		t.Errorf("KindForXSIType(DERControl) = %v, %v", kind, ok)
	}
	if _, ok := KindForXSIType("SomethingUnknown"); ok {
		t.Error("expected an unrecognised xsi:type to fail")
	}
}

func TestListAttrsReadsAllAndResults(t *testing.T) {
	all, results := ListAttrs(EndDeviceList{All: 5, Results: 2})
	if all != 5 || results != 2 {
		t.Errorf("ListAttrs = %d, %d, want 5, 2", all, results)
	}
}

func TestListAttrsNonStructReturnsZero(t *testing.T) {
	all, results := ListAttrs("not a struct")
	if all != 0 || results != 0 {
		t.Errorf("ListAttrs(non-struct) = %d, %d, want 0, 0", all, results)
	}
}

package action

import (
	"net/http"
	"testing"
	"time"

	"github.com/cactuslab/cactus-client-go/internal/sep2"
	"github.com/cactuslab/cactus-client-go/internal/step"
)

func execFor(actionType string, params map[string]any) *step.Execution {
	st := &step.Step{ID: "s1", Action: step.Spec{Type: actionType, Params: params}}
	return step.NewExecution(st)
}

func TestDispatchUnknownActionType(t *testing.T) {
	ac, _ := newTestActionContext(t, func(w http.ResponseWriter, r *http.Request) {})
	st := &step.Step{ID: "s1", Action: step.Spec{Type: "not-a-real-action"}}
	if _, err := Dispatch(t.Context(), ac, step.NewExecution(st)); err == nil {
		t.Error("expected an error dispatching an unrecognised action type")
	}
}

func TestNoOpCompletes(t *testing.T) {
	ac, _ := newTestActionContext(t, func(w http.ResponseWriter, r *http.Request) {})
	res, err := NoOp(t.Context(), ac, execFor("no-op", nil), nil)
	if err != nil || !res.Completed {
		t.Fatalf("NoOp = %+v, %v", res, err)
	}
}

func TestWaitFailsThenCompletesOnceDeadlinePasses(t *testing.T) {
	ac, _ := newTestActionContext(t, func(w http.ResponseWriter, r *http.Request) {})
	now := time.Now()
	ac.Now = func() time.Time { return now }

	s := execFor("wait", map[string]any{"duration": 10})
	res, err := Wait(t.Context(), ac, s, s.Step.Action.Params)
	if err != nil || res.Completed {
		t.Fatalf("expected Wait to not yet be complete, got %+v, %v", res, err)
	}

	now = now.Add(11 * time.Second)
	res, err = Wait(t.Context(), ac, s, s.Step.Action.Params)
	if err != nil || !res.Completed {
		t.Fatalf("expected Wait to complete after its deadline, got %+v, %v", res, err)
	}
}

func TestWaitDeadlineIsMemoizedPerStep(t *testing.T) {
	ac, _ := newTestActionContext(t, func(w http.ResponseWriter, r *http.Request) {})
	start := time.Now()
	now := start
	ac.Now = func() time.Time { return now }

	s := execFor("wait", map[string]any{"duration": 5})
	if _, err := Wait(t.Context(), ac, s, s.Step.Action.Params); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	now = start.Add(3 * time.Second)
	res, err := Wait(t.Context(), ac, s, s.Step.Action.Params)
	if err != nil || res.Completed {
		t.Fatalf("expected still-waiting at +3s against a 5s deadline from the first attempt, got %+v", res)
	}
}

func TestForgetClearsNamedKinds(t *testing.T) {
	ac, _ := newTestActionContext(t, func(w http.ResponseWriter, r *http.Request) {})
	if _, err := ac.Store.Append(sep2.KindDER, nil, sep2.DER{Href: "/der/1"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	s := execFor("forget", map[string]any{"kinds": []any{string(sep2.KindDER)}})
	res, err := Forget(t.Context(), ac, s, s.Step.Action.Params)
	if err != nil || !res.Completed {
		t.Fatalf("Forget = %+v, %v", res, err)
	}
	if len(ac.Store.GetByKind(sep2.KindDER)) != 0 {
		t.Error("expected the DER kind to be cleared")
	}
}

func TestDiscoveryWithNoTargetsSucceedsTrivially(t *testing.T) {
	ac, _ := newTestActionContext(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<DeviceCapability href="/dcap"/>`))
	})
	s := execFor("discovery", map[string]any{"targets": []any{}})
	res, err := Discovery(t.Context(), ac, s, s.Step.Action.Params)
	if err != nil || !res.Completed {
		t.Fatalf("Discovery = %+v, %v", res, err)
	}
}

func TestRefreshResourceNoStoredResourcesIsANoOp(t *testing.T) {
	ac, _ := newTestActionContext(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no HTTP call expected when nothing of the kind is stored")
	})
	s := execFor("refresh-resource", map[string]any{"kind": string(sep2.KindDER)})
	res, err := RefreshResource(t.Context(), ac, s, s.Step.Action.Params)
	if err != nil || !res.Completed {
		t.Fatalf("RefreshResource = %+v, %v", res, err)
	}
}

func TestRefreshResourceExpectRejection(t *testing.T) {
	ac, srv := newTestActionContext(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`<Error><reasonCode>0</reasonCode></Error>`))
	})
	if _, err := ac.Store.Append(sep2.KindDER, nil, sep2.DER{Href: srv.URL + "/der/1"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	s := execFor("refresh-resource", map[string]any{"kind": string(sep2.KindDER), "expect-rejection": true})
	res, err := RefreshResource(t.Context(), ac, s, s.Step.Action.Params)
	if err != nil || !res.Completed {
		t.Fatalf("RefreshResource = %+v, %v", res, err)
	}
}

func TestInsertEndDeviceRequiresExactlyOneDiscoveredList(t *testing.T) {
	ac, _ := newTestActionContext(t, func(w http.ResponseWriter, r *http.Request) {})
	s := execFor("insert-end-device", nil)
	res, err := InsertEndDevice(t.Context(), ac, s, s.Step.Action.Params)
	if err != nil {
		t.Fatalf("InsertEndDevice: %v", err)
	}
	if res.Completed {
		t.Error("expected insert-end-device to fail with zero discovered EndDeviceLists")
	}
}

func TestInsertEndDeviceSuccess(t *testing.T) {
	ac, srv := newTestActionContext(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			w.Header().Set("Location", "/edev/1")
			w.WriteHeader(http.StatusCreated)
		case http.MethodGet:
			w.Write([]byte(`<EndDevice href="/edev/1"><lFDI>` + testLFDI + `</lFDI><sFDI>1</sFDI><deviceCategory>photovoltaic</deviceCategory></EndDevice>`))
		}
	})
	if _, err := ac.Store.Append(sep2.KindEndDeviceList, nil, sep2.EndDeviceList{Href: srv.URL + "/edev"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	s := execFor("insert-end-device", nil)
	res, err := InsertEndDevice(t.Context(), ac, s, s.Step.Action.Params)
	if err != nil || !res.Completed {
		t.Fatalf("InsertEndDevice = %+v, %v", res, err)
	}
	if len(ac.Store.GetByKind(sep2.KindEndDevice)) != 1 {
		t.Error("expected the inserted EndDevice to be stored")
	}
}

func TestInsertEndDeviceExpectRejection(t *testing.T) {
	ac, srv := newTestActionContext(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`<Error><reasonCode>0</reasonCode></Error>`))
	})
	if _, err := ac.Store.Append(sep2.KindEndDeviceList, nil, sep2.EndDeviceList{Href: srv.URL + "/edev"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	s := execFor("insert-end-device", map[string]any{"expect-rejection": true})
	res, err := InsertEndDevice(t.Context(), ac, s, s.Step.Action.Params)
	if err != nil || !res.Completed {
		t.Fatalf("InsertEndDevice = %+v, %v", res, err)
	}
	if len(ac.Store.GetByKind(sep2.KindEndDevice)) != 0 {
		t.Error("a rejected insert should not be stored")
	}
}

func TestUpsertConnectionPoint(t *testing.T) {
	ac, srv := newTestActionContext(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			w.Write([]byte(`<ConnectionPoint href="/edev/1/cp"><connectionPointId>NMI12345</connectionPointId></ConnectionPoint>`))
		}
	})
	device, err := ac.Store.Append(sep2.KindEndDevice, nil, sep2.EndDevice{
		Href:                srv.URL + "/edev/1",
		LFDI:                testLFDI,
		ConnectionPointLink: &sep2.Link{Href: srv.URL + "/edev/1/cp"},
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	s := execFor("upsert-connection-point", map[string]any{"connection-point-id": "NMI12345"})
	res, err := UpsertConnectionPoint(t.Context(), ac, s, s.Step.Action.Params)
	if err != nil || !res.Completed {
		t.Fatalf("UpsertConnectionPoint = %+v, %v", res, err)
	}
	if len(ac.Store.GetDescendantsOf(sep2.KindConnectionPoint, device.ID)) != 1 {
		t.Error("expected the connection point to be stored under the EndDevice")
	}
}

func upsertMUPHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			w.Header().Set("Location", "/mup/1")
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodGet:
			w.Write([]byte(`<MirrorUsagePoint href="/mup/1"><mRID>AAAA</mRID><roleFlags>03</roleFlags><serviceCategoryKind>0</serviceCategoryKind><status>1</status><deviceLFDI>` + testLFDI + `</deviceLFDI></MirrorUsagePoint>`))
		case r.Method == http.MethodPut:
			w.Write([]byte(`<MirrorUsagePoint href="/mup/1"><mRID>AAAA</mRID><roleFlags>03</roleFlags><serviceCategoryKind>0</serviceCategoryKind><status>1</status><deviceLFDI>` + testLFDI + `</deviceLFDI></MirrorUsagePoint>`))
		}
	}
}

func TestUpsertMUPStoresReadingsBridge(t *testing.T) {
	ac, srv := newTestActionContext(t, upsertMUPHandler(t))
	if _, err := ac.Store.Append(sep2.KindMirrorUsagePointList, nil, sep2.MirrorUsagePointList{Href: srv.URL + "/mup"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	s := execFor("upsert-mup", map[string]any{
		"mup-id":        "site-mup",
		"location":      string(sep2.LocationSite),
		"reading-types": []string{"ActivePowerAvg"},
	})
	res, err := UpsertMUP(t.Context(), ac, s, s.Step.Action.Params)
	if err != nil || !res.Completed {
		t.Fatalf("UpsertMUP = %+v, %v", res, err)
	}

	stored, ok := ac.Store.FindByAlias(sep2.KindMirrorUsagePoint, "site-mup")
	if !ok {
		t.Fatal("expected the upserted MUP to be aliased")
	}
	mup, ok := stored.Payload.(sep2.MirrorUsagePoint)
	if !ok || len(mup.MirrorMeterReadings) != 1 {
		t.Fatalf("expected the submitted reading to survive the refetch bridge, got %+v", mup)
	}
}

func TestInsertReadingsScalarValue(t *testing.T) {
	ac, srv := newTestActionContext(t, upsertMUPHandler(t))
	if _, err := ac.Store.Append(sep2.KindMirrorUsagePointList, nil, sep2.MirrorUsagePointList{Href: srv.URL + "/mup"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	upsert := execFor("upsert-mup", map[string]any{
		"mup-id":        "site-mup",
		"location":      string(sep2.LocationSite),
		"reading-types": []string{"ActivePowerAvg"},
	})
	if res, err := UpsertMUP(t.Context(), ac, upsert, upsert.Step.Action.Params); err != nil || !res.Completed {
		t.Fatalf("UpsertMUP = %+v, %v", res, err)
	}

	s := execFor("insert-readings", map[string]any{
		"mup-id": "site-mup",
		"values": map[string]any{"ActivePowerAvg": 1234},
	})
	res, err := InsertReadings(t.Context(), ac, s, s.Step.Action.Params)
	if err != nil || !res.Completed || res.Repeat {
		t.Fatalf("InsertReadings = %+v, %v", res, err)
	}
}

func TestInsertReadingsValuesListSchedulesRepeat(t *testing.T) {
	ac, srv := newTestActionContext(t, upsertMUPHandler(t))
	if _, err := ac.Store.Append(sep2.KindMirrorUsagePointList, nil, sep2.MirrorUsagePointList{Href: srv.URL + "/mup"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	upsert := execFor("upsert-mup", map[string]any{
		"mup-id":        "site-mup",
		"location":      string(sep2.LocationSite),
		"reading-types": []string{"ActivePowerAvg"},
	})
	if res, err := UpsertMUP(t.Context(), ac, upsert, upsert.Step.Action.Params); err != nil || !res.Completed {
		t.Fatalf("UpsertMUP = %+v, %v", res, err)
	}

	s := execFor("insert-readings", map[string]any{
		"mup-id": "site-mup",
		"values": map[string]any{"ActivePowerAvg": []any{100, 200, 300}},
	})
	res, err := InsertReadings(t.Context(), ac, s, s.Step.Action.Params)
	if err != nil {
		t.Fatalf("InsertReadings: %v", err)
	}
	if !res.Completed || !res.Repeat || res.NotBefore == nil {
		t.Fatalf("expected a completed-but-repeating result with more values queued, got %+v", res)
	}

	s.RepeatNumber = 2
	res, err = InsertReadings(t.Context(), ac, s, s.Step.Action.Params)
	if err != nil || !res.Completed || res.Repeat {
		t.Fatalf("expected the final repeat to complete without requesting another, got %+v, %v", res, err)
	}
}

func TestInsertReadingsUnknownAliasErrors(t *testing.T) {
	ac, _ := newTestActionContext(t, func(w http.ResponseWriter, r *http.Request) {})
	s := execFor("insert-readings", map[string]any{"mup-id": "nope", "values": map[string]any{}})
	if _, err := InsertReadings(t.Context(), ac, s, s.Step.Action.Params); err == nil {
		t.Error("expected an error referencing an alias with no stored MirrorUsagePoint")
	}
}

func TestCreateAndDeleteSubscription(t *testing.T) {
	var subCreated, subDeleted bool
	ac, srv := newTestActionContext(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/endpoint-list":
			w.Write([]byte(`{"endpoint_id":"ep-1","fully_qualified_webhook_uri":"https://collector/ep-1"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/sub":
			subCreated = true
			w.Header().Set("Location", "/sub/1")
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodDelete && r.URL.Path == "/sub/1":
			subDeleted = true
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodGet && r.URL.Path == "/sub/1":
			if subDeleted {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Write([]byte(`<Subscription href="/sub/1"><notificationURI>https://collector/ep-1</notificationURI><subscribedResource>/der/1</subscribedResource></Subscription>`))
		case r.Method == http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	if _, err := ac.Store.Append(sep2.KindSubscriptionList, nil, sep2.SubscriptionList{Href: srv.URL + "/sub"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := ac.Store.Append(sep2.KindDER, nil, sep2.DER{Href: srv.URL + "/der/1"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	s := execFor("create-subscription", map[string]any{"sub-id": "sub-a", "kind": string(sep2.KindDER)})
	res, err := CreateSubscription(t.Context(), ac, s, s.Step.Action.Params)
	if err != nil || !res.Completed {
		t.Fatalf("CreateSubscription = %+v, %v", res, err)
	}
	if !subCreated {
		t.Error("expected a Subscription POST")
	}
	if len(ac.Store.GetByKind(sep2.KindSubscription)) != 1 {
		t.Fatal("expected the created subscription to be stored")
	}

	del := execFor("delete-subscription", map[string]any{"sub-id": "sub-a"})
	res, err = DeleteSubscription(t.Context(), ac, del, del.Step.Action.Params)
	if err != nil || !res.Completed {
		t.Fatalf("DeleteSubscription = %+v, %v", res, err)
	}
	if len(ac.Store.GetByKind(sep2.KindSubscription)) != 0 {
		t.Error("expected the subscription to be removed from the store")
	}
}

func TestDeleteSubscriptionUnknownAliasFails(t *testing.T) {
	ac, _ := newTestActionContext(t, func(w http.ResponseWriter, r *http.Request) {})
	s := execFor("delete-subscription", map[string]any{"sub-id": "never-created"})
	res, err := DeleteSubscription(t.Context(), ac, s, s.Step.Action.Params)
	if err != nil {
		t.Fatalf("DeleteSubscription: %v", err)
	}
	if res.Completed {
		t.Error("expected delete-subscription to fail when no Subscription carries the alias")
	}
}

func TestTriangleWave(t *testing.T) {
	cases := []struct {
		repeat   int
		expected int64
	}{
		{0, -5000},
		{9, 5000},
		{10, -5000},
	}
	for _, c := range cases {
		got := triangleWave(c.repeat, simulateActivePowerMin, simulateActivePowerMax, simulateCycleLength)
		if got != c.expected {
			t.Errorf("triangleWave(%d) = %d, want %d", c.repeat, got, c.expected)
		}
	}
}

package action

import (
	"context"
	"fmt"
	"time"

	"github.com/cactuslab/cactus-client-go/internal/cerrors"
	"github.com/cactuslab/cactus-client-go/internal/sep2"
	"github.com/cactuslab/cactus-client-go/internal/sep2util"
	"github.com/cactuslab/cactus-client-go/internal/step"
)

// ServiceCategoryElectricity is the SEP2 serviceCategoryKind value
// this harness always mirrors under.
const ServiceCategoryElectricity = 0

// MUPStatusOn is the SEP2 MirrorUsagePoint status value meaning "in
// service", used unconditionally by upsert-mup.
const MUPStatusOn = 1

// UpsertMUP builds and submits a MirrorUsagePoint for the requested
// location and reading types, deriving its mRID set.
// Because the server does not echo MirrorMeterReadings back on GET,
// the submitted readings are copied into the refetched copy before it
// is stored: an explicit bridge, not a bug.
func UpsertMUP(ctx context.Context, ac *Context, s *step.Execution, params map[string]any) (Result, error) {
	alias := stringParam(params, "mup-id", "")
	location := sep2.MUPLocation(stringParam(params, "location", string(sep2.LocationDevice)))
	readingTypes := stringSliceParam(params, "reading-types")
	pow10 := intParam(params, "pow10-multiplier", 0)
	explicitMUPMRID := stringParam(params, "set-mup-mrid", "")
	explicitMMRs, _ := params["mmr-mrids"].(map[string]any)

	pen := ac.ClientConfig.PEN

	mupMRID := explicitMUPMRID
	if mupMRID == "" {
		mupMRID = sep2util.MUPMRID(string(location), ac.ClientConfig.ID, readingTypes, pen)
	} else {
		mupMRID = sep2util.MRIDFromExplicit(mupMRID, pen)
	}

	readings := make([]sep2.MirrorMeterReading, 0, len(readingTypes))
	for _, rt := range readingTypes {
		spec, ok := sep2.ReadingTypeSpecFor(rt)
		if !ok {
			return Result{}, cerrors.Newf(cerrors.TestDefinitionKind, "action.UpsertMUP", "unrecognised reading type %q", rt)
		}
		mmrMRID := ""
		if explicitMMRs != nil {
			if v, ok := explicitMMRs[rt].(string); ok && v != "" {
				mmrMRID = sep2util.MRIDFromExplicit(v, pen)
			}
		}
		if mmrMRID == "" {
			mmrMRID = sep2util.MMRMRID(mupMRID, rt, pen)
		}
		readings = append(readings, sep2.MirrorMeterReading{
			MRID: mmrMRID,
			ReadingType: sep2.ReadingTypeXML{
				UoM:                  int(spec.UoM),
				Kind:                 int(spec.Kind),
				DataQualifier:        int(spec.DataQualifier),
				PowerOfTenMultiplier: pow10,
			},
		})
	}

	roleFlags := sep2.RoleFlagsFor(location)
	payload := sep2.MirrorUsagePoint{
		MRID:                mupMRID,
		RoleFlags:           sep2util.ToHexBinary(int64(roleFlags)),
		ServiceCategoryKind: ServiceCategoryElectricity,
		Status:              MUPStatusOn,
		DeviceLFDI:          ac.ClientConfig.LFDI,
		MirrorMeterReadings: readings,
	}

	lists := ac.Store.GetByKind(sep2.KindMirrorUsagePointList)
	if len(lists) != 1 {
		return Failed("expected exactly one discovered MirrorUsagePointList, found %d", len(lists)), nil
	}
	list := lists[0]

	var refetched sep2.MirrorUsagePoint
	result, err := ac.Client.SubmitAndRefetch(ctx, s, "POST", list.ID.Href(), payload, &refetched, false)
	if err != nil {
		return Failed("upsert-mup: %v", err), nil
	}
	if result.Warning != "" {
		ac.Warnings.Log(result.Warning, s)
	}

	// Bridge: the server never echoes MirrorMeterReadings on GET.
	refetched.MirrorMeterReadings = readings

	stored, err := ac.Store.Upsert(sep2.KindMirrorUsagePoint, list.ID, refetched)
	if err != nil {
		return Result{}, cerrors.New(cerrors.UnhandledKind, "action.UpsertMUP", err)
	}
	if alias != "" {
		ac.Store.SetAlias(stored.ID, alias)
	}
	return Done("mirror usage point upserted"), nil
}

// InsertReadings posts one reading per reading-type against the MUP
// identified by alias, repeating across a values list.
func InsertReadings(ctx context.Context, ac *Context, s *step.Execution, params map[string]any) (Result, error) {
	alias := stringParam(params, "mup-id", "")
	values, _ := params["values"].(map[string]any)

	stored, ok := ac.Store.FindByAlias(sep2.KindMirrorUsagePoint, alias)
	if !ok {
		return Result{}, cerrors.Newf(cerrors.TestDefinitionKind, "action.InsertReadings", "no MirrorUsagePoint aliased %q", alias)
	}
	mup, ok := stored.Payload.(sep2.MirrorUsagePoint)
	if !ok {
		return Result{}, cerrors.Newf(cerrors.UnhandledKind, "action.InsertReadings", "stored resource aliased %q is not a MirrorUsagePoint", alias)
	}

	repeatNumber := s.RepeatNumber
	allFinite := true
	maxLen := 0

	readingFor := func(rt string) (int64, error) {
		v := values[rt]
		list, isList := v.([]any)
		if isList {
			if repeatNumber >= len(list) {
				return 0, fmt.Errorf("reading type %q has only %d values for repeat %d", rt, len(list), repeatNumber)
			}
			if len(list) > maxLen {
				maxLen = len(list)
			}
			return toInt64(list[repeatNumber]), nil
		}
		allFinite = false
		return toInt64(v), nil
	}

	var updated []sep2.MirrorMeterReading
	for i := range mup.MirrorMeterReadings {
		mmr := mup.MirrorMeterReadings[i]
		rtName, ok := sep2.ReadingTypeNameFor(sep2.ReadingTypeSpec{
			UoM:           sep2.UoM(mmr.ReadingType.UoM),
			Kind:          sep2.ReadingKind(mmr.ReadingType.Kind),
			DataQualifier: sep2.DataQualifier(mmr.ReadingType.DataQualifier),
		})
		if !ok {
			return Result{}, cerrors.Newf(cerrors.UnhandledKind, "action.InsertReadings", "mirror meter reading %q has no recognised reading type", mmr.MRID)
		}
		value, err := readingFor(rtName)
		if err != nil {
			return Result{}, cerrors.New(cerrors.TestDefinitionKind, "action.InsertReadings", err)
		}
		postRate := int64(defaultPostRateSeconds)
		periodStart := truncateToMinute(ac.StartedAt).Unix() + postRate*int64(repeatNumber)

		mmr.Reading = &sep2.Reading{
			Value:              value,
			TimePeriodStart:    periodStart,
			TimePeriodDuration: postRate,
		}
		updated = append(updated, mmr)
	}
	mup.MirrorMeterReadings = updated

	href := stored.ID.Href()
	var refetched sep2.MirrorUsagePoint
	result, err := ac.Client.SubmitAndRefetch(ctx, s, "PUT", href, mup, &refetched, false)
	if err != nil {
		return Failed("insert-readings: %v", err), nil
	}
	if result.Warning != "" {
		ac.Warnings.Log(result.Warning, s)
	}
	refetched.MirrorMeterReadings = updated
	if _, err := ac.Store.Upsert(sep2.KindMirrorUsagePoint, stored.ID.Parent(), refetched); err != nil {
		return Result{}, cerrors.New(cerrors.UnhandledKind, "action.InsertReadings", err)
	}
	ac.Store.SetAlias(stored.ID, alias)

	if allFinite && repeatNumber+1 < maxLen {
		nextReadingTime := time.Unix(truncateToMinute(ac.StartedAt).Unix()+int64(defaultPostRateSeconds)*int64(repeatNumber+1), 0)
		earliestNotBefore := ac.now().Add(time.Duration(defaultPostRateSeconds) * time.Second)
		notBefore := nextReadingTime
		if earliestNotBefore.After(notBefore) {
			notBefore = earliestNotBefore
		}
		return Result{Completed: true, Repeat: true, NotBefore: &notBefore, Description: "readings inserted, more repeats remain"}, nil
	}
	return Done("readings inserted"), nil
}

func truncateToMinute(t time.Time) time.Time {
	return t.Truncate(time.Minute)
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

package check

import (
	"context"

	"github.com/cactuslab/cactus-client-go/internal/sep2"
	"github.com/cactuslab/cactus-client-go/internal/sep2util"
	"github.com/cactuslab/cactus-client-go/internal/step"
)

// CheckMirrorUsagePoint enumerates every stored MirrorUsagePoint,
// eliminating those that disagree with any specified dimension, and
// compares survivor count against matches.
func CheckMirrorUsagePoint(ctx context.Context, cc *Context, s *step.Execution, params map[string]any) (Result, error) {
	wantMatches := boolParam(params, "matches")
	location, hasLocation := params["location"].(string)
	readingTypes := stringSliceParam(params, "reading-types")
	mmrMRIDs, _ := params["mmr-mrids"].(map[string]any)
	postRateSeconds, hasPostRate := intParamPtr(params, "post-rate-seconds")
	checkMUPMRID := stringParam(params, "check-mup-mrid", "")

	var expectedRoleFlags sep2.RoleFlags
	if hasLocation {
		expectedRoleFlags = sep2.RoleFlagsFor(sep2.MUPLocation(location))
	}

	survivors := 0
	var lastReason string

	for _, stored := range cc.Store.GetByKind(sep2.KindMirrorUsagePoint) {
		mup, ok := stored.Payload.(sep2.MirrorUsagePoint)
		if !ok {
			continue
		}

		if hasLocation && !sep2util.HexBinaryEqual(sep2util.ToHexBinary(int64(expectedRoleFlags)), mup.RoleFlags) {
			lastReason = "roleFlags did not match expected location"
			continue
		}

		if checkMUPMRID != "" && checkMUPMRID != mup.MRID {
			lastReason = "mRID did not match check-mup-mrid"
			continue
		}

		if len(readingTypes) > 0 && !hasEveryReadingType(mup, readingTypes) {
			lastReason = "did not carry every specified reading type"
			continue
		}

		if mmrMRIDs != nil && !mmrMRIDsMatch(mup, mmrMRIDs) {
			lastReason = "MirrorMeterReading mRID did not match mmr-mrids"
			continue
		}

		if hasPostRate && !mupReadingPeriodsMatch(mup, postRateSeconds) {
			lastReason = "reading time-period duration did not match post-rate-seconds"
			continue
		}

		survivors++
	}

	if wantMatches {
		if survivors > 0 {
			return passed("at least one MirrorUsagePoint matched"), nil
		}
		return failed("no MirrorUsagePoint matched: %s", lastReason), nil
	}
	if survivors == 0 {
		return passed("no MirrorUsagePoint matched, as expected"), nil
	}
	return failed("%d MirrorUsagePoint(s) matched but none were expected to", survivors), nil
}

func hasEveryReadingType(mup sep2.MirrorUsagePoint, readingTypes []string) bool {
	for _, rt := range readingTypes {
		spec, ok := sep2.ReadingTypeSpecFor(rt)
		if !ok {
			return false
		}
		found := false
		for _, mmr := range mup.MirrorMeterReadings {
			if int(spec.UoM) == mmr.ReadingType.UoM && int(spec.Kind) == mmr.ReadingType.Kind && int(spec.DataQualifier) == mmr.ReadingType.DataQualifier {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func mmrMRIDsMatch(mup sep2.MirrorUsagePoint, want map[string]any) bool {
	for rt, v := range want {
		wantMRID, ok := v.(string)
		if !ok {
			continue
		}
		spec, ok := sep2.ReadingTypeSpecFor(rt)
		if !ok {
			return false
		}
		found := false
		for _, mmr := range mup.MirrorMeterReadings {
			if int(spec.UoM) == mmr.ReadingType.UoM && int(spec.Kind) == mmr.ReadingType.Kind && int(spec.DataQualifier) == mmr.ReadingType.DataQualifier {
				if mmr.MRID != wantMRID {
					return false
				}
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func mupReadingPeriodsMatch(mup sep2.MirrorUsagePoint, postRateSeconds int) bool {
	for _, mmr := range mup.MirrorMeterReadings {
		if mmr.Reading == nil {
			continue
		}
		if mmr.Reading.TimePeriodDuration != int64(postRateSeconds) {
			return false
		}
	}
	return true
}

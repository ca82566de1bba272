package action

import (
	"context"
	"time"

	"github.com/cactuslab/cactus-client-go/internal/sep2"
	"github.com/cactuslab/cactus-client-go/internal/step"
)

// standardDiscoveryTargets are the leaf kinds simulate-client
// discovers on its first repeat; the walk plan fills in every
// ancestor automatically.
var standardDiscoveryTargets = []sep2.Kind{
	sep2.KindConnectionPoint,
	sep2.KindDERCapability,
	sep2.KindDERSettings,
	sep2.KindDERStatus,
	sep2.KindDefaultDERControl,
	sep2.KindDERControlList,
	sep2.KindSubscriptionList,
	sep2.KindMirrorUsagePointList,
}

const (
	simulateMUPAlias    = "simulate-client-mup"
	simulateCycleLength = 10
	simulateActivePowerMin   = -5000
	simulateActivePowerMax   = 5000
	simulateReactivePowerMin = -2000
	simulateReactivePowerMax = 2000
)

// triangleWave computes a deterministic triangle waveform:
// value = min + step*(max-min)/(cycle-1), step = repeatNumber mod cycle.
func triangleWave(repeatNumber, min, max, cycle int) int64 {
	step := repeatNumber % cycle
	return int64(min + step*(max-min)/(cycle-1))
}

// SimulateClient drives a synthetic client: discovery and a site MUP
// on repeat 0, then two triangle-wave readings on every later repeat,
// until total-simulations repeats have run.
func SimulateClient(ctx context.Context, ac *Context, s *step.Execution, params map[string]any) (Result, error) {
	frequencySeconds := intParam(params, "frequency-seconds", 60)
	totalSimulations := intParam(params, "total-simulations", 1)
	repeatNumber := s.RepeatNumber

	if repeatNumber == 0 {
		if res, err := Discovery(ctx, ac, s, map[string]any{"targets": kindStrings(standardDiscoveryTargets)}); err != nil || !res.Completed {
			return res, err
		}
		if res, err := RespondDERControls(ctx, ac, s, nil); err != nil || !res.Completed {
			return res, err
		}
		upsertParams := map[string]any{
			"mup-id":        simulateMUPAlias,
			"location":      string(sep2.LocationSite),
			"reading-types": []string{"ActivePowerAvg", "ReactivePowerAvg"},
		}
		if res, err := UpsertMUP(ctx, ac, s, upsertParams); err != nil || !res.Completed {
			return res, err
		}
	} else {
		active := triangleWave(repeatNumber, simulateActivePowerMin, simulateActivePowerMax, simulateCycleLength)
		reactive := triangleWave(repeatNumber, simulateReactivePowerMin, simulateReactivePowerMax, simulateCycleLength)
		insertParams := map[string]any{
			"mup-id": simulateMUPAlias,
			"values": map[string]any{
				"ActivePowerAvg":   active,
				"ReactivePowerAvg": reactive,
			},
		}
		if res, err := InsertReadings(ctx, ac, s, insertParams); err != nil || !res.Completed {
			return res, err
		}
	}

	if repeatNumber+1 >= totalSimulations {
		return Done("simulation complete"), nil
	}
	notBefore := ac.now().Add(time.Duration(frequencySeconds) * time.Second)
	return Result{Completed: true, Repeat: true, NotBefore: &notBefore, Description: "simulated repeat complete"}, nil
}

func kindStrings(kinds []sep2.Kind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}

package check

import (
	"context"
	"time"

	"github.com/cactuslab/cactus-client-go/internal/resource"
	"github.com/cactuslab/cactus-client-go/internal/sep2"
	"github.com/cactuslab/cactus-client-go/internal/step"
)

const subscriptionReceivedNamespace = "subscription-received"

// derControlCandidate pairs a stored DERControl with its identifier,
// so filters can consult tags and ancestry without re-walking the
// store.
type derControlCandidate struct {
	id        resource.ID
	control   sep2.DERControl
	createdAt time.Time
}

// CheckDERControl filters the stored DERControl set down by the
// supplied predicates and compares the survivor count against
// minimum-count/maximum-count.
func CheckDERControl(ctx context.Context, cc *Context, s *step.Execution, params map[string]any) (Result, error) {
	candidates := collectDERControls(cc)
	return evaluateDERControlCandidates(cc, candidates, params)
}

// CheckDefaultDERControl is CheckDERControl's counterpart over the
// single fallback DefaultDERControl per program.
func CheckDefaultDERControl(ctx context.Context, cc *Context, s *step.Execution, params map[string]any) (Result, error) {
	var candidates []derControlCandidate
	for _, stored := range cc.Store.GetByKind(sep2.KindDefaultDERControl) {
		def, ok := stored.Payload.(sep2.DefaultDERControl)
		if !ok {
			continue
		}
		candidates = append(candidates, derControlCandidate{
			id:        stored.ID,
			createdAt: stored.CreatedAt,
			control: sep2.DERControl{
				MRID:           def.MRID,
				DERControlBase: def.DERControlBase,
			},
		})
	}
	return evaluateDERControlCandidates(cc, candidates, params)
}

func collectDERControls(cc *Context) []derControlCandidate {
	var out []derControlCandidate
	for _, stored := range cc.Store.GetByKind(sep2.KindDERControl) {
		derc, ok := stored.Payload.(sep2.DERControl)
		if !ok {
			continue
		}
		out = append(out, derControlCandidate{id: stored.ID, control: derc, createdAt: stored.CreatedAt})
	}
	return out
}

func evaluateDERControlCandidates(cc *Context, candidates []derControlCandidate, params map[string]any) (Result, error) {
	latestOnly := boolParam(params, "latest")
	if latestOnly && len(candidates) > 1 {
		best := candidates[0]
		for _, c := range candidates[1:] {
			if c.createdAt.After(best.createdAt) {
				best = c
			}
		}
		candidates = []derControlCandidate{best}
	}

	if derpPrimacy := boolParam(params, "derp-primacy"); derpPrimacy {
		candidates = filterByDERProgramPrimacy(cc, candidates)
	}

	if mrid := stringParam(params, "mrid", ""); mrid != "" {
		candidates = filterDERControls(candidates, func(c derControlCandidate) bool { return c.control.MRID == mrid })
	}
	if eventStatus, ok := intParamPtr(params, "event-status"); ok {
		candidates = filterDERControls(candidates, func(c derControlCandidate) bool {
			return int(c.control.EventStatus.CurrentStatus) == eventStatus
		})
	}
	if energize, ok := params["op-mod-energize"].(bool); ok {
		candidates = filterDERControls(candidates, func(c derControlCandidate) bool {
			return c.control.DERControlBase.OpModEnergize != nil && *c.control.DERControlBase.OpModEnergize == energize
		})
	}
	if subID := stringParam(params, "sub-id", ""); subID != "" {
		candidates = filterDERControls(candidates, func(c derControlCandidate) bool {
			return cc.Store.HasTag(c.id, subscriptionReceivedNamespace, subID)
		})
	}

	count := len(candidates)
	if min, ok := intParamPtr(params, "minimum-count"); ok && count < min {
		return failed("matched %d DERControl(s), expected at least %d", count, min), nil
	}
	if max, ok := intParamPtr(params, "maximum-count"); ok && count > max {
		return failed("matched %d DERControl(s), expected at most %d", count, max), nil
	}
	return passed(describeDERControlMatch(count)), nil
}

func describeDERControlMatch(count int) string {
	if count == 1 {
		return "1 DERControl matched"
	}
	return itoa(count) + " DERControls matched"
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		return "-" + string(digits)
	}
	return string(digits)
}

func filterDERControls(candidates []derControlCandidate, keep func(derControlCandidate) bool) []derControlCandidate {
	var out []derControlCandidate
	for _, c := range candidates {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

// filterByDERProgramPrimacy restricts candidates to those whose parent
// DERProgram carries the lowest (most authoritative) primacy value
// among the programs represented in the candidate set.
func filterByDERProgramPrimacy(cc *Context, candidates []derControlCandidate) []derControlCandidate {
	bestPrimacy := -1
	primacyOf := map[string]int{}
	for _, c := range candidates {
		program, ok := cc.Store.GetAncestorOf(sep2.KindDERProgram, c.id)
		if !ok {
			continue
		}
		derp, ok := program.Payload.(sep2.DERProgram)
		if !ok {
			continue
		}
		primacyOf[c.id.Key()] = derp.Primacy
		if bestPrimacy == -1 || derp.Primacy < bestPrimacy {
			bestPrimacy = derp.Primacy
		}
	}
	if bestPrimacy == -1 {
		return candidates
	}
	return filterDERControls(candidates, func(c derControlCandidate) bool {
		p, ok := primacyOf[c.id.Key()]
		return ok && p == bestPrimacy
	})
}

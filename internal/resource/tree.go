package resource

import "github.com/cactuslab/cactus-client-go/internal/sep2"

// WalkPlan returns the ordered visit plan covering every ancestor of
// every target kind, with no duplicates.
func WalkPlan(targets []sep2.Kind) []sep2.Kind { return sep2.WalkPlan(targets) }

// ParentKind returns the parent kind of kind, or ("", false) for a
// root kind.
func ParentKind(kind sep2.Kind) (sep2.Kind, bool) { return sep2.ParentKind(kind) }

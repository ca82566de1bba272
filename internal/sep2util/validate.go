package sep2util

import (
	"reflect"

	"github.com/cactuslab/cactus-client-go/internal/sep2"
)

// IsInvalidResource reports whether a stored resource fails the
// server-minted mRID contract: its mRID field, if the struct carries
// one, must satisfy IsInvalidMRID against the server's PEN.
// MirrorUsagePoints are exempt — their mRID is client-derived, not
// server-minted, so the server's PEN has no bearing on it.
func IsInvalidResource(kind sep2.Kind, payload any, serverPEN int) bool {
	if kind == sep2.KindMirrorUsagePoint {
		return false
	}
	v := reflect.Indirect(reflect.ValueOf(payload))
	if v.Kind() != reflect.Struct {
		return false
	}
	field := v.FieldByName("MRID")
	if !field.IsValid() || field.Kind() != reflect.String {
		return false
	}
	return IsInvalidMRID(field.String(), serverPEN)
}

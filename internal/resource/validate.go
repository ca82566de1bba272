package resource

import (
	"github.com/cactuslab/cactus-client-go/internal/sep2"
	"github.com/cactuslab/cactus-client-go/internal/sep2util"
)

// serverMintedMRIDKinds enforce the PEN-suffix discipline on their
// mRID: these are resources the server itself creates, so its PEN
// must appear in the mRID. MirrorUsagePoints are client-minted and
// explicitly exempt.
var serverMintedMRIDKinds = map[sep2.Kind]bool{
	sep2.KindDERControl:        true,
	sep2.KindDefaultDERControl: true,
}

// mridOf extracts the mRID of a stored payload, if the kind carries
// one.
func mridOf(stored *Stored) (string, bool) {
	switch v := stored.Payload.(type) {
	case sep2.DERControl:
		return v.MRID, true
	case sep2.DefaultDERControl:
		return v.MRID, true
	case sep2.MirrorUsagePoint:
		return v.MRID, true
	}
	return "", false
}

// IsInvalidResource reports whether stored fails the PEN-suffix
// discipline expected of server-minted resources. MirrorUsagePoints
// are exempt since their mRID is client-generated.
func IsInvalidResource(stored *Stored, serverPEN int) bool {
	if stored.Kind == sep2.KindMirrorUsagePoint {
		return false
	}
	if !serverMintedMRIDKinds[stored.Kind] {
		return false
	}
	mrid, ok := mridOf(stored)
	if !ok {
		return false
	}
	return sep2util.IsInvalidMRID(mrid, serverPEN)
}

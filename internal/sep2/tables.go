package sep2

// UoM is a SEP2 unit-of-measure code.
type UoM int

const (
	UoMRealPowerWatt     UoM = 38
	UoMReactivePowerVAR  UoM = 63
	UoMFrequencyHz       UoM = 33
	UoMVoltage           UoM = 29
)

// ReadingKind is a SEP2 FlowDirection/Kind qualifier.
type ReadingKind int

const (
	ReadingKindPower ReadingKind = 37
)

// DataQualifier distinguishes an average/instantaneous/max/min
// reading of the same measurement family.
type DataQualifier int

const (
	DataQualifierAverage     DataQualifier = 2
	DataQualifierStandard    DataQualifier = 0
	DataQualifierMaximum     DataQualifier = 8
	DataQualifierMinimum     DataQualifier = 9
)

// ReadingTypeSpec is the (UoM, Kind, DataQualifier) tuple Table 1
// assigns to a reading-type family/variant pair.
type ReadingTypeSpec struct {
	UoM           UoM
	Kind          ReadingKind
	DataQualifier DataQualifier
}

// readingFamilies is Table 1: measurement family -> UoM. Every family
// uses ReadingKindPower and varies only by DataQualifier, selected by
// the variant suffix (Avg/Inst/Max/Min).
var readingFamilies = map[string]UoM{
	"ActivePower":         UoMRealPowerWatt,
	"ReactivePower":        UoMReactivePowerVAR,
	"Frequency":            UoMFrequencyHz,
	"VoltageSinglePhase":   UoMVoltage,
}

// variantQualifier maps the reading-type variant suffix to its
// data qualifier.
var variantQualifier = map[string]DataQualifier{
	"Avg":  DataQualifierAverage,
	"Inst": DataQualifierStandard,
	"Max":  DataQualifierMaximum,
	"Min":  DataQualifierMinimum,
}

// ReadingTypeSpecFor resolves a reading-type name of the form
// "<Family><Variant>" (e.g. "ActivePowerAvg") to its Table 1 tuple.
// The boolean result is false for unrecognised names.
func ReadingTypeSpecFor(readingType string) (ReadingTypeSpec, bool) {
	for family, uom := range readingFamilies {
		if len(readingType) <= len(family) || readingType[:len(family)] != family {
			continue
		}
		variant := readingType[len(family):]
		qualifier, ok := variantQualifier[variant]
		if !ok {
			continue
		}
		return ReadingTypeSpec{UoM: uom, Kind: ReadingKindPower, DataQualifier: qualifier}, true
	}
	return ReadingTypeSpec{}, false
}

// ReadingTypeNameFor reverses ReadingTypeSpecFor, recovering the
// "<Family><Variant>" name for a wire-level (UoM, Kind, DataQualifier)
// tuple. The boolean result is false for tuples not in Table 1.
func ReadingTypeNameFor(spec ReadingTypeSpec) (string, bool) {
	for family, uom := range readingFamilies {
		if uom != spec.UoM {
			continue
		}
		for variant, qualifier := range variantQualifier {
			if qualifier == spec.DataQualifier {
				return family + variant, true
			}
		}
	}
	return "", false
}

// RoleFlags is a SEP2 RoleFlagsType bitmask.
type RoleFlags int

const (
	RoleFlagIsMirror                  RoleFlags = 1 << 0
	RoleFlagIsPremisesAggregationPoint RoleFlags = 1 << 1
	RoleFlagIsDER                     RoleFlags = 1 << 4
	RoleFlagIsSubmeter                RoleFlags = 1 << 7
)

// MUPLocation distinguishes the two role-flag presets of Table 2.
type MUPLocation string

const (
	LocationDevice MUPLocation = "device"
	LocationSite   MUPLocation = "site"
)

// RoleFlagsFor returns the Table 2 role-flags bitmask for a location.
func RoleFlagsFor(location MUPLocation) RoleFlags {
	switch location {
	case LocationSite:
		return RoleFlagIsMirror | RoleFlagIsPremisesAggregationPoint
	default:
		return RoleFlagIsMirror | RoleFlagIsDER | RoleFlagIsSubmeter
	}
}

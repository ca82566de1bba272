package sep2util

import "testing"

func TestGenerateMRIDShapeAndPENSuffix(t *testing.T) {
	mrid := GenerateMRID("seed", 12345)
	if len(mrid) != MRIDLength {
		t.Fatalf("len(mrid) = %d, want %d", len(mrid), MRIDLength)
	}
	if !upperHexRE.MatchString(mrid) {
		t.Errorf("mrid %q is not upper-hex", mrid)
	}
	if mrid[24:] != "00012345" {
		t.Errorf("pen suffix = %q, want 00012345", mrid[24:])
	}
}

func TestGenerateMRIDDeterministic(t *testing.T) {
	a := GenerateMRID("same-seed", 1)
	b := GenerateMRID("same-seed", 1)
	if a != b {
		t.Errorf("GenerateMRID is not deterministic: %q != %q", a, b)
	}
	c := GenerateMRID("different-seed", 1)
	if a == c {
		t.Error("different seeds produced the same mRID")
	}
}

func TestMUPMRIDSeedOrderIndependent(t *testing.T) {
	a := MUPMRIDSeed("loc", "client", []string{"kWh", "kVAh"})
	b := MUPMRIDSeed("loc", "client", []string{"kVAh", "kWh"})
	if a != b {
		t.Errorf("MUPMRIDSeed should be independent of reading-type order: %q != %q", a, b)
	}
}

func TestMUPMRIDAndMMRMRIDDiffer(t *testing.T) {
	mup := MUPMRID("loc", "client-a", []string{"kWh"}, 12345)
	mmr := MMRMRID(mup, "kWh", 12345)
	if mup == mmr {
		t.Error("MUP and MMR mRIDs should differ")
	}
	if !IsInvalidMRID("", 12345) {
		t.Error("empty mRID should be invalid")
	}
	if IsInvalidMRID(mup, 12345) {
		t.Errorf("well-formed mup mRID %q reported invalid", mup)
	}
}

func TestIsInvalidMRID(t *testing.T) {
	valid := GenerateMRID("seed", 555)
	if IsInvalidMRID(valid, 555) {
		t.Error("expected valid mRID to pass")
	}
	if !IsInvalidMRID(valid, 556) {
		t.Error("expected mRID to fail against a different PEN")
	}
	if !IsInvalidMRID("TOOSHORT", 555) {
		t.Error("expected a short string to be invalid")
	}
	if !IsInvalidMRID("zzzzzzzzzzzzzzzzzzzzzzzz00000555", 555) {
		t.Error("expected a lower-case mRID to be invalid")
	}
}

func TestMRIDFromExplicit(t *testing.T) {
	mrid := MRIDFromExplicit("abc", 42)
	if len(mrid) != MRIDLength {
		t.Fatalf("len(mrid) = %d, want %d", len(mrid), MRIDLength)
	}
	if IsInvalidMRID(mrid, 42) {
		t.Errorf("MRIDFromExplicit result failed IsInvalidMRID: %q", mrid)
	}

	long := MRIDFromExplicit("0123456789ABCDEF0123456789ABCDEF", 42)
	if len(long) != MRIDLength {
		t.Fatalf("len(mrid) = %d, want %d", len(long), MRIDLength)
	}
}

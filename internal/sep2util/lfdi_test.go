package sep2util

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"strings"
	"testing"
	"time"
)

func TestValidateLFDI(t *testing.T) {
	valid := strings.Repeat("A", 40)
	if err := ValidateLFDI(valid); err != nil {
		t.Errorf("expected %q to be valid: %v", valid, err)
	}
	if err := ValidateLFDI(strings.Repeat("A", 39)); err == nil {
		t.Error("expected a 39-char lfdi to be rejected")
	}
	if err := ValidateLFDI(strings.Repeat("Z", 40)); err == nil {
		t.Error("expected a non-hex lfdi to be rejected")
	}
}

func TestLFDIToSFDI(t *testing.T) {
	lfdi := "123456789ABCDEF0123456789ABCDEF012345678"[:40]
	sfdi, err := LFDIToSFDI(lfdi)
	if err != nil {
		t.Fatalf("LFDIToSFDI: %v", err)
	}
	if sfdi <= 0 {
		t.Errorf("sfdi = %d, want positive", sfdi)
	}

	// Changing only the part of the LFDI beyond the first 9 hex chars
	// must not change the derived SFDI.
	other := "123456789FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF"[:40]
	sfdi2, err := LFDIToSFDI(other)
	if err != nil {
		t.Fatalf("LFDIToSFDI: %v", err)
	}
	if sfdi != sfdi2 {
		t.Errorf("sfdi should only depend on the first 9 hex chars: %d != %d", sfdi, sfdi2)
	}
}

func TestLFDIToSFDIRejectsInvalidLFDI(t *testing.T) {
	if _, err := LFDIToSFDI("not-hex"); err == nil {
		t.Error("expected an error for a malformed lfdi")
	}
}

func TestLFDIFromCertificate(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("creating certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parsing certificate: %v", err)
	}

	lfdi := LFDIFromCertificate(cert)
	if len(lfdi) != LFDILength {
		t.Errorf("len(lfdi) = %d, want %d", len(lfdi), LFDILength)
	}
	if err := ValidateLFDI(lfdi); err != nil {
		t.Errorf("derived lfdi failed validation: %v", err)
	}
}

package action

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cactuslab/cactus-client-go/internal/config"
	"github.com/cactuslab/cactus-client-go/internal/discovery"
	"github.com/cactuslab/cactus-client-go/internal/notification"
	"github.com/cactuslab/cactus-client-go/internal/protocol"
	"github.com/cactuslab/cactus-client-go/internal/resource"
	"github.com/cactuslab/cactus-client-go/internal/tracker"
)

const testLFDI = "0011223344556677889900112233445566778899"

func writeSelfSignedKeyPair(t *testing.T, dir string) (certPath, keyPath string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test-client"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}

	certPath = filepath.Join(dir, "client.pem")
	keyPath = filepath.Join(dir, "client.key")

	certOut, err := os.Create(certPath)
	if err != nil {
		t.Fatalf("create cert file: %v", err)
	}
	defer certOut.Close()
	pem.Encode(certOut, &pem.Block{Type: "CERTIFICATE", Bytes: der})

	keyBytes, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	keyOut, err := os.Create(keyPath)
	if err != nil {
		t.Fatalf("create key file: %v", err)
	}
	defer keyOut.Close()
	pem.Encode(keyOut, &pem.Block{Type: "EC PRIVATE KEY", Bytes: keyBytes})
	return certPath, keyPath
}

// newTestActionContext builds a live-server-backed Context: a protocol
// client talking to an httptest TLS server, a fresh store, a discovery
// walker and a notification context over the same handler.
func newTestActionContext(t *testing.T, handler http.HandlerFunc) (*Context, *httptest.Server) {
	t.Helper()

	srv := httptest.NewTLSServer(handler)
	t.Cleanup(srv.Close)

	certPath, keyPath := writeSelfSignedKeyPair(t, t.TempDir())
	clientCfg := config.ClientConfig{ID: "c1", LFDI: testLFDI, PEN: 12345, CertPath: certPath, KeyPath: keyPath}
	serverCfg := config.ServerConfig{DeviceCapabilityURI: srv.URL + "/dcap", TLSValidationPolicy: config.TLSValidationInsecure}

	rt := tracker.NewResponseTracker()
	client, err := protocol.New(clientCfg, serverCfg, rt, nil, nil)
	if err != nil {
		t.Fatalf("protocol.New: %v", err)
	}

	store := resource.NewStore()
	warnings := tracker.NewWarningTracker()
	walker := discovery.NewWalker(client, store, warnings, nil, 10)
	notifications := notification.NewContext(srv.Client(), srv.URL, store, rt, warnings, "c1", nil)

	ac := &Context{
		Client:        client,
		Store:         store,
		Notifications: notifications,
		Walker:        walker,
		ClientConfig:  clientCfg,
		ServerConfig:  serverCfg,
		RootHref:      srv.URL + "/dcap",
		Warnings:      warnings,
		Now:           time.Now,
		StartedAt:     time.Now(),
	}
	return ac, srv
}

package discovery

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
	"github.com/cactuslab/cactus-client-go/internal/protocol"
	"github.com/cactuslab/cactus-client-go/internal/resource"
	"github.com/cactuslab/cactus-client-go/internal/sep2"
	"github.com/cactuslab/cactus-client-go/internal/tracker"
)

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

func newTestWalker(t *testing.T, handler http.HandlerFunc) (*Walker, *resource.Store, *httptest.Server) {
	t.Helper()

	srv := httptest.NewTLSServer(handler)
	t.Cleanup(srv.Close)

	certPath, keyPath := writeSelfSignedKeyPair(t, t.TempDir())
	clientCfg := config.ClientConfig{ID: "c1", CertPath: certPath, KeyPath: keyPath}
	serverCfg := config.ServerConfig{DeviceCapabilityURI: srv.URL + "/dcap", TLSValidationPolicy: config.TLSValidationInsecure}

	client, err := protocol.New(clientCfg, serverCfg, tracker.NewResponseTracker(), nil, nil)
	if err != nil {
		t.Fatalf("protocol.New: %v", err)
	}

	store := resource.NewStore()
	warnings := tracker.NewWarningTracker()
	w := NewWalker(client, store, warnings, nil, 10)
	return w, store, srv
}

func TestWalkFetchesRoot(t *testing.T) {
	w, store, srv := newTestWalker(t, func(rw http.ResponseWriter, r *http.Request) {
		rw.Write([]byte(`<DeviceCapability href="/dcap"/>`))
	})

	if err := w.Walk(t.Context(), nil, srv.URL+"/dcap", []sep2.Kind{sep2.KindDeviceCapability}); err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(store.GetByKind(sep2.KindDeviceCapability)) != 1 {
		t.Error("expected the root resource to be stored")
	}
}

func TestWalkSkipsBranchWithMissingParentLink(t *testing.T) {
	w, store, srv := newTestWalker(t, func(rw http.ResponseWriter, r *http.Request) {
		rw.Write([]byte(`<DeviceCapability href="/dcap"/>`))
	})

	if err := w.Walk(t.Context(), nil, srv.URL+"/dcap", []sep2.Kind{sep2.KindEndDevice}); err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(store.GetByKind(sep2.KindEndDevice)) != 0 {
		t.Error("expected no EndDevice resources since the root has no EndDeviceListLink")
	}
}

func TestWalkRefreshesSingleton(t *testing.T) {
	w, store, srv := newTestWalker(t, func(rw http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/dcap":
			rw.Write([]byte(`<DeviceCapability href="/dcap"><TimeLink href="/tm"/></DeviceCapability>`))
		case "/tm":
			rw.Write([]byte(`<Time href="/tm"><currentTime>1000</currentTime></Time>`))
		}
	})

	if err := w.Walk(t.Context(), nil, srv.URL+"/dcap", []sep2.Kind{sep2.KindTime}); err != nil {
		t.Fatalf("Walk: %v", err)
	}
	times := store.GetByKind(sep2.KindTime)
	if len(times) != 1 {
		t.Fatalf("expected one Time resource, got %d", len(times))
	}
}

func TestWalkRefreshesListAndClearsStaleItems(t *testing.T) {
	firstPass := true
	w, store, srv := newTestWalker(t, func(rw http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/dcap":
			rw.Write([]byte(`<DeviceCapability href="/dcap"><EndDeviceListLink href="/edev"/></DeviceCapability>`))
		case "/edev":
			if r.URL.Query().Get("s") != "" {
				// Any page past the first is empty, which ends pagination.
				rw.Write([]byte(`<EndDeviceList href="/edev" all="0" results="0"/>`))
				return
			}
			if firstPass {
				rw.Write([]byte(`<EndDeviceList href="/edev" all="2" results="2"><EndDevice href="/edev/1"/><EndDevice href="/edev/2"/></EndDeviceList>`))
			} else {
				rw.Write([]byte(`<EndDeviceList href="/edev" all="1" results="1"><EndDevice href="/edev/1"/></EndDeviceList>`))
			}
		}
	})

	if err := w.Walk(t.Context(), nil, srv.URL+"/dcap", []sep2.Kind{sep2.KindEndDevice}); err != nil {
		t.Fatalf("first Walk: %v", err)
	}
	if len(store.GetByKind(sep2.KindEndDevice)) != 2 {
		t.Fatalf("expected 2 EndDevices after first walk, got %d", len(store.GetByKind(sep2.KindEndDevice)))
	}

	firstPass = false
	if err := w.Walk(t.Context(), nil, srv.URL+"/dcap", []sep2.Kind{sep2.KindEndDevice}); err != nil {
		t.Fatalf("second Walk: %v", err)
	}
	if len(store.GetByKind(sep2.KindEndDevice)) != 1 {
		t.Errorf("expected the stale EndDevice to be cleared, got %d remaining", len(store.GetByKind(sep2.KindEndDevice)))
	}
}

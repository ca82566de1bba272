// Package config defines the client and server configuration structs
// this harness runs against. Authoring or editing the on-disk document
// is out of scope; Load exists only to hand cmd/cactus-client an
// already-well-formed Root.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"

	"github.com/cactuslab/cactus-client-go/internal/cerrors"
)

// Role distinguishes a device-role client from an aggregator-role
// client.
type Role string

const (
	RoleDevice     Role = "device"
	RoleAggregator Role = "aggregator"
)

// ClientConfig is one logical test client.
type ClientConfig struct {
	ID              string `toml:"id" validate:"required"`
	Role            Role   `toml:"role" validate:"required,oneof=device aggregator"`
	CertPath        string `toml:"cert_path" validate:"required"`
	KeyPath         string `toml:"key_path" validate:"required"`
	LFDI            string `toml:"lfdi" validate:"required,len=40,hexadecimal"`
	PEN             int    `toml:"pen" validate:"required"`
	PIN             int    `toml:"pin"`
	NominalMaxWatts int64  `toml:"nominal_max_watts"`
	UserAgent       string `toml:"user_agent,omitempty"`
}

// TLSValidationPolicy distinguishes how the harness validates the
// server's TLS certificate chain.
type TLSValidationPolicy string

const (
	TLSValidationSystem      TLSValidationPolicy = "system"
	TLSValidationCustomAnchor TLSValidationPolicy = "custom_anchor"
	TLSValidationInsecure    TLSValidationPolicy = "insecure"
)

// ServerConfig describes the server under test and the notification
// collector it must be able to reach.
type ServerConfig struct {
	DeviceCapabilityURI     string              `toml:"device_capability_uri" validate:"required,url"`
	TLSValidationPolicy     TLSValidationPolicy `toml:"tls_validation_policy" validate:"required,oneof=system custom_anchor insecure"`
	VerifyHostname          bool                `toml:"verify_hostname"`
	TrustAnchorPath         string              `toml:"trust_anchor_path,omitempty"`
	NotificationCollectorURI string             `toml:"notification_collector_uri" validate:"required,url"`
	ExpectedServerPEN       int                 `toml:"expected_server_pen"`
	RefetchDelayMS          int                 `toml:"refetch_delay_ms"`
}

// Root is the full config document: one server, many clients.
type Root struct {
	Server  ServerConfig   `toml:"server" validate:"required"`
	Clients []ClientConfig `toml:"clients" validate:"required,dive"`
}

var validate = validator.New()

// Load reads and validates a Root from a TOML file at path.
func Load(path string) (*Root, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cerrors.New(cerrors.ConfigKind, "config.Load", err)
	}

	var root Root
	if err := toml.Unmarshal(data, &root); err != nil {
		return nil, cerrors.New(cerrors.ConfigKind, "config.Load", err)
	}

	if err := validate.Struct(&root); err != nil {
		return nil, cerrors.New(cerrors.ConfigKind, "config.Load", err)
	}

	for _, c := range root.Clients {
		if _, err := os.Stat(c.CertPath); err != nil {
			return nil, cerrors.New(cerrors.ConfigKind, "config.Load", fmt.Errorf("client %s cert: %w", c.ID, err))
		}
		if _, err := os.Stat(c.KeyPath); err != nil {
			return nil, cerrors.New(cerrors.ConfigKind, "config.Load", fmt.Errorf("client %s key: %w", c.ID, err))
		}
	}

	return &root, nil
}

// ClientByAlias looks up a client configuration by its id.
func (r *Root) ClientByAlias(alias string) (*ClientConfig, bool) {
	for i := range r.Clients {
		if r.Clients[i].ID == alias {
			return &r.Clients[i], true
		}
	}
	return nil, false
}

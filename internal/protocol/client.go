// Package protocol implements the mutually-authenticated XML HTTP(S)
// client: request/response logging, XSD validation, submit-then-
// refetch write semantics, rate-limit retry, paginated list traversal,
// and the expected-error request variants.
package protocol

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/cactuslab/cactus-client-go/internal/cerrors"
	"github.com/cactuslab/cactus-client-go/internal/config"
	"github.com/cactuslab/cactus-client-go/internal/sep2"
	"github.com/cactuslab/cactus-client-go/internal/step"
	"github.com/cactuslab/cactus-client-go/internal/tracker"
)

// rateLimitSchedule is the fixed, increasing HTTP 429 retry schedule:
// 1s, 2s, 4s, 8s, 16s. After the last entry the 429 response is
// returned as-is.
var rateLimitSchedule = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	4 * time.Second,
	8 * time.Second,
	16 * time.Second,
}

// fixedSchedule adapts rateLimitSchedule to backoff.BackOff: each call
// to NextBackOff returns the next fixed delay, signalling Stop once
// the schedule is exhausted.
type fixedSchedule struct {
	durations []time.Duration
	idx       int
}

func (f *fixedSchedule) NextBackOff() time.Duration {
	if f.idx >= len(f.durations) {
		return backoff.Stop
	}
	d := f.durations[f.idx]
	f.idx++
	return d
}

func (f *fixedSchedule) Reset() { f.idx = 0 }

// Client is the mutually-authenticated protocol client for one test
// client identity.
type Client struct {
	httpClient *http.Client
	clientCfg  config.ClientConfig
	serverCfg  config.ServerConfig
	tracker    *tracker.ResponseTracker
	validator  Validator
	logger     *slog.Logger
	sleep      func(time.Duration)
}

// New builds a Client whose TLS transport presents clientCfg's
// certificate and validates the server per serverCfg's policy.
func New(clientCfg config.ClientConfig, serverCfg config.ServerConfig, rt *tracker.ResponseTracker, validator Validator, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if validator == nil {
		validator = NoopValidator{}
	}

	cert, err := tls.LoadX509KeyPair(clientCfg.CertPath, clientCfg.KeyPath)
	if err != nil {
		return nil, cerrors.New(cerrors.ConfigKind, "protocol.New", fmt.Errorf("load client cert/key: %w", err))
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	switch serverCfg.TLSValidationPolicy {
	case config.TLSValidationInsecure:
		tlsConfig.InsecureSkipVerify = true
	case config.TLSValidationCustomAnchor:
		if serverCfg.TrustAnchorPath == "" {
			return nil, cerrors.Newf(cerrors.ConfigKind, "protocol.New", "custom_anchor policy requires trust_anchor_path")
		}
		pemBytes, err := os.ReadFile(serverCfg.TrustAnchorPath)
		if err != nil {
			return nil, cerrors.New(cerrors.ConfigKind, "protocol.New", fmt.Errorf("read trust anchor: %w", err))
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pemBytes) {
			return nil, cerrors.Newf(cerrors.ConfigKind, "protocol.New", "trust anchor file contains no certificates")
		}
		tlsConfig.RootCAs = pool
	}

	if !serverCfg.VerifyHostname && !tlsConfig.InsecureSkipVerify {
		tlsConfig.InsecureSkipVerify = true
		tlsConfig.VerifyConnection = verifyChainIgnoringHostname(tlsConfig.RootCAs)
	}

	return &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{TLSClientConfig: tlsConfig},
		},
		clientCfg: clientCfg,
		serverCfg: serverCfg,
		tracker:   rt,
		validator: validator,
		logger:    logger.With("component", "protocol", "client", clientCfg.ID),
		sleep:     time.Sleep,
	}, nil
}

// verifyChainIgnoringHostname builds a VerifyConnection callback that
// performs full certificate-chain validation against roots but skips
// the hostname check, for servers configured with VerifyHostname
// false. roots may be nil, in which case the system pool is used.
func verifyChainIgnoringHostname(roots *x509.CertPool) func(tls.ConnectionState) error {
	return func(cs tls.ConnectionState) error {
		if len(cs.PeerCertificates) == 0 {
			return fmt.Errorf("no peer certificates presented")
		}
		intermediates := x509.NewCertPool()
		for _, cert := range cs.PeerCertificates[1:] {
			intermediates.AddCert(cert)
		}
		_, err := cs.PeerCertificates[0].Verify(x509.VerifyOptions{
			Roots:         roots,
			Intermediates: intermediates,
		})
		return err
	}
}

// Request performs a single TLS HTTP request, retrying HTTP 429
// responses on the fixed rate-limit schedule. Each attempt, including
// retries, is logged to the response tracker with its XSD-validated
// body.
func (c *Client) Request(ctx context.Context, s *step.Execution, path, method string, body []byte) (*http.Response, []byte, error) {
	url := c.resolveURL(path)
	sched := &fixedSchedule{durations: rateLimitSchedule}

	for {
		resp, respBody, err := c.doOnce(ctx, s, url, method, body)
		if err != nil {
			return nil, nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, respBody, nil
		}

		delay := sched.NextBackOff()
		if delay == backoff.Stop {
			// Schedule exhausted: return the 429 response as-is.
			return resp, respBody, nil
		}
		c.sleep(delay)
	}
}

func (c *Client) doOnce(ctx context.Context, s *step.Execution, url, method string, body []byte) (*http.Response, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, nil, cerrors.New(cerrors.RequestKind, "protocol.Request", err)
	}
	req.Header.Set("Accept", sep2.MimeType)
	if body != nil {
		req.Header.Set("Content-Type", sep2.MimeType)
	}
	if c.clientCfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.clientCfg.UserAgent)
	}

	stepID := ""
	if s != nil && s.Step != nil {
		stepID = s.Step.ID
	}
	c.tracker.BeginRequest(tracker.ServerResponse{
		StepID: stepID, ClientAlias: c.clientCfg.ID, Method: method, URL: url, RequestBody: body, At: time.Now(),
	})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.tracker.EndRequest(tracker.ServerResponse{
			StepID: stepID, ClientAlias: c.clientCfg.ID, Method: method, URL: url, RequestBody: body, Err: err, At: time.Now(),
		})
		return nil, nil, cerrors.New(cerrors.RequestKind, "protocol.Request", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.tracker.EndRequest(tracker.ServerResponse{
			StepID: stepID, ClientAlias: c.clientCfg.ID, Method: method, URL: url, RequestBody: body,
			StatusCode: resp.StatusCode, Err: err, At: time.Now(),
		})
		return nil, nil, cerrors.New(cerrors.RequestKind, "protocol.Request", err)
	}

	var xsdErrors []string
	if len(respBody) > 0 {
		xsdErrors = c.validator.Validate(method+" "+url, respBody)
	}

	c.tracker.EndRequest(tracker.ServerResponse{
		StepID: stepID, ClientAlias: c.clientCfg.ID, Method: method, URL: url, RequestBody: body,
		StatusCode: resp.StatusCode, ResponseBody: respBody, XSDErrors: xsdErrors, At: time.Now(),
	})

	return resp, respBody, nil
}

// resolveURL turns an href into the URL to request. An absolute URI
// is used as-is; a relative href such as "/edev/1", the form the
// server uses in its links and Location headers, is resolved against
// the configured DeviceCapabilityURI.
func (c *Client) resolveURL(path string) string {
	ref, err := url.Parse(path)
	if err != nil || ref.IsAbs() {
		return path
	}
	base, err := url.Parse(c.serverCfg.DeviceCapabilityURI)
	if err != nil || !base.IsAbs() {
		return path
	}
	return base.ResolveReference(ref).String()
}

// Get issues a GET and parses the body with dst, which must be a
// pointer. Non-2xx or a parse failure raises RequestKind.
func (c *Client) Get(ctx context.Context, s *step.Execution, href string, dst any) error {
	resp, body, err := c.Request(ctx, s, href, http.MethodGet, nil)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return cerrors.Newf(cerrors.RequestKind, "protocol.Get", "GET %s: unexpected status %d", href, resp.StatusCode)
	}
	if err := xml.Unmarshal(body, dst); err != nil {
		return cerrors.New(cerrors.RequestKind, "protocol.Get", fmt.Errorf("parse %s: %w", href, err))
	}
	return nil
}

// ClientErrorRequest issues a request expected to fail: succeeds only
// when the status is 4xx and the body parses as the protocol's Error
// payload.
func (c *Client) ClientErrorRequest(ctx context.Context, s *step.Execution, path, method string, body []byte) (*sep2.ErrorPayload, error) {
	resp, respBody, err := c.Request(ctx, s, path, method, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 400 || resp.StatusCode >= 500 {
		return nil, cerrors.Newf(cerrors.RequestKind, "protocol.ClientErrorRequest", "%s %s: expected 4xx, got %d", method, path, resp.StatusCode)
	}
	var errPayload sep2.ErrorPayload
	if err := xml.Unmarshal(respBody, &errPayload); err != nil {
		return nil, cerrors.New(cerrors.RequestKind, "protocol.ClientErrorRequest", fmt.Errorf("parse error payload: %w", err))
	}
	return &errPayload, nil
}

// ClientErrorOrEmptyListResult is the outcome of
// ClientErrorOrEmptyList: Error is set for a 4xx response, WasEmpty
// is true for a 2xx empty list.
type ClientErrorOrEmptyListResult struct {
	Error    *sep2.ErrorPayload
	WasEmpty bool
}

// ClientErrorOrEmptyList is like ClientErrorRequest, but additionally
// accepts a 2xx response whose body parses as a list with all=0 and
// results=0. listAttrs extracts (all, results) from a raw list body.
func (c *Client) ClientErrorOrEmptyList(ctx context.Context, s *step.Execution, path, method string, body []byte, listAttrs func([]byte) (int, int, error)) (*ClientErrorOrEmptyListResult, error) {
	resp, respBody, err := c.Request(ctx, s, path, method, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		all, results, parseErr := listAttrs(respBody)
		if parseErr == nil && all == 0 && results == 0 {
			return &ClientErrorOrEmptyListResult{WasEmpty: true}, nil
		}
		return nil, cerrors.Newf(cerrors.RequestKind, "protocol.ClientErrorOrEmptyList", "%s %s: expected 4xx or empty list, got 2xx non-empty body", method, path)
	}
	if resp.StatusCode < 400 || resp.StatusCode >= 500 {
		return nil, cerrors.Newf(cerrors.RequestKind, "protocol.ClientErrorOrEmptyList", "%s %s: expected 4xx, got %d", method, path, resp.StatusCode)
	}
	var errPayload sep2.ErrorPayload
	if err := xml.Unmarshal(respBody, &errPayload); err != nil {
		return nil, cerrors.New(cerrors.RequestKind, "protocol.ClientErrorOrEmptyList", fmt.Errorf("parse error payload: %w", err))
	}
	return &ClientErrorOrEmptyListResult{Error: &errPayload}, nil
}

// DeleteAndCheck issues a DELETE, requires 2xx, and requires the
// follow-up GET to return one of {404, 401, 403}.
func (c *Client) DeleteAndCheck(ctx context.Context, s *step.Execution, href string) error {
	resp, _, err := c.Request(ctx, s, href, http.MethodDelete, nil)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return cerrors.Newf(cerrors.RequestKind, "protocol.DeleteAndCheck", "DELETE %s: unexpected status %d", href, resp.StatusCode)
	}

	checkResp, _, err := c.Request(ctx, s, href, http.MethodGet, nil)
	if err != nil {
		return err
	}
	switch checkResp.StatusCode {
	case http.StatusNotFound, http.StatusUnauthorized, http.StatusForbidden:
		return nil
	default:
		return cerrors.Newf(cerrors.RequestKind, "protocol.DeleteAndCheck", "GET %s after delete: unexpected status %d", href, checkResp.StatusCode)
	}
}

package protocol

import (
	"context"
	"encoding/xml"
	"fmt"
	"reflect"
	"time"

	"github.com/cactuslab/cactus-client-go/internal/cerrors"
	"github.com/cactuslab/cactus-client-go/internal/sep2util"
	"github.com/cactuslab/cactus-client-go/internal/step"
)

// SubmitAndRefetchResult carries the refetched payload and any
// property-diff warning produced comparing it to what was submitted.
type SubmitAndRefetchResult struct {
	Refetched any
	Warning   string // "" if the refetch matched within tolerance
}

// SubmitAndRefetch issues a write, waits RefetchDelayMS, then GETs the
// resulting resource back and compares it to what was submitted. dst
// must be a pointer to the same type as payload; on return it holds
// the refetched value. Unless noLocationHeader,
// the write's Location response header is used as the refetch URI;
// otherwise href itself is refetched.
func (c *Client) SubmitAndRefetch(ctx context.Context, s *step.Execution, method, href string, payload any, dst any, noLocationHeader bool) (*SubmitAndRefetchResult, error) {
	body, err := xml.Marshal(payload)
	if err != nil {
		return nil, cerrors.New(cerrors.UnhandledKind, "protocol.SubmitAndRefetch", fmt.Errorf("marshal payload: %w", err))
	}

	resp, _, err := c.Request(ctx, s, href, method, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, cerrors.Newf(cerrors.RequestKind, "protocol.SubmitAndRefetch", "%s %s: unexpected status %d", method, href, resp.StatusCode)
	}

	refetchURI := href
	if !noLocationHeader {
		location := resp.Header.Get("Location")
		if location == "" {
			return nil, cerrors.Newf(cerrors.RequestKind, "protocol.SubmitAndRefetch", "%s %s: missing Location header", method, href)
		}
		refetchURI = location
	}

	c.sleep(time.Duration(c.serverCfg.RefetchDelayMS) * time.Millisecond)

	if err := c.Get(ctx, s, refetchURI, dst); err != nil {
		return nil, err
	}

	warning := sep2util.PropertyDiff(payload, reflect.ValueOf(dst).Elem().Interface())
	return &SubmitAndRefetchResult{Refetched: reflect.ValueOf(dst).Elem().Interface(), Warning: warning}, nil
}

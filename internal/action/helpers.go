package action

import (
	"context"
	"encoding/xml"

	"github.com/cactuslab/cactus-client-go/internal/sep2"
	"github.com/cactuslab/cactus-client-go/internal/sep2util"
	"github.com/cactuslab/cactus-client-go/internal/step"
)

func marshalXML(v any) ([]byte, error) {
	return xml.Marshal(v)
}

// fetchAndDecode GETs href and decodes it per kind, returning the
// container payload and, for list kinds, its items.
func fetchAndDecode(ctx context.Context, ac *Context, s *step.Execution, kind sep2.Kind, href string) (any, []any, error) {
	_, body, err := ac.Client.Request(ctx, s, href, "GET", nil)
	if err != nil {
		return nil, nil, err
	}
	return sep2.DecodeResource(kind, body)
}

// listAttrsParser adapts sep2.DecodeResource/ListAttrs to the shape
// protocol.Client.ClientErrorOrEmptyList expects for reading a list's
// all/results attributes off a raw response body.
func listAttrsParser(kind sep2.Kind) func([]byte) (int, int, error) {
	return func(body []byte) (int, int, error) {
		container, _, err := sep2.DecodeResource(kind, body)
		if err != nil {
			return 0, 0, err
		}
		all, results := sep2.ListAttrs(container)
		return all, results, nil
	}
}

func lfdiToSFDI(lfdi string) (int64, error) {
	return sep2util.LFDIToSFDI(lfdi)
}

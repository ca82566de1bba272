package protocol

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cactuslab/cactus-client-go/internal/cerrors"
	"github.com/cactuslab/cactus-client-go/internal/step"
)

// DefaultMaxPages bounds how many pages a single list fetch will
// follow before giving up, guarding against a server that never
// terminates pagination.
const DefaultMaxPages = 20

// PageQuery builds the "?s=...&l=...&a=..." query string, omitting any
// parameter left at its zero value.
func PageQuery(start, limit int, changedAfter *int64) string {
	var parts []string
	if start != 0 {
		parts = append(parts, "s="+strconv.Itoa(start))
	}
	if limit != 0 {
		parts = append(parts, "l="+strconv.Itoa(limit))
	}
	if changedAfter != nil {
		parts = append(parts, "a="+strconv.FormatInt(*changedAfter, 10))
	}
	if len(parts) == 0 {
		return ""
	}
	return "?" + strings.Join(parts, "&")
}

// PageResult is what a caller's page parser extracts from one list
// page response.
type PageResult[T any] struct {
	All     int
	Results int
	Items   []T
}

// PaginateList iteratively GETs listHref with increasing offsets until
// a page yields zero items, cross-checking each page's declared
// `results`/`all` attributes against the actual item count, prior
// pages, and finally the total item count collected across every page
// (divergences log a warning via warn, never fail). Exceeding
// maxPages (0 means DefaultMaxPages) raises RequestKind.
func PaginateList[T any](ctx context.Context, c *Client, s *step.Execution, listHref string, pageSize int, maxPages int, parsePage func(body []byte) (PageResult[T], error), warn func(string)) ([]T, error) {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	var items []T
	offset := 0
	priorAll := -1
	firstAll := -1
	terminated := false

	for page := 0; page < maxPages; page++ {
		href := listHref + PageQuery(offset, pageSize, nil)

		_, body, err := c.Request(ctx, s, href, "GET", nil)
		if err != nil {
			return nil, err
		}

		result, err := parsePage(body)
		if err != nil {
			return nil, cerrors.New(cerrors.RequestKind, "protocol.PaginateList", err)
		}

		if result.Results != len(result.Items) {
			warn(fmt.Sprintf("%s: results attribute %d does not match %d returned items", listHref, result.Results, len(result.Items)))
		}
		if priorAll >= 0 && priorAll != result.All {
			warn(fmt.Sprintf("%s: all attribute changed from %d to %d across pages", listHref, priorAll, result.All))
		}
		if firstAll < 0 {
			firstAll = result.All
		}
		priorAll = result.All

		if len(result.Items) == 0 {
			terminated = true
			break
		}
		items = append(items, result.Items...)
		offset += len(result.Items)
	}

	if !terminated {
		return nil, cerrors.Newf(cerrors.RequestKind, "protocol.PaginateList", "%s: exceeded %d pages without a terminating empty page", listHref, maxPages)
	}
	if firstAll >= 0 && firstAll != len(items) {
		warn(fmt.Sprintf("%s: all attribute indicated %d items but %d items were returned across all pages", listHref, firstAll, len(items)))
	}
	return items, nil
}

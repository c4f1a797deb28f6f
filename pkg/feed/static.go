package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/ArionMiles/ledgerview/pkg/api"
)

// Static serves a fixed set of receipts. It backs offline runs against a
// saved feed dump.
type Static struct {
	receipts []api.Receipt
}

var _ api.Feed = (*Static)(nil)

// NewStatic returns a feed over the given receipts.
func NewStatic(receipts []api.Receipt) *Static {
	return &Static{receipts: slices.Clone(receipts)}
}

// LoadFile reads a saved feed response. Both the enveloped form
// ({"success":true,"data":[...]}) and a bare array are accepted.
func LoadFile(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading feed file: %w", err)
	}

	var raw []RawReceipt
	if err := json.Unmarshal(data, &raw); err != nil {
		var env envelope
		if envErr := json.Unmarshal(data, &env); envErr != nil {
			return nil, fmt.Errorf("parsing feed file: %w", err)
		}
		if err := json.Unmarshal(env.Data, &raw); err != nil {
			return nil, fmt.Errorf("parsing feed file data: %w", err)
		}
	}

	receipts := make([]api.Receipt, 0, len(raw))
	for _, r := range raw {
		receipts = append(receipts, Normalize(r))
	}
	return &Static{receipts: receipts}, nil
}

// FetchAll returns a copy of the receipts.
func (s *Static) FetchAll(ctx context.Context) ([]api.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", api.ErrFeedUnavailable, err)
	}
	return slices.Clone(s.receipts), nil
}

// FetchOne returns the receipt with the given id.
func (s *Static) FetchOne(ctx context.Context, id string) (api.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return api.Receipt{}, fmt.Errorf("%w: %w", api.ErrFeedUnavailable, err)
	}
	for _, r := range s.receipts {
		if r.ID == id {
			return r, nil
		}
	}
	return api.Receipt{}, fmt.Errorf("%w: %s", api.ErrNotFound, id)
}

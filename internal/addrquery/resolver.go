package addrquery

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/Klingon-tech/klingnet-addrindex/pkg/types"
)

// parseAddresses canonicalizes the requested addresses, dropping repeats
// while keeping first-seen order.
func parseAddresses(raw []string) ([]types.Address, error) {
	if len(raw) == 0 {
		return nil, errMissingAddresses
	}
	seen := make(map[types.Address]struct{}, len(raw))
	out := make([]types.Address, 0, len(raw))
	for _, s := range raw {
		a, err := types.ParseAddress(s)
		if err != nil {
			return nil, invalidAddress(s, err)
		}
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out, nil
}

// resolve fetches the records of every address that fall inside r. Output
// is grouped by address in request order, and by index order within an
// address.
func (s *Service) resolve(ctx context.Context, addrs []types.Address, r Range) ([]Entry, error) {
	if s.deps.Index.IsReducedIndexMode() {
		return nil, ErrUnsupportedMode
	}

	perAddr := make([][]Record, len(addrs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, addr := range addrs {
		i, addr := i, addr
		g.Go(func() error {
			recs, err := s.deps.Index.LookupByAddress(gctx, addr)
			if err != nil {
				return fmt.Errorf("lookup %s: %w", addr, err)
			}
			var kept []Record
			for _, rec := range recs {
				if r.Contains(rec.Height) {
					kept = append(kept, rec)
				}
			}
			perAddr[i] = kept
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var entries []Entry
	for i, recs := range perAddr {
		canonical := addrs[i].String()
		for _, rec := range recs {
			entries = append(entries, Entry{Address: canonical, Record: rec})
		}
	}
	return entries, nil
}

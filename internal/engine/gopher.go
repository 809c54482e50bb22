package engine

import "context"

// gopher requests the selector, with its item type already stripped from
// the path, the same way as an HTTP resource.
func (s *session) gopher(ctx context.Context) (int64, error) {
	s.log.Debug().Str("op", "engine/gopher").Str("selector", s.url.Path).Msg("fetching gopher selector")
	return s.http(ctx)
}

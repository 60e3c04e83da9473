// Package receivers is the registry of inbound mobile-money accounts.
package receivers

import (
	"strings"

	"github.com/samber/lo"
)

// Registry knows which receiver accounts are offered to new sessions
// (active) and which are still accepted on incoming receipts (active or
// retired). It is immutable after construction.
type Registry struct {
	active []string
	known  map[string]struct{}
}

func New(active, retired []string) *Registry {
	clean := func(ids []string) []string {
		return lo.Uniq(lo.Compact(lo.Map(ids, func(id string, _ int) string { return Normalize(id) })))
	}

	r := &Registry{
		active: clean(active),
		known:  make(map[string]struct{}),
	}
	for _, id := range append(clean(retired), r.active...) {
		r.known[id] = struct{}{}
	}
	return r
}

func Normalize(id string) string {
	return strings.TrimSpace(id)
}

func (r *Registry) IsRecognized(id string) bool {
	_, ok := r.known[Normalize(id)]
	return ok
}

// ListActive returns a copy callers may keep as a snapshot.
func (r *Registry) ListActive() []string {
	return append([]string(nil), r.active...)
}

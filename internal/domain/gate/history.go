package gate

// history is a bounded set of raw payloads with oldest-first eviction
type history struct {
	order   []string
	members map[string]struct{}
	limit   int
}

func newHistory(limit int) *history {
	return &history{
		order:   make([]string, 0, limit+1),
		members: make(map[string]struct{}, limit+1),
		limit:   limit,
	}
}

func (h *history) contains(payload string) bool {
	_, ok := h.members[payload]
	return ok
}

// add records payload and returns the evicted entry, if any.
// Adding a payload that is already present is a no-op.
func (h *history) add(payload string) (evicted string, didEvict bool) {
	if h.contains(payload) {
		return "", false
	}
	h.order = append(h.order, payload)
	h.members[payload] = struct{}{}

	if len(h.order) <= h.limit {
		return "", false
	}
	evicted = h.order[0]
	h.order = h.order[1:]
	delete(h.members, evicted)
	return evicted, true
}

// snapshot returns entries oldest first
func (h *history) snapshot() []string {
	out := make([]string, len(h.order))
	copy(out, h.order)
	return out
}

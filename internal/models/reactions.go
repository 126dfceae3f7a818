package models

// Reactions maps a reaction symbol to the usernames that applied it.
// A symbol never maps to an empty list.
type Reactions map[string][]string

// Has reports whether reactor is recorded under symbol.
func (r Reactions) Has(symbol, reactor string) bool {
	for _, u := range r[symbol] {
		if u == reactor {
			return true
		}
	}
	return false
}

// Toggle returns a new ledger with reactor added to or removed from symbol.
// The receiver is not modified. Removing the last reactor drops the symbol.
func (r Reactions) Toggle(symbol, reactor string) (Reactions, bool) {
	out := r.Clone()
	if out == nil {
		out = Reactions{}
	}
	reactors := out[symbol]
	for i, u := range reactors {
		if u == reactor {
			reactors = append(reactors[:i:i], reactors[i+1:]...)
			if len(reactors) == 0 {
				delete(out, symbol)
			} else {
				out[symbol] = reactors
			}
			return out.orNil(), false
		}
	}
	out[symbol] = append(reactors, reactor)
	return out, true
}

// Normalize drops empty symbols and duplicate reactors, keeping first
// occurrence order.
func (r Reactions) Normalize() Reactions {
	if len(r) == 0 {
		return nil
	}
	out := make(Reactions, len(r))
	for symbol, reactors := range r {
		if symbol == "" {
			continue
		}
		seen := make(map[string]struct{}, len(reactors))
		kept := make([]string, 0, len(reactors))
		for _, u := range reactors {
			if u == "" {
				continue
			}
			if _, dup := seen[u]; dup {
				continue
			}
			seen[u] = struct{}{}
			kept = append(kept, u)
		}
		if len(kept) > 0 {
			out[symbol] = kept
		}
	}
	return out.orNil()
}

func (r Reactions) Clone() Reactions {
	if r == nil {
		return nil
	}
	out := make(Reactions, len(r))
	for symbol, reactors := range r {
		out[symbol] = append([]string(nil), reactors...)
	}
	return out
}

func (r Reactions) orNil() Reactions {
	if len(r) == 0 {
		return nil
	}
	return r
}

package chains

// Entry holds the configuration of a single destination chain.
type Entry struct {
	Supported bool
	Relayer   string // empty when no relayer is bound
}

// Registry maps chain ids to their configuration. A chain with no entry is
// implicitly unsupported. The registry carries no authorization logic of its
// own; the settlement engine gates all writes behind the owner check.
//
// Not safe for concurrent use on its own; serialized by the engine.
type Registry struct {
	entries map[uint32]Entry
}

// New creates a registry with the given chain ids pre-marked as supported
// and no relayers bound.
func New(supported ...uint32) *Registry {
	r := &Registry{
		entries: make(map[uint32]Entry),
	}
	for _, id := range supported {
		r.entries[id] = Entry{Supported: true}
	}
	return r
}

// Configure overwrites the supported flag for the chain. A non-empty relayer
// overwrites the bound relayer; an empty relayer leaves any existing binding
// untouched. Bindings are never cleared implicitly.
func (r *Registry) Configure(chainID uint32, supported bool, relayer string) {
	entry := r.entries[chainID]
	entry.Supported = supported
	if relayer != "" {
		entry.Relayer = relayer
	}
	r.entries[chainID] = entry
}

// IsSupported reports whether the chain is configured as supported.
func (r *Registry) IsSupported(chainID uint32) bool {
	return r.entries[chainID].Supported
}

// RelayerOf returns the relayer bound to the chain, or "" when none is bound.
func (r *Registry) RelayerOf(chainID uint32) string {
	return r.entries[chainID].Relayer
}

package model

import "time"

// Snapshot is a read-only, point-in-time view of one realm and its
// subtree for introspection. Building it takes each realm's locks
// briefly, one realm at a time; it never holds a whole-tree lock, so a
// snapshot taken during concurrent lifecycle activity is internally
// consistent per realm but not across realms.
type Snapshot struct {
	Moniker   string     `json:"moniker"`
	URL       string     `json:"url"`
	Resolved  bool       `json:"resolved"`
	Running   bool       `json:"running"`
	ShutDown  bool       `json:"shut_down"`
	RuntimeID string     `json:"runtime_id,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	Exposed   []string   `json:"exposed,omitempty"`
	Children  []Snapshot `json:"children,omitempty"`
}

// Snapshot captures the realm and its subtree.
func (r *Realm) Snapshot() Snapshot {
	snap := Snapshot{
		Moniker: r.moniker.String(),
		URL:     r.url,
	}

	r.execMu.Lock()
	snap.ShutDown = r.shutDown
	if r.runtime != nil {
		snap.Running = true
		snap.RuntimeID = r.runtime.ID
		started := r.runtime.StartedAt
		snap.StartedAt = &started
		snap.Exposed = append([]string(nil), r.runtime.Exposed...)
	}
	r.execMu.Unlock()

	r.stateMu.Lock()
	snap.Resolved = r.resolved != nil
	r.stateMu.Unlock()

	for _, child := range r.Children() {
		snap.Children = append(snap.Children, child.Snapshot())
	}
	return snap
}

// SnapshotTree captures the whole tree from the root.
func (m *Model) SnapshotTree() Snapshot {
	return m.root.Snapshot()
}

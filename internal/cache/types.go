package cache

// SnapFile is one file of a snapshot. Path is tree-relative, Hash is the
// lowercase hex sha256 of the raw content and Lines counts '\n' terminated
// lines (a final unterminated line counts too).
type SnapFile struct {
	Path  string `json:"path"`
	Hash  string `json:"hash"`
	Lines int    `json:"lines"`
}

// Snapshot captures the matching files of one tree at one moment.
type Snapshot struct {
	Source string     `json:"source"`
	Files  []SnapFile `json:"files"`
}

// Change is a path present in both snapshots with different content.
type Change struct {
	Path       string `json:"path"`
	HashBefore string `json:"hashBefore"`
	HashAfter  string `json:"hashAfter"`
}

// Rename pairs a removed and an added path carrying identical content.
type Rename struct {
	From string `json:"from"`
	To   string `json:"to"`
	Hash string `json:"hash"`
}

// Delta is the difference between two snapshots. After rename pairing a
// path appears in at most one of the lists.
//
//   - Added: present now, absent before
//   - Removed: present before, absent now
//   - Changed: same path, different hash
//   - Renamed: content moved to another path unchanged
type Delta struct {
	Added   []SnapFile `json:"added"`
	Removed []SnapFile `json:"removed"`
	Renamed []Rename   `json:"renamed"`
	Changed []Change   `json:"changed"`
}

// Empty reports whether the snapshots were identical.
func (d Delta) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Renamed) == 0 && len(d.Changed) == 0
}

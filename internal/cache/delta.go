package cache

import (
	"sort"
)

// BuildDelta computes what changed from base to curr. Removed and added
// files with identical content are paired as renames, earliest paths first.
func BuildDelta(base, curr *Snapshot) Delta {
	var d Delta
	baseFiles, currFiles := filesOf(base), filesOf(curr)
	baseByPath, currByPath := indexByPath(baseFiles), indexByPath(currFiles)

	for _, bf := range baseFiles {
		cf, ok := currByPath[bf.Path]
		switch {
		case !ok:
			d.Removed = append(d.Removed, bf)
		case cf.Hash != bf.Hash:
			d.Changed = append(d.Changed, Change{Path: bf.Path, HashBefore: bf.Hash, HashAfter: cf.Hash})
		}
	}
	for _, cf := range currFiles {
		if _, ok := baseByPath[cf.Path]; !ok {
			d.Added = append(d.Added, cf)
		}
	}

	d.Renamed, d.Removed, d.Added = pairRenames(d.Removed, d.Added)
	sortDelta(&d)
	return d
}

func filesOf(s *Snapshot) []SnapFile {
	if s == nil {
		return nil
	}
	return s.Files
}

func indexByPath(files []SnapFile) map[string]SnapFile {
	m := make(map[string]SnapFile, len(files))
	for _, f := range files {
		m[f.Path] = f
	}
	return m
}

func pairRenames(removed, added []SnapFile) ([]Rename, []SnapFile, []SnapFile) {
	if len(removed) == 0 || len(added) == 0 {
		return nil, removed, added
	}
	sortByPath(removed)
	sortByPath(added)

	byHash := make(map[string][]int, len(removed))
	for i, rf := range removed {
		byHash[rf.Hash] = append(byHash[rf.Hash], i)
	}
	usedRemoved := make(map[int]bool)
	usedAdded := make(map[int]bool)
	var renamed []Rename
	for i, af := range added {
		cands := byHash[af.Hash]
		if len(cands) == 0 {
			continue
		}
		byHash[af.Hash] = cands[1:]
		usedRemoved[cands[0]] = true
		usedAdded[i] = true
		renamed = append(renamed, Rename{From: removed[cands[0]].Path, To: af.Path, Hash: af.Hash})
	}
	return renamed, filterSnapFiles(removed, usedRemoved), filterSnapFiles(added, usedAdded)
}

func filterSnapFiles(files []SnapFile, used map[int]bool) []SnapFile {
	if len(used) == 0 {
		return files
	}
	out := make([]SnapFile, 0, len(files)-len(used))
	for idx, f := range files {
		if !used[idx] {
			out = append(out, f)
		}
	}
	return out
}

func sortByPath(files []SnapFile) {
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
}

func sortDelta(d *Delta) {
	sortByPath(d.Removed)
	sortByPath(d.Added)
	sort.Slice(d.Changed, func(i, j int) bool { return d.Changed[i].Path < d.Changed[j].Path })
	sort.Slice(d.Renamed, func(i, j int) bool {
		if d.Renamed[i].From == d.Renamed[j].From {
			return d.Renamed[i].To < d.Renamed[j].To
		}
		return d.Renamed[i].From < d.Renamed[j].From
	})
}

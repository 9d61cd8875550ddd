package snapshot

import "github.com/pmezard/go-difflib/difflib"

// Compare reports what changed from older to newer.
//
// The path lists are compared as ordered sequences, not sets: a path that
// merely moved within its list can show up as both removed and added.
// Entries keep the order in which the diff encounters them.
func Compare(older, newer Snapshot) Diff {
	var d Diff
	d.RemovedDirs, d.AddedDirs = sequenceDiff(older.Dirs, newer.Dirs)
	d.RemovedFiles, d.AddedFiles = sequenceDiff(older.Files, newer.Files)
	return d
}

func sequenceDiff(a, b []string) (removed, added []string) {
	removed, added = []string{}, []string{}
	m := difflib.NewMatcher(a, b)
	for _, op := range m.GetOpCodes() {
		switch op.Tag {
		case 'r':
			removed = append(removed, a[op.I1:op.I2]...)
			added = append(added, b[op.J1:op.J2]...)
		case 'd':
			removed = append(removed, a[op.I1:op.I2]...)
		case 'i':
			added = append(added, b[op.J1:op.J2]...)
		}
	}
	return removed, added
}

// CompareSets reports what changed from older to newer treating each path
// list as a set. Added paths keep newer's order and removed paths keep
// older's order.
func CompareSets(older, newer Snapshot) Diff {
	var d Diff
	d.RemovedDirs, d.AddedDirs = setDiff(older.Dirs, newer.Dirs)
	d.RemovedFiles, d.AddedFiles = setDiff(older.Files, newer.Files)
	return d
}

func setDiff(a, b []string) (removed, added []string) {
	return subtract(a, b), subtract(b, a)
}

// subtract returns the elements of a missing from b, without duplicates.
func subtract(a, b []string) []string {
	skip := make(map[string]struct{}, len(b)+len(a))
	for _, p := range b {
		skip[p] = struct{}{}
	}
	out := []string{}
	for _, p := range a {
		if _, ok := skip[p]; ok {
			continue
		}
		skip[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

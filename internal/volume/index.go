package volume

import "github.com/deploymenttheory/go-fif/internal/zipio"

// location pins a member name to the volume and Central Directory entry
// that currently wins the consolidated index.
type location struct {
	vol   *Volume
	entry zipio.CDEntry
}

// applyEntry folds one Central Directory entry from vol into the
// consolidated index, per spec.md's override rule: of two entries for the
// same name, the one with the strictly greater DateTime wins; on a tie
// the incoming (later-loaded) entry wins (mirrors the original's
// update_index: "if existing.date_time > incoming.date_time: keep
// existing", which only short-circuits on strict inequality).
func applyEntry(index map[string]location, vol *Volume, e zipio.CDEntry) {
	existing, ok := index[e.Name]
	if !ok || !(existing.entry.DateTime > e.DateTime) {
		index[e.Name] = location{vol: vol, entry: e}
	}
}

package presentation

import "RecoBoard/internal/domain/models"

type dedupeKey struct {
	instrument string
	section    models.Section
}

// Dedupe collapses records of single-valued statuses to one per instrument
// and section, keeping the latest anchor date. Statuses that allow
// duplicates (BROKEN) pass through untouched. Survivors keep the position
// of their group's first occurrence, so Dedupe(Dedupe(xs)) == Dedupe(xs).
//
// Records with a status the registry does not know are passed through; the
// ingestion boundary is responsible for rejecting them.
func Dedupe(records []models.Record, reg Registry) []models.Record {
	out := make([]models.Record, 0, len(records))
	index := make(map[dedupeKey]int, len(records))

	for _, r := range records {
		rule, ok := reg.Rule(r.Status)
		if !ok || rule.AllowsDuplicatePerInstrument {
			out = append(out, r)
			continue
		}

		key := dedupeKey{instrument: r.InstrumentID, section: rule.Section}
		if i, seen := index[key]; seen {
			if supersedes(r, out[i]) {
				out[i] = r
			}
			continue
		}
		index[key] = len(out)
		out = append(out, r)
	}
	return out
}

// supersedes reports whether candidate should replace current: a strictly
// later anchor wins, a present anchor beats an absent one, full ties keep current.
func supersedes(candidate, current models.Record) bool {
	if !candidate.HasAnchor() {
		return false
	}
	if !current.HasAnchor() {
		return true
	}
	return candidate.AnchorDate.After(current.AnchorDate)
}

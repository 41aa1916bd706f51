package presentation

import "RecoBoard/internal/domain/models"

// StatusRule is one row of the status table.
type StatusRule struct {
	Section                      models.Section
	RendersInMain                bool
	AllowsDuplicatePerInstrument bool
	IsTerminal                   bool
	CarriesArchiveReason         bool
}

// Registry is the closed lookup table over the known statuses. It has no
// default row: unknown statuses must be rejected before they reach it.
type Registry struct {
	rules map[models.Status]StatusRule
}

// DefaultRegistry builds the table for every status in models.AllStatuses.
func DefaultRegistry() Registry {
	rules := make(map[models.Status]StatusRule, len(models.AllStatuses()))
	for _, s := range models.AllStatuses() {
		if rule, ok := ruleFor(s); ok {
			rules[s] = rule
		}
	}
	return Registry{rules: rules}
}

// ruleFor must list every status. A status added to models without a case
// here is caught by TestRegistryCoversEveryStatus.
func ruleFor(s models.Status) (StatusRule, bool) {
	switch s {
	case models.StatusActive:
		return StatusRule{Section: models.SectionActive, RendersInMain: true}, true
	case models.StatusWeakWarning:
		return StatusRule{Section: models.SectionActive, RendersInMain: true}, true
	case models.StatusBroken:
		// termination history for one instrument can legitimately repeat
		return StatusRule{
			Section:                      models.SectionNeedsAttention,
			RendersInMain:                true,
			AllowsDuplicatePerInstrument: true,
			CarriesArchiveReason:         true,
		}, true
	case models.StatusArchived:
		return StatusRule{Section: models.SectionHidden, IsTerminal: true, CarriesArchiveReason: true}, true
	case models.StatusReplaced:
		return StatusRule{Section: models.SectionHidden, IsTerminal: true}, true
	}
	return StatusRule{}, false
}

// Rule returns the row for s.
func (r Registry) Rule(s models.Status) (StatusRule, bool) {
	rule, ok := r.rules[s]
	return rule, ok
}

// SectionOf returns the section s maps to. ok is false for unknown statuses.
func (r Registry) SectionOf(s models.Status) (models.Section, bool) {
	rule, ok := r.rules[s]
	return rule.Section, ok
}

// Known reports whether s has a row.
func (r Registry) Known(s models.Status) bool {
	_, ok := r.rules[s]
	return ok
}

package tasks

import "github.com/desertthunder/rostersync/internal/models"

// ReconciliationResult is the delta between a desired and a current email set.
//
// The three sets are pairwise disjoint and their union is desired ∪ current.
type ReconciliationResult struct {
	ToAdd    models.EmailSet
	ToRemove models.EmailSet
	InBoth   models.EmailSet
}

// Reconcile computes desired − current, current − desired and their intersection.
func Reconcile(desired, current models.EmailSet) ReconciliationResult {
	r := ReconciliationResult{
		ToAdd:    make(models.EmailSet),
		ToRemove: make(models.EmailSet),
		InBoth:   make(models.EmailSet),
	}

	for e := range desired {
		if _, ok := current[e]; ok {
			r.InBoth[e] = struct{}{}
		} else {
			r.ToAdd[e] = struct{}{}
		}
	}
	for e := range current {
		if _, ok := desired[e]; !ok {
			r.ToRemove[e] = struct{}{}
		}
	}
	return r
}

// Empty reports whether nothing needs to change.
func (r ReconciliationResult) Empty() bool {
	return r.ToAdd.Len() == 0 && r.ToRemove.Len() == 0
}

package sync

import (
	"github.com/sdejongh/contentsync/pkg/models"
)

// Resolver decides which side of a matched pair is authoritative.
// Resolve is a pure function of the pair and the resolver's settings.
type Resolver struct {
	Policy models.Policy
	// DefaultMaster wins newest-wins ties that approval does not break
	DefaultMaster models.StoreID
}

// Resolve returns the winner of the pair and the store that must receive it
func (r Resolver) Resolve(p models.Pair) models.Resolution {
	switch r.Policy {
	case models.PolicyAWins:
		return verdict(p, models.StoreA, "policy a-wins")
	case models.PolicyBWins:
		return verdict(p, models.StoreB, "policy b-wins")
	}

	a, b := p.A.LastModified, p.B.LastModified
	switch {
	case a.After(b):
		return verdict(p, models.StoreA, "store A modified more recently")
	case b.After(a):
		return verdict(p, models.StoreB, "store B modified more recently")
	case p.A.Approved && !p.B.Approved:
		return verdict(p, models.StoreA, "timestamps tied, store A is approved")
	case p.B.Approved && !p.A.Approved:
		return verdict(p, models.StoreB, "timestamps tied, store B is approved")
	}

	master := r.DefaultMaster
	if !master.IsValid() {
		master = models.StoreA
	}
	return verdict(p, master, "tied, default master")
}

func verdict(p models.Pair, winner models.StoreID, reason string) models.Resolution {
	if winner == models.StoreA {
		return models.Resolution{Winner: p.A, Loser: p.B, LoserStore: models.StoreB, Reason: reason}
	}
	return models.Resolution{Winner: p.B, Loser: p.A, LoserStore: models.StoreA, Reason: reason}
}

package service

import "kidpoints/internal/models"

// Resolution is what reconciliation decided to do with a fetched record
type Resolution struct {
	// Seed writes the local kids and pin to the remote record
	Seed bool
	// ReplaceKids overwrites local kids with Kids
	ReplaceKids bool
	Kids        []models.Child
	// ReplacePin overwrites the local pin with Pin
	ReplacePin bool
	Pin        *string
}

// ReconcileStrategy decides how local state and a remote record are merged
// when a device enters cloud mode. remote is nil when no record exists.
type ReconcileStrategy interface {
	Reconcile(local []models.Child, localPin *string, remote *models.FamilyRecord) Resolution
}

// RemoteWins replaces local kids with the remote record when one exists and
// seeds the remote record from local state otherwise. A remote pin only
// replaces the local one when it is set.
type RemoteWins struct{}

func (RemoteWins) Reconcile(local []models.Child, localPin *string, remote *models.FamilyRecord) Resolution {
	if remote == nil {
		return Resolution{Seed: true}
	}
	res := Resolution{}
	if remote.Kids != nil {
		res.ReplaceKids = true
		res.Kids = remote.Kids
	}
	if remote.Pin != nil {
		res.ReplacePin = true
		res.Pin = remote.Pin
	}
	return res
}

// package models defines the tours, uploads and sync outcomes that flow between Komoot and Strava
package models

import "time"

// Model is a record kept in the run journal.
type Model interface {
	ID() string
	CreatedAt() time.Time
	UpdatedAt() time.Time
	Validate() error
}

// Repository is the journal's storage contract for one record type.
// Delete is a soft delete; List criteria keys are defined per implementation.
type Repository[T Model] interface {
	Create(model T) error
	Get(id string) (T, error)
	Update(model T) error
	Delete(id string) error
	List(criteria map[string]any) ([]T, error)
}

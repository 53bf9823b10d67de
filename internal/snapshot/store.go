// Package snapshot persists the full complaint collection as a single
// serialized document in a named slot. There are no transactions and no
// partial writes: the whole collection is rewritten each time and the last
// write wins.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/civiceye/civiceye-backend/pkg/models"
)

// CurrentVersion is the schema version stamped into every saved document.
// Documents with an unknown version are treated as unreadable.
const CurrentVersion = 1

// Store is the persistence adapter the complaint repository mirrors into.
type Store interface {
	// Load returns the persisted collection, or an empty one when no
	// snapshot exists yet. A malformed snapshot is reported as an error;
	// the repository decides how to degrade.
	Load(ctx context.Context) ([]models.Complaint, error)
	// Save replaces the snapshot with the given collection.
	Save(ctx context.Context, complaints []models.Complaint) error
}

type document struct {
	Version    int                `json:"version"`
	Complaints []models.Complaint `json:"complaints"`
}

func encode(complaints []models.Complaint) ([]byte, error) {
	return json.Marshal(document{Version: CurrentVersion, Complaints: complaints})
}

func decode(raw []byte) ([]models.Complaint, error) {
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if doc.Version != CurrentVersion {
		return nil, fmt.Errorf("decode snapshot: unsupported version %d", doc.Version)
	}
	if doc.Complaints == nil {
		doc.Complaints = []models.Complaint{}
	}
	return doc.Complaints, nil
}

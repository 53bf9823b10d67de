// Package complaints owns the canonical complaint collection and the rules
// for mutating it. The collection lives in memory, ordered most-recent-first,
// and is mirrored into a snapshot store after every successful change.
package complaints

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/civiceye/civiceye-backend/internal/snapshot"
	"github.com/civiceye/civiceye-backend/pkg/models"
	"github.com/civiceye/civiceye-backend/pkg/utils"
)

var (
	// ErrNotFound is returned when a status update targets an unknown id.
	ErrNotFound = errors.New("complaint not found")
	// ErrDuplicateID is returned when an append would shadow an existing
	// complaint in keyed lookups.
	ErrDuplicateID = errors.New("complaint id already exists")
	// ErrPermissionDenied is returned when the actor's role does not allow
	// the operation.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrInvalidStatus is returned for a status outside the lifecycle enum.
	ErrInvalidStatus = errors.New("invalid complaint status")
)

// StatusFilterAll selects every complaint regardless of status.
const StatusFilterAll = "all"

// Stats are the facet counts shown on the admin overview.
type Stats struct {
	Total      int `json:"total"`
	Submitted  int `json:"submitted"`
	InProgress int `json:"in_progress"`
	Resolved   int `json:"resolved"`
	Rejected   int `json:"rejected"`
}

// StatusUpdateInput carries everything ApplyStatusUpdate needs to know about
// the requested transition and the actor requesting it.
type StatusUpdateInput struct {
	ID            string
	NewStatus     models.ComplaintStatus
	Message       string
	ActorName     string
	ActorRole     models.Role
	ProofImageURL string
}

// Repository is the single owner of the complaint collection. The snapshot
// store holds a serialized mirror with no independent identity.
//
// The original system was single-threaded; serving the collection to
// concurrent HTTP callers requires a lock, so every operation takes the
// repository mutex.
type Repository struct {
	mu    sync.RWMutex
	items []models.Complaint
	store snapshot.Store
	log   *zap.Logger
}

func NewRepository(store snapshot.Store, log *zap.Logger) *Repository {
	if log == nil {
		log = zap.NewNop()
	}
	return &Repository{items: []models.Complaint{}, store: store, log: log}
}

// Load hydrates the collection from the snapshot store. A missing snapshot
// yields an empty collection; an unreadable one does too, but the data loss
// is logged rather than silently swallowed.
func (r *Repository) Load(ctx context.Context) error {
	items, err := r.store.Load(ctx)
	if err != nil {
		r.log.Warn("snapshot unreadable, starting with an empty collection",
			zap.Error(err))
		items = []models.Complaint{}
	}
	r.mu.Lock()
	r.items = items
	r.mu.Unlock()
	r.log.Info("complaint collection loaded", zap.Int("count", len(items)))
	return nil
}

// Append inserts a new complaint at the front of the collection so default
// views list most recent first. An id collision is rejected instead of
// letting two complaints shadow each other.
func (r *Repository) Append(ctx context.Context, c models.Complaint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.items {
		if r.items[i].ID == c.ID {
			return ErrDuplicateID
		}
	}
	if c.Updates == nil {
		c.Updates = []models.ComplaintUpdate{}
	}
	r.items = append([]models.Complaint{c}, r.items...)
	r.saveLocked(ctx)
	return nil
}

// ApplyStatusUpdate transitions one complaint to a new status and appends the
// matching audit event. Authorization is enforced here, not only at the view
// layer: non-admin actors are refused. An unknown id is an explicit error.
func (r *Repository) ApplyStatusUpdate(ctx context.Context, in StatusUpdateInput) (models.Complaint, error) {
	if in.ActorRole != models.RoleAdmin {
		return models.Complaint{}, ErrPermissionDenied
	}
	if !in.NewStatus.Valid() {
		return models.Complaint{}, ErrInvalidStatus
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.items {
		if r.items[i].ID != in.ID {
			continue
		}
		now := time.Now()
		r.items[i].Status = in.NewStatus
		r.items[i].UpdatedAt = now
		r.items[i].Updates = append(r.items[i].Updates, models.ComplaintUpdate{
			UpdateID:      utils.NewUpdateID(),
			ComplaintID:   in.ID,
			UpdatedBy:     in.ActorName,
			Message:       in.Message,
			StatusChange:  in.NewStatus,
			ProofImageURL: in.ProofImageURL,
			Timestamp:     now,
		})
		r.saveLocked(ctx)
		return cloneComplaint(r.items[i]), nil
	}
	return models.Complaint{}, ErrNotFound
}

// Get returns the complaint with the given id.
func (r *Repository) Get(id string) (models.Complaint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := range r.items {
		if r.items[i].ID == id {
			return cloneComplaint(r.items[i]), true
		}
	}
	return models.Complaint{}, false
}

// All returns the full collection in order.
func (r *Repository) All() []models.Complaint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneAll(r.items)
}

// FilterByOwner returns the complaints reported by the given user,
// preserving relative order.
func (r *Repository) FilterByOwner(ownerID string) []models.Complaint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []models.Complaint{}
	for i := range r.items {
		if r.items[i].UserID == ownerID {
			out = append(out, cloneComplaint(r.items[i]))
		}
	}
	return out
}

// FilterByStatus returns the complaints in the given lifecycle state,
// preserving relative order. The special value "all" returns everything.
func (r *Repository) FilterByStatus(status string) []models.Complaint {
	if status == StatusFilterAll || status == "" {
		return r.All()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []models.Complaint{}
	for i := range r.items {
		if string(r.items[i].Status) == status {
			out = append(out, cloneComplaint(r.items[i]))
		}
	}
	return out
}

// Stats returns facet counts over the full collection.
func (r *Repository) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := Stats{Total: len(r.items)}
	for i := range r.items {
		switch r.items[i].Status {
		case models.StatusSubmitted:
			s.Submitted++
		case models.StatusInProgress:
			s.InProgress++
		case models.StatusResolved:
			s.Resolved++
		case models.StatusRejected:
			s.Rejected++
		}
	}
	return s
}

// saveLocked mirrors the collection into the snapshot store. The mirror is
// best-effort: a failed save never fails the mutation that triggered it, but
// it is logged so the gap is visible.
func (r *Repository) saveLocked(ctx context.Context) {
	if err := r.store.Save(ctx, cloneAll(r.items)); err != nil {
		r.log.Warn("snapshot save failed, in-memory state is ahead of the mirror",
			zap.Error(err))
	}
}

// cloneComplaint copies a complaint with its updates so callers can never
// mutate repository-owned state through a returned value.
func cloneComplaint(c models.Complaint) models.Complaint {
	out := c
	out.Updates = make([]models.ComplaintUpdate, len(c.Updates))
	copy(out.Updates, c.Updates)
	return out
}

func cloneAll(items []models.Complaint) []models.Complaint {
	out := make([]models.Complaint, len(items))
	for i := range items {
		out[i] = cloneComplaint(items[i])
	}
	return out
}

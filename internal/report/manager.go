package report

import (
	"sync"

	"go.uber.org/zap"

	"github.com/civiceye/civiceye-backend/pkg/models"
)

// Manager tracks in-progress report wizards by id. Each wizard belongs to
// the citizen who started it and disappears on confirm or abandon.
type Manager struct {
	mu         sync.Mutex
	wizards    map[string]*Wizard
	classifier Classifier
	geocoder   Geocoder
	log        *zap.Logger
}

func NewManager(classifier Classifier, geocoder Geocoder, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		wizards:    make(map[string]*Wizard),
		classifier: classifier,
		geocoder:   geocoder,
		log:        log,
	}
}

// Start opens a new wizard in the capturing state.
func (m *Manager) Start(user models.UserProfile) *Wizard {
	w := newWizard(user, m.classifier, m.geocoder, m.log)
	m.mu.Lock()
	m.wizards[w.ID] = w
	m.mu.Unlock()
	return w
}

// Get looks up an in-progress wizard.
func (m *Manager) Get(id string) (*Wizard, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wizards[id]
	return w, ok
}

// Remove drops a wizard after confirmation. The wizard is already terminal.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	delete(m.wizards, id)
	m.mu.Unlock()
}

// Abandon cancels a wizard's in-flight work and drops it. Returns the
// storage key of any uploaded photo so the caller can clean it up.
func (m *Manager) Abandon(id string) (imageKey string, ok bool) {
	m.mu.Lock()
	w, ok := m.wizards[id]
	if ok {
		delete(m.wizards, id)
	}
	m.mu.Unlock()
	if !ok {
		return "", false
	}
	return w.abandon(), true
}

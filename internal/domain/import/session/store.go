// Package session holds pending statement reviews between upload and commit.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerkeep/ledgerkeep/internal/domain/ledger"
)

// ErrNoReview is returned when an owner has no pending review.
var ErrNoReview = errors.New("no pending review")

// ReviewRow is one editable candidate row. Values stay as strings so invalid
// edits survive on the review screen and only fail at commit time.
type ReviewRow struct {
	Date     string
	Title    string
	Amount   string
	Category string
	Kind     string
	Include  bool
}

// Review is a parsed statement waiting for the owner to confirm it.
type Review struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	AccountID     *uuid.UUID
	SourceType    ledger.SourceType
	Filename      string
	FileHash      string
	StatementDate *time.Time
	Method        string
	Warnings      []string
	Rows          []ReviewRow
	CreatedAt     time.Time
}

func (r *Review) clone() *Review {
	cp := *r
	cp.Warnings = append([]string(nil), r.Warnings...)
	cp.Rows = append([]ReviewRow(nil), r.Rows...)
	return &cp
}

// Store keeps at most one pending review per owner. Uploading a new
// statement replaces any review already in flight.
type Store struct {
	mu      sync.RWMutex
	reviews map[uuid.UUID]*Review
}

func NewStore() *Store {
	return &Store{reviews: make(map[uuid.UUID]*Review)}
}

// Put installs a review for its owner, replacing any existing one.
func (s *Store) Put(review *Review) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviews[review.UserID] = review.clone()
}

// Get returns a copy of the owner's pending review.
func (s *Store) Get(userID uuid.UUID) (*Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	review, ok := s.reviews[userID]
	if !ok {
		return nil, ErrNoReview
	}
	return review.clone(), nil
}

// Update mutates the owner's pending review under the store lock. Returning
// an error from fn leaves the stored review untouched.
func (s *Store) Update(userID uuid.UUID, fn func(*Review) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	review, ok := s.reviews[userID]
	if !ok {
		return ErrNoReview
	}
	cp := review.clone()
	if err := fn(cp); err != nil {
		return err
	}
	s.reviews[userID] = cp
	return nil
}

// Delete drops the owner's pending review, if any.
func (s *Store) Delete(userID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reviews, userID)
}

package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/foodcom/morsel/internal/api"
)

// Snapshot represents the latest feed data available to the UI.
type Snapshot struct {
	Feed                api.PostPage
	HasFeed             bool
	Page                int // 1-based page the poller is tracking
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int // Number of consecutive poll failures
}

// IsOffline returns true when the backend has been unreachable for multiple polls.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Store coordinates concurrent updates to the snapshot.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

// Page returns the feed page the poller should fetch.
func (s *Store) Page() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot.Page < 1 {
		return 1
	}
	return s.snapshot.Page
}

// SetPage changes the tracked page. Values below 1 select the first page.
func (s *Store) SetPage(page int) {
	if page < 1 {
		page = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Page = page
}

// Update replaces the stored feed. When err is non-nil the previous data is
// kept but the error is recorded for visibility.
func (s *Store) Update(feed *api.PostPage, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.snapshot.LastError = err
		s.snapshot.LastUpdated = time.Now()
		s.snapshot.ConsecutiveFailures++
		return
	}

	if feed != nil {
		s.snapshot.Feed = clonePage(*feed)
		s.snapshot.HasFeed = true
	} else {
		s.snapshot.Feed = api.PostPage{}
		s.snapshot.HasFeed = false
	}
	s.snapshot.LastError = nil
	s.snapshot.LastUpdated = time.Now()
	s.snapshot.ConsecutiveFailures = 0
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Feed = clonePage(s.snapshot.Feed)
	if snap.Page < 1 {
		snap.Page = 1
	}
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}

func clonePage(page api.PostPage) api.PostPage {
	if len(page.Posts) == 0 {
		page.Posts = nil
		return page
	}
	dup := make([]api.PostSummary, len(page.Posts))
	copy(dup, page.Posts)
	page.Posts = dup
	return page
}

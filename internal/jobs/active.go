package jobs

import (
	"sort"
	"sync"
	"time"

	"github.com/sevigo/commit-digest/internal/core"
)

// ActiveJob is a job currently executing in this process.
type ActiveJob struct {
	ID        string        `json:"id"`
	Type      core.JobType  `json:"type"`
	StartedAt time.Time     `json:"started_at"`
	Estimated time.Duration `json:"estimated_duration,omitempty"`
	claimed   bool
}

// activeSet guards against dispatching the same job twice from one process.
type activeSet struct {
	mu   sync.Mutex
	jobs map[string]*ActiveJob
}

func newActiveSet() *activeSet {
	return &activeSet{jobs: make(map[string]*ActiveJob)}
}

// tryAdd reserves id. It returns false when id is already active.
func (s *activeSet) tryAdd(id string, t core.JobType, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; ok {
		return false
	}
	s.jobs[id] = &ActiveJob{ID: id, Type: t, StartedAt: now}
	return true
}

// markClaimed records that the store accepted the claim for id.
func (s *activeSet) markClaimed(id string, estimated time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		j.claimed = true
		j.Estimated = estimated
	}
}

func (s *activeSet) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
}

func (s *activeSet) has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[id]
	return ok
}

func (s *activeSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// snapshot returns the active jobs ordered by start time.
func (s *activeSet) snapshot() []ActiveJob {
	s.mu.Lock()
	out := make([]ActiveJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, k int) bool { return out[i].StartedAt.Before(out[k].StartedAt) })
	return out
}

// dropUnless removes claimed entries whose id is not in running and returns
// the dropped ids. Entries still waiting for their claim are kept.
func (s *activeSet) dropUnless(running map[string]struct{}) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var dropped []string
	for id, j := range s.jobs {
		if !j.claimed {
			continue
		}
		if _, ok := running[id]; !ok {
			delete(s.jobs, id)
			dropped = append(dropped, id)
		}
	}
	sort.Strings(dropped)
	return dropped
}

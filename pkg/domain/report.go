package domain

import "time"

// CacheStats summarizes block cache activity for one run.
type CacheStats struct {
	Lookups     int `json:"lookups"`
	Hits        int `json:"hits"`
	PartialHits int `json:"partial_hits"`
	Misses      int `json:"misses"`
	Resumed     int `json:"resumed"`
	Approximate int `json:"approximate"`
	MaxDepth    int `json:"max_depth"`
	CachedSets  int `json:"cached_sets"`
}

// Report is the persisted summary of one verification run.
type Report struct {
	ID         string      `json:"id"`
	Program    string      `json:"program,omitempty"`
	Status     Status      `json:"status"`
	Reason     string      `json:"reason,omitempty"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Iterations int         `json:"iterations"`
	Reached    int         `json:"reached"`
	Waitlist   int         `json:"waitlist"`
	Targets    []string    `json:"targets,omitempty"`
	Cache      *CacheStats `json:"bam,omitempty"`

	// Sealed holds the encrypted report when a store wrapper hides the content.
	Sealed []byte `json:"sealed,omitempty"`
}

// Safe reports whether the run proved the absence of target states.
func (r *Report) Safe() bool {
	return r.Status == StatusCompleted && len(r.Targets) == 0 && r.Waitlist == 0
}

// Clone returns a deep copy of the report.
func (r *Report) Clone() *Report {
	c := *r
	c.Targets = append([]string(nil), r.Targets...)
	c.Sealed = append([]byte(nil), r.Sealed...)
	if r.Cache != nil {
		stats := *r.Cache
		c.Cache = &stats
	}
	return &c
}

package assessment

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepository is an in-process Repository used by tests and by the
// server when no database is configured
type MemoryRepository struct {
	mu          sync.RWMutex
	assessments map[int64]*Assessment
	leads       map[int64]memoryLead
	nextID      int64
	nextChildID int64
	now         func() time.Time
}

type memoryLead struct {
	companyID int64
	owner     *int64
}

// NewMemoryRepository creates an empty repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		assessments: make(map[int64]*Assessment),
		leads:       make(map[int64]memoryLead),
		now:         time.Now,
	}
}

func (r *MemoryRepository) Get(ctx context.Context, id int64) (*Assessment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.assessments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a.Clone(), nil
}

func (r *MemoryRepository) List(ctx context.Context, companyID int64) ([]*Assessment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Assessment
	for _, a := range r.assessments {
		if a.CompanyID == companyID {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepository) Create(ctx context.Context, a *Assessment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	a.ID = r.nextID
	a.CreatedAt = r.now().UTC()
	a.UpdatedAt = a.CreatedAt
	r.assessments[a.ID] = a.Clone()
	return nil
}

func (r *MemoryRepository) Update(ctx context.Context, a *Assessment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.assessments[a.ID]
	if !ok {
		return ErrNotFound
	}
	stored := a.Clone()
	// children are written through SaveSection and AddPhotos
	stored.Sections = current.Sections
	stored.Photos = current.Photos
	stored.UpdatedAt = r.now().UTC()
	a.UpdatedAt = stored.UpdatedAt
	r.assessments[a.ID] = stored
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.assessments[id]; !ok {
		return ErrNotFound
	}
	delete(r.assessments, id)
	return nil
}

func (r *MemoryRepository) SaveSection(ctx context.Context, s *Section) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assessments[s.AssessmentID]
	if !ok {
		return ErrNotFound
	}
	if s.ID == 0 {
		r.nextChildID++
		s.ID = r.nextChildID
		a.Sections = append(a.Sections, *s)
	} else {
		existing, ok := a.Section(s.ID)
		if !ok {
			return ErrNotFound
		}
		*existing = *s
	}
	sort.SliceStable(a.Sections, func(i, j int) bool { return a.Sections[i].SortOrder < a.Sections[j].SortOrder })
	return nil
}

func (r *MemoryRepository) DeleteSection(ctx context.Context, assessmentID, sectionID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assessments[assessmentID]
	if !ok {
		return ErrNotFound
	}
	for i, s := range a.Sections {
		if s.ID == sectionID {
			a.Sections = append(a.Sections[:i], a.Sections[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (r *MemoryRepository) AddPhotos(ctx context.Context, assessmentID int64, photos []Photo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assessments[assessmentID]
	if !ok {
		return ErrNotFound
	}
	for i := range photos {
		r.nextChildID++
		photos[i].ID = r.nextChildID
		photos[i].AssessmentID = assessmentID
		a.Photos = append(a.Photos, photos[i])
	}
	return nil
}

func (r *MemoryRepository) FindBookingConflict(ctx context.Context, companyID int64, address string, date Date, excludeID int64) (*Assessment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	want := NormalizeAddress(address)
	ids := make([]int64, 0, len(r.assessments))
	for id := range r.assessments {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		a := r.assessments[id]
		if a.ID == excludeID || a.CompanyID != companyID || a.Status == StatusCancelled || a.AssessmentDate == nil {
			continue
		}
		if a.AssessmentDate.Equal(date.Time) && NormalizeAddress(a.LocationAddress) == want {
			return a.Clone(), nil
		}
	}
	return nil, nil
}

// AddLead registers a lead owned by owner (nil for unassigned)
func (r *MemoryRepository) AddLead(companyID, leadID int64, owner *int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leads[leadID] = memoryLead{companyID: companyID, owner: owner}
}

func (r *MemoryRepository) LeadOwner(ctx context.Context, companyID, leadID int64) (*int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lead, ok := r.leads[leadID]
	if !ok || lead.companyID != companyID {
		return nil, ErrNotFound
	}
	if lead.owner == nil {
		return nil, nil
	}
	owner := *lead.owner
	return &owner, nil
}

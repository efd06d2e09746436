package catalog

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store exposes catalog retrieval for HTTP handlers and services.
type Store interface {
	Resources(kind ResourceKind) []Resource
	Counselors() []Counselor
	FindCounselor(id string) (Counselor, bool)
	TimeSlots() []string
	HasTimeSlot(slot string) bool
	ForumPosts() []ForumPost
	AddForumPost(post ForumPost) ForumPost
	Consultations() []ConsultationNote
	FindConsultation(id string) (ConsultationNote, bool)
}

// MemoryStore implements Store in memory. Forum posts are the only mutable part.
type MemoryStore struct {
	mu   sync.RWMutex
	data Catalog
	now  func() time.Time
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied catalog.
func NewMemoryStore(c Catalog) *MemoryStore {
	return &MemoryStore{data: c, now: time.Now}
}

// Resources returns resources of the given kind, or all of them when kind is empty.
func (s *MemoryStore) Resources(kind ResourceKind) []Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Resource, 0, len(s.data.Resources))
	for _, item := range s.data.Resources {
		if kind == "" || item.Kind == kind {
			out = append(out, item)
		}
	}
	return out
}

// Counselors returns the bookable counselors.
func (s *MemoryStore) Counselors() []Counselor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Counselor(nil), s.data.Counselors...)
}

// FindCounselor looks up a counselor by identifier.
func (s *MemoryStore) FindCounselor(id string) (Counselor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.data.Counselors {
		if item.ID == id {
			return item, true
		}
	}
	return Counselor{}, false
}

// TimeSlots returns the bookable time slots in display order.
func (s *MemoryStore) TimeSlots() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.data.TimeSlots...)
}

// HasTimeSlot reports whether slot is one of the offered slots.
func (s *MemoryStore) HasTimeSlot(slot string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.data.TimeSlots {
		if item == slot {
			return true
		}
	}
	return false
}

// ForumPosts 按创建时间倒序返回帖子。
func (s *MemoryStore) ForumPosts() []ForumPost {
	s.mu.RLock()
	posts := append([]ForumPost(nil), s.data.ForumPosts...)
	s.mu.RUnlock()

	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
	return posts
}

// AddForumPost stores a new post, assigning id and creation time.
func (s *MemoryStore) AddForumPost(post ForumPost) ForumPost {
	post.ID = uuid.NewString()
	post.CreatedAt = s.now().UTC()
	post.Likes = 0
	post.Comments = 0

	s.mu.Lock()
	s.data.ForumPosts = append(s.data.ForumPosts, post)
	s.mu.Unlock()
	return post
}

// Consultations returns the consultation notes, most recent first.
func (s *MemoryStore) Consultations() []ConsultationNote {
	s.mu.RLock()
	notes := append([]ConsultationNote(nil), s.data.Consultations...)
	s.mu.RUnlock()

	// Date 为 YYYY-MM-DD，可直接按字符串比较。
	sort.SliceStable(notes, func(i, j int) bool {
		return notes[i].Date > notes[j].Date
	})
	return notes
}

// FindConsultation looks up a consultation note by identifier.
func (s *MemoryStore) FindConsultation(id string) (ConsultationNote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.data.Consultations {
		if item.ID == id {
			return item, true
		}
	}
	return ConsultationNote{}, false
}

package booking

import (
	"context"
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusmind/portal/backend/internal/logging"
	model "github.com/campusmind/portal/backend/internal/model/booking"
	"github.com/campusmind/portal/backend/internal/model/catalog"
)

const (
	dateLayout     = "2006-01-02"
	displayLayout  = "January 2, 2006"
	minNameLength  = 2
	maxNotesLength = 500
)

// FieldErrors maps form fields to validation messages.
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+f[k])
	}
	return "invalid booking: " + strings.Join(parts, "; ")
}

// Repository persists bookings.
type Repository interface {
	Save(ctx context.Context, b model.Booking) error
	List(ctx context.Context) ([]model.Booking, error)
}

// Mailer sends the confirmation email.
type Mailer interface {
	SendConfirmation(ctx context.Context, to, subject, text string) error
}

// MemoryRepository keeps bookings in memory.
type MemoryRepository struct {
	mu       sync.RWMutex
	bookings []model.Booking
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// Save implements Repository.
func (r *MemoryRepository) Save(_ context.Context, b model.Booking) error {
	r.mu.Lock()
	r.bookings = append(r.bookings, b)
	r.mu.Unlock()
	return nil
}

// List implements Repository, newest first.
func (r *MemoryRepository) List(context.Context) ([]model.Booking, error) {
	r.mu.RLock()
	out := append([]model.Booking(nil), r.bookings...)
	r.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Service validates and records counseling appointments.
type Service struct {
	catalog catalog.Store
	repo    Repository
	mailer  Mailer
	logger  *zap.Logger
	now     func() time.Time
}

// NewService wires the booking service. mailer may be nil.
func NewService(store catalog.Store, repo Repository, mailer Mailer, logger *zap.Logger) *Service {
	return &Service{
		catalog: store,
		repo:    repo,
		mailer:  mailer,
		logger:  logging.OrNop(logger).Named("booking"),
		now:     time.Now,
	}
}

// Book validates req, stores the booking and sends a confirmation email.
// Email delivery is best-effort.
func (s *Service) Book(ctx context.Context, userID string, req model.Request) (model.Confirmation, error) {
	counselor, day, err := s.validate(&req)
	if err != nil {
		return model.Confirmation{}, err
	}

	b := model.Booking{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Email:       req.Email,
		CounselorID: counselor.ID,
		Date:        req.Date,
		TimeSlot:    req.TimeSlot,
		Notes:       req.Notes,
		UserID:      userID,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.Save(ctx, b); err != nil {
		return model.Confirmation{}, fmt.Errorf("save booking: %w", err)
	}

	message := fmt.Sprintf("Your appointment with %s on %s at %s is confirmed. An email has been sent to %s.",
		counselor.Name, day.Format(displayLayout), b.TimeSlot, b.Email)

	if s.mailer != nil {
		body := fmt.Sprintf("Hi %s,\n\n%s\n\nIf you need to reschedule, reply to this email.\n\nCampusMind", b.Name,
			strings.TrimSuffix(message, fmt.Sprintf(" An email has been sent to %s.", b.Email)))
		if err := s.mailer.SendConfirmation(ctx, b.Email, "Your CampusMind appointment", body); err != nil {
			s.logger.Warn("booking confirmation email failed", zap.String("booking_id", b.ID), zap.Error(err))
		}
	}

	s.logger.Info("booking created",
		zap.String("booking_id", b.ID),
		zap.String("counselor", counselor.ID),
		zap.String("date", b.Date),
	)
	return model.Confirmation{Booking: b, Message: message}, nil
}

// List returns all bookings, newest first.
func (s *Service) List(ctx context.Context) ([]model.Booking, error) {
	return s.repo.List(ctx)
}

func (s *Service) validate(req *model.Request) (catalog.Counselor, time.Time, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.CounselorID = strings.TrimSpace(req.CounselorID)
	req.Date = strings.TrimSpace(req.Date)
	req.TimeSlot = strings.TrimSpace(req.TimeSlot)
	req.Notes = strings.TrimSpace(req.Notes)

	errs := FieldErrors{}
	if len([]rune(req.Name)) < minNameLength {
		errs["name"] = "Name must be at least 2 characters."
	}
	if addr, err := mail.ParseAddress(req.Email); err != nil || addr.Address != req.Email {
		errs["email"] = "Please enter a valid email address."
	}

	counselor, ok := s.findCounselor(req.CounselorID)
	if !ok {
		errs["counselor"] = "Please select a counselor."
	}

	var day time.Time
	if req.Date == "" {
		errs["date"] = "A date is required."
	} else if parsed, err := time.Parse(dateLayout, req.Date); err != nil {
		errs["date"] = "A date is required."
	} else if req.Date < s.now().Format(dateLayout) {
		errs["date"] = "Please choose a date that is not in the past."
	} else {
		day = parsed
	}

	if !s.catalog.HasTimeSlot(req.TimeSlot) {
		errs["timeSlot"] = "Please select a time slot."
	}
	if len([]rune(req.Notes)) > maxNotesLength {
		errs["notes"] = "Notes cannot exceed 500 characters."
	}

	if len(errs) > 0 {
		return catalog.Counselor{}, time.Time{}, errs
	}
	return counselor, day, nil
}

// findCounselor accepts an id, a display name, or a "Name - Specialty" label.
func (s *Service) findCounselor(ref string) (catalog.Counselor, bool) {
	if ref == "" {
		return catalog.Counselor{}, false
	}
	if c, ok := s.catalog.FindCounselor(ref); ok {
		return c, true
	}
	for _, c := range s.catalog.Counselors() {
		if strings.EqualFold(ref, c.Label()) || strings.EqualFold(ref, c.Name) {
			return c, true
		}
	}
	return catalog.Counselor{}, false
}

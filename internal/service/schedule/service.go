package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/campusmind/portal/backend/internal/logging"
	model "github.com/campusmind/portal/backend/internal/model/schedule"
	"github.com/campusmind/portal/backend/internal/service/ai"
)

// MaxTasks 限制一次请求可排程的任务数量。
const MaxTasks = 20

var (
	ErrNoTasks             = errors.New("at least one task is required")
	ErrTooManyTasks        = fmt.Errorf("at most %d tasks can be scheduled at once", MaxTasks)
	ErrScheduleUnavailable = errors.New("schedule generation unavailable")
)

var anxietyMarkers = []string{"anxious", "anxiety", "stress", "overwhelm", "panic", "burnout", "burned out"}

const (
	clockLayout             = "3:04 PM"
	mindfulBreakMinutes     = 15
	mindfulBreakDescription = "Step away for a few minutes. Stretch, breathe slowly, and notice how far you've already come."
)

// Service composes a gentle day plan from tasks and a consultation summary.
type Service struct {
	completer ai.Completer
	logger    *zap.Logger
}

// NewService 创建日程服务。completer 为 nil 时每次调用都返回 ErrScheduleUnavailable。
func NewService(completer ai.Completer, logger *zap.Logger) *Service {
	return &Service{completer: completer, logger: logging.OrNop(logger).Named("schedule")}
}

// Compose validates the request, asks the model for a plan, and checks its shape.
func (s *Service) Compose(ctx context.Context, req model.Request) (model.Schedule, error) {
	tasks := NormalizeTasks(req.Tasks)
	if len(tasks) == 0 {
		return model.Schedule{}, ErrNoTasks
	}
	if len(tasks) > MaxTasks {
		return model.Schedule{}, ErrTooManyTasks
	}

	if s.completer == nil {
		return model.Schedule{}, ErrScheduleUnavailable
	}

	raw, err := s.completer.Complete(ctx, ai.Prompt{
		Name:   "schedule.compose",
		System: systemPrompt,
		User:   buildUserPrompt(tasks, req.ConsultationSummary),
	})
	if err != nil {
		s.logger.Error("schedule inference failed", zap.Error(err))
		return model.Schedule{}, fmt.Errorf("%w: %v", ErrScheduleUnavailable, err)
	}

	var out model.Schedule
	if err := ai.ExtractJSON(raw, &out); err != nil {
		s.logger.Error("schedule output not parseable", zap.Error(err))
		return model.Schedule{}, fmt.Errorf("%w: %v", ErrScheduleUnavailable, err)
	}

	normalizeItems(&out)
	if err := out.Validate(); err != nil {
		s.logger.Error("schedule output rejected", zap.Error(err))
		return model.Schedule{}, fmt.Errorf("%w: %v", ErrScheduleUnavailable, err)
	}

	if signalsAnxiety(req.ConsultationSummary) && !out.BreakBesideTask() {
		insertMindfulBreak(&out)
	}

	s.logger.Info("schedule composed",
		zap.Int("tasks", len(tasks)),
		zap.Int("blocks", len(out.Blocks)),
	)
	return out, nil
}

// NormalizeTasks trims entries, strips list markers, and drops empty lines.
// Multi-line entries are split so a pasted textarea works as-is.
func NormalizeTasks(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, entry := range raw {
		for _, line := range strings.Split(entry, "\n") {
			line = strings.TrimSpace(line)
			for _, marker := range []string{"- ", "* ", "• "} {
				line = strings.TrimSpace(strings.TrimPrefix(line, marker))
			}
			if line != "" {
				out = append(out, line)
			}
		}
	}
	return out
}

func normalizeItems(s *model.Schedule) {
	for i := range s.Blocks {
		s.Blocks[i].Title = strings.TrimSpace(s.Blocks[i].Title)
		for j := range s.Blocks[i].Tasks {
			item := &s.Blocks[i].Tasks[j]
			item.Type = model.ItemType(strings.ToLower(strings.TrimSpace(string(item.Type))))
			item.Title = strings.TrimSpace(item.Title)
			item.Time = strings.TrimSpace(item.Time)
		}
	}
}

func signalsAnxiety(summary string) bool {
	lower := strings.ToLower(summary)
	for _, marker := range anxietyMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// insertMindfulBreak 在第一个任务之后、同一时段内插入一次短暂休息。
func insertMindfulBreak(s *model.Schedule) {
	for i := range s.Blocks {
		for j, item := range s.Blocks[i].Tasks {
			if item.Type != model.ItemTask {
				continue
			}
			pause := model.Item{
				Time:        breakTimeAfter(item.Time),
				Title:       "Mindful Break",
				Description: mindfulBreakDescription,
				Type:        model.ItemBreak,
			}
			tasks := make([]model.Item, 0, len(s.Blocks[i].Tasks)+1)
			tasks = append(tasks, s.Blocks[i].Tasks[:j+1]...)
			tasks = append(tasks, pause)
			tasks = append(tasks, s.Blocks[i].Tasks[j+1:]...)
			s.Blocks[i].Tasks = tasks
			return
		}
	}
}

func breakTimeAfter(span string) string {
	span = strings.ReplaceAll(span, "–", "-")
	parts := strings.Split(span, "-")
	end := strings.ToUpper(strings.TrimSpace(parts[len(parts)-1]))

	t, err := time.Parse(clockLayout, end)
	if err != nil {
		return "Flexible"
	}
	return t.Format(clockLayout) + " - " + t.Add(mindfulBreakMinutes*time.Minute).Format(clockLayout)
}

package schedule

import (
	"errors"
	"fmt"
	"strings"
)

// ItemType distinguishes work items from breaks.
type ItemType string

const (
	ItemTask  ItemType = "task"
	ItemBreak ItemType = "break"
)

// ErrShapeMismatch 表示模型返回的日程结构不完整。
var ErrShapeMismatch = errors.New("schedule output does not match schema")

// Item 是日程块中的一项任务或休息。
type Item struct {
	Time        string   `json:"time"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Type        ItemType `json:"type"`
}

// Block groups items under a time-of-day title such as "Morning".
type Block struct {
	Title string `json:"title"`
	Tasks []Item `json:"tasks"`
}

// Request 是生成日程所需的输入。
type Request struct {
	Tasks               []string `json:"tasks"`
	ConsultationSummary string   `json:"consultationSummary"`
}

// Schedule 是完整的一天日程。
type Schedule struct {
	Blocks []Block `json:"schedule"`
}

// Validate 校验每个块与条目的必填字段。
func (s Schedule) Validate() error {
	if len(s.Blocks) == 0 {
		return fmt.Errorf("%w: no blocks", ErrShapeMismatch)
	}
	for i, block := range s.Blocks {
		if strings.TrimSpace(block.Title) == "" {
			return fmt.Errorf("%w: block %d has no title", ErrShapeMismatch, i)
		}
		if len(block.Tasks) == 0 {
			return fmt.Errorf("%w: block %q has no items", ErrShapeMismatch, block.Title)
		}
		for j, item := range block.Tasks {
			if strings.TrimSpace(item.Title) == "" || strings.TrimSpace(item.Time) == "" {
				return fmt.Errorf("%w: block %q item %d missing time or title", ErrShapeMismatch, block.Title, j)
			}
			if item.Type != ItemTask && item.Type != ItemBreak {
				return fmt.Errorf("%w: block %q item %d has type %q", ErrShapeMismatch, block.Title, j, item.Type)
			}
		}
	}
	return nil
}

// BreakBesideTask reports whether some block holds a task together with a break.
func (s Schedule) BreakBesideTask() bool {
	for _, block := range s.Blocks {
		var task, pause bool
		for _, item := range block.Tasks {
			switch item.Type {
			case ItemTask:
				task = true
			case ItemBreak:
				pause = true
			}
		}
		if task && pause {
			return true
		}
	}
	return false
}

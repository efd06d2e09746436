package schedule

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/campusmind/portal/backend/internal/model/schedule"
	"github.com/campusmind/portal/backend/internal/service/ai"
)

type fakeCompleter struct {
	reply  string
	err    error
	prompt ai.Prompt
}

func (f *fakeCompleter) Complete(_ context.Context, p ai.Prompt) (string, error) {
	f.prompt = p
	return f.reply, f.err
}

const anxiousSummary = "Patient has been feeling anxious around deadlines."

func TestComposeAnxiousSummaryProducesBreak(t *testing.T) {
	fake := &fakeCompleter{reply: `{"schedule":[{"title":"Morning","tasks":[
		{"time":"9:30 AM - 10:15 AM","title":"Work on Math Assignment (Part 1)","description":"Start small.","type":"Task"},
		{"time":"10:15 AM - 10:30 AM","title":"Stretch","description":"Breathe.","type":"break"}
	]}]}`}
	svc := NewService(fake, nil)

	out, err := svc.Compose(context.Background(), model.Request{
		Tasks:               []string{"Finish math assignment"},
		ConsultationSummary: anxiousSummary,
	})
	require.NoError(t, err)
	require.Len(t, out.Blocks, 1)

	var sawTask, sawBreak bool
	for _, item := range out.Blocks[0].Tasks {
		if item.Type == model.ItemTask && strings.Contains(strings.ToLower(item.Title), "math assignment") {
			sawTask = true
		}
		if item.Type == model.ItemBreak {
			sawBreak = true
		}
	}
	assert.True(t, sawTask)
	assert.True(t, sawBreak)
	assert.Contains(t, fake.prompt.User, "- Finish math assignment")
	assert.Contains(t, fake.prompt.User, anxiousSummary)
}

func TestComposeInsertsMindfulBreakWhenAnxiousAndNoBreak(t *testing.T) {
	fake := &fakeCompleter{reply: `{"schedule":[{"title":"Morning","tasks":[
		{"time":"9:30 AM - 10:15 AM","title":"Math (Part 1)","description":"Go gently.","type":"task"},
		{"time":"10:15 AM - 11:00 AM","title":"Math (Part 2)","description":"Keep going.","type":"task"}
	]}]}`}
	svc := NewService(fake, nil)

	out, err := svc.Compose(context.Background(), model.Request{Tasks: []string{"Finish math assignment"}, ConsultationSummary: anxiousSummary})
	require.NoError(t, err)

	want := []model.Item{
		{Time: "9:30 AM - 10:15 AM", Title: "Math (Part 1)", Description: "Go gently.", Type: model.ItemTask},
		{Time: "10:15 AM - 10:30 AM", Title: "Mindful Break", Description: mindfulBreakDescription, Type: model.ItemBreak},
		{Time: "10:15 AM - 11:00 AM", Title: "Math (Part 2)", Description: "Keep going.", Type: model.ItemTask},
	}
	if diff := cmp.Diff(want, out.Blocks[0].Tasks); diff != "" {
		t.Fatalf("unexpected items (-want +got):\n%s", diff)
	}
}

func TestComposeAddsBreakWhenOnlyAnotherBlockRests(t *testing.T) {
	fake := &fakeCompleter{reply: `{"schedule":[
		{"title":"Morning","tasks":[{"time":"9:00 AM - 10:00 AM","title":"Essay draft","description":"One paragraph at a time.","type":"task"}]},
		{"title":"Afternoon","tasks":[{"time":"2:00 PM - 2:15 PM","title":"Walk","description":"Fresh air.","type":"break"}]}
	]}`}
	svc := NewService(fake, nil)

	out, err := svc.Compose(context.Background(), model.Request{Tasks: []string{"Essay draft"}, ConsultationSummary: anxiousSummary})
	require.NoError(t, err)

	want := []model.Item{
		{Time: "9:00 AM - 10:00 AM", Title: "Essay draft", Description: "One paragraph at a time.", Type: model.ItemTask},
		{Time: "10:00 AM - 10:15 AM", Title: "Mindful Break", Description: mindfulBreakDescription, Type: model.ItemBreak},
	}
	if diff := cmp.Diff(want, out.Blocks[0].Tasks); diff != "" {
		t.Fatalf("unexpected morning items (-want +got):\n%s", diff)
	}
	assert.Len(t, out.Blocks[1].Tasks, 1)
	assert.True(t, out.BreakBesideTask())
}

func TestComposeCalmSummaryLeavesScheduleAlone(t *testing.T) {
	fake := &fakeCompleter{reply: `{"schedule":[{"title":"Evening","tasks":[{"time":"7:00 PM - 8:00 PM","title":"Read chapter 3","description":"Enjoy it.","type":"task"}]}]}`}
	svc := NewService(fake, nil)

	out, err := svc.Compose(context.Background(), model.Request{Tasks: []string{"Read chapter 3"}, ConsultationSummary: "Doing well overall."})
	require.NoError(t, err)
	assert.Len(t, out.Blocks[0].Tasks, 1)
}

func TestComposeValidatesInput(t *testing.T) {
	svc := NewService(&fakeCompleter{}, nil)

	_, err := svc.Compose(context.Background(), model.Request{Tasks: []string{"  ", "\n"}})
	assert.ErrorIs(t, err, ErrNoTasks)

	many := make([]string, MaxTasks+1)
	for i := range many {
		many[i] = "task"
	}
	_, err = svc.Compose(context.Background(), model.Request{Tasks: many})
	assert.ErrorIs(t, err, ErrTooManyTasks)
}

func TestComposeSurfacesFailures(t *testing.T) {
	cases := map[string]*fakeCompleter{
		"provider error": {err: errors.New("503")},
		"not json":       {reply: "Sorry, I can't."},
		"bad item type":  {reply: `{"schedule":[{"title":"Morning","tasks":[{"time":"9 AM","title":"x","type":"nap"}]}]}`},
		"empty block":    {reply: `{"schedule":[{"title":"Morning","tasks":[]}]}`},
	}
	for name, fake := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewService(fake, nil).Compose(context.Background(), model.Request{Tasks: []string{"Study"}})
			assert.ErrorIs(t, err, ErrScheduleUnavailable)
		})
	}

	_, err := NewService(nil, nil).Compose(context.Background(), model.Request{Tasks: []string{"Study"}})
	assert.ErrorIs(t, err, ErrScheduleUnavailable)
}

func TestNormalizeTasks(t *testing.T) {
	got := NormalizeTasks([]string{"- Finish math assignment\n* Email professor\n\n", "  Laundry  "})
	assert.Equal(t, []string{"Finish math assignment", "Email professor", "Laundry"}, got)
}

func TestBreakTimeAfter(t *testing.T) {
	assert.Equal(t, "10:15 AM - 10:30 AM", breakTimeAfter("9:30 AM - 10:15 AM"))
	assert.Equal(t, "12:50 PM - 1:05 PM", breakTimeAfter("12:00 pm – 12:50 pm"))
	assert.Equal(t, "Flexible", breakTimeAfter("after lunch"))
}

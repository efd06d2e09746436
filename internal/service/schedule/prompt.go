package schedule

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are a supportive AI assistant that helps students create gentle, effective schedules. Your goal is to break down tasks into manageable parts and interleave them with breaks, based on their consultation notes.

Instructions:
1. Analyze the consultation summary. If it mentions anxiety, stress, or feeling overwhelmed, prioritize shorter work periods and more frequent breaks.
2. Break down tasks. Do not schedule large, monolithic tasks. Break them into smaller parts (e.g. "Finish math assignment" becomes "Work on Math Assignment (Part 1)").
3. Schedule generously. Leave buffer time and schedule breaks between tasks. The goal is momentum, not exhaustion.
4. Be encouraging. The description of each item should be gentle and motivating, framed as a small, achievable step.
5. Structure the day into blocks titled "Morning", "Afternoon" and "Evening".

Respond with a single JSON object and nothing else, in this shape:
{"schedule":[{"title":"Morning","tasks":[{"time":"9:30 AM - 10:15 AM","title":"...","description":"...","type":"task"}]}]}
The "type" of every item must be "task" or "break".`

func buildUserPrompt(tasks []string, summary string) string {
	var b strings.Builder
	b.WriteString("Consultation summary:\n")
	if s := strings.TrimSpace(summary); s != "" {
		b.WriteString(s)
	} else {
		b.WriteString("No consultation notes provided.")
	}
	b.WriteString("\n\nStudent's tasks:\n")
	for _, task := range tasks {
		fmt.Fprintf(&b, "- %s\n", task)
	}
	b.WriteString("\nGenerate the schedule in the specified JSON format.")
	return b.String()
}

package triage

import (
	"testing"

	model "github.com/campusmind/portal/backend/internal/model/triage"
)

func TestClassifyCategories(t *testing.T) {
	tests := []struct {
		input string
		want  model.Category
	}{
		{"hi", model.CategoryGreeting},
		{"Hello there!", model.CategoryGreeting},
		{"This is fine", model.CategoryAmbiguous},
		{"I'm so stressed with exams, I can't sleep.", model.CategoryMildDistress},
		{"hey, I feel so lonely since I moved here", model.CategoryLoneliness},
		{"Any tips for managing my time", model.CategoryAdviceRequest},
		{"I had a great day and I'm proud of myself", model.CategoryPositive},
		{"", model.CategoryAmbiguous},
	}

	for _, tt := range tests {
		got := Classify(tt.input)
		if got.Category != tt.want {
			t.Fatalf("Classify(%q) = %s, want %s", tt.input, got.Category, tt.want)
		}
	}
}

func TestClassifyCrisisOverridesOtherSignals(t *testing.T) {
	inputs := []string{
		"hi, I want to end my life",
		"I’ve been thinking about suicide",
		"I keep wanting to hurt myself when I'm stressed",
	}
	for _, input := range inputs {
		got := Classify(input)
		if !got.Crisis || got.Category != model.CategoryCrisis {
			t.Fatalf("expected crisis for %q, got %+v", input, got)
		}
	}
}

func TestDetectCrisisIgnoresBenignText(t *testing.T) {
	if DetectCrisis("This assignment is killing me but I'll be fine") {
		t.Fatalf("did not expect crisis detection")
	}
}

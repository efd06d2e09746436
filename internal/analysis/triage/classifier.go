package triage

import (
	"strings"

	model "github.com/campusmind/portal/backend/internal/model/triage"
)

// Decision 给出启发式分类结果。
type Decision struct {
	Category model.Category
	Score    int
	Crisis   bool
}

// crisisPhrases 命中任意一条即视为危机信号，不参与打分比较。
var crisisPhrases = []string{
	"kill myself", "killing myself", "end my life", "ending my life", "take my own life",
	"suicide", "suicidal", "want to die", "wanna die", "better off dead", "no reason to live",
	"hurt myself", "hurting myself", "self harm", "self-harm", "cut myself", "cutting myself",
	"don't want to be here anymore", "dont want to be here anymore", "can't go on", "cant go on",
	"overdose", "hurt someone", "kill someone",
}

var keywordBuckets = map[model.Category][]string{
	model.CategoryGreeting: {
		"hi", "hello", "hey", "good morning", "good afternoon", "good evening", "what's up", "whats up",
		"howdy", "yo",
	},
	model.CategoryMildDistress: {
		"stressed", "stress", "anxious", "anxiety", "overwhelmed", "worried", "nervous", "tired",
		"exhausted", "can't sleep", "cant sleep", "panic", "sad", "upset", "down", "burned out",
		"burnt out", "pressure", "frustrated", "depressed", "crying", "scared",
	},
	model.CategoryAdviceRequest: {
		"how do i", "how can i", "any advice", "any tips", "what should i", "should i", "help me",
		"tips for", "advice on", "how to", "can you suggest", "recommend",
	},
	model.CategoryLoneliness: {
		"lonely", "alone", "no friends", "isolated", "left out", "nobody cares", "no one to talk",
		"homesick", "miss home", "don't fit in", "dont fit in",
	},
	model.CategoryPositive: {
		"happy", "great", "good day", "excited", "proud", "grateful", "thankful", "better today",
		"feeling good", "awesome", "amazing", "thanks", "thank you",
	},
}

// Classify 根据关键词对用户输入进行粗分类，用于模型不可用时的兜底和危机检测。
func Classify(text string) Decision {
	normalized := strings.TrimSpace(strings.ToLower(text))
	if normalized == "" {
		return Decision{Category: model.CategoryAmbiguous}
	}

	if DetectCrisis(normalized) {
		return Decision{Category: model.CategoryCrisis, Score: 10, Crisis: true}
	}

	words := tokenize(normalized)
	scores := make(map[model.Category]int)
	for category, keywords := range keywordBuckets {
		for _, word := range keywords {
			if containsKeyword(normalized, words, word) {
				scores[category] += 3
			}
		}
	}

	if strings.Contains(normalized, "?") {
		scores[model.CategoryAdviceRequest]++
	}

	// 问候只有在没有其它信号时才成立，"hi, I feel lonely" 应归为孤独。
	greeting := scores[model.CategoryGreeting]
	delete(scores, model.CategoryGreeting)

	best := model.CategoryAmbiguous
	bestScore := 0
	for _, category := range []model.Category{
		model.CategoryLoneliness,
		model.CategoryMildDistress,
		model.CategoryAdviceRequest,
		model.CategoryPositive,
	} {
		if s := scores[category]; s > bestScore {
			best, bestScore = category, s
		}
	}

	if bestScore == 0 && greeting > 0 && len(words) <= 6 {
		return Decision{Category: model.CategoryGreeting, Score: greeting}
	}
	return Decision{Category: best, Score: bestScore}
}

// DetectCrisis reports whether text contains a self-harm or harm-to-others indicator.
func DetectCrisis(text string) bool {
	normalized := strings.ToLower(text)
	normalized = strings.ReplaceAll(normalized, "’", "'")
	for _, phrase := range crisisPhrases {
		if strings.Contains(normalized, phrase) {
			return true
		}
	}
	return false
}

func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '\'')
	})
}

// containsKeyword 单词关键词按词匹配，避免 "hi" 命中 "this"。
func containsKeyword(normalized string, words []string, keyword string) bool {
	if strings.Contains(keyword, " ") {
		return strings.Contains(normalized, keyword)
	}
	for _, w := range words {
		if w == keyword {
			return true
		}
	}
	return false
}

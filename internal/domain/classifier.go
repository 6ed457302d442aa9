package domain

import "strings"

// Classification is the taxonomy result for one prompt.
type Classification struct {
	Category    string
	Subcategory string
}

// patternGroup is one taxonomy entry. Groups are checked in order and the
// first group with a keyword hit wins.
type patternGroup struct {
	category    string
	keywords    []string
	subcategory func(text string) string
}

func constSub(sub string) func(string) string {
	return func(string) string { return sub }
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

var testKeywords = []string{"test", "spec", "coverage"}

var classifierGroups = []patternGroup{
	{
		category: "bug_fix",
		keywords: []string{"fix", "broken", "bug", "error", "crash", "regression", "doesn't work", "not working"},
		subcategory: func(text string) string {
			if containsAny(text, testKeywords) {
				return "with_tests"
			}
			return "general"
		},
	},
	{
		category: "feature_development",
		keywords: []string{"implement", "add a", "add new", "create", "build", "new feature", "support for"},
		subcategory: func(text string) string {
			if containsAny(text, testKeywords) {
				return "with_tests"
			}
			return "general"
		},
	},
	{
		category:    "testing",
		keywords:    []string{"test", "unit test", "integration test", "coverage", "spec"},
		subcategory: constSub("general"),
	},
	{
		category:    "refactoring",
		keywords:    []string{"refactor", "clean up", "cleanup", "simplify", "restructure", "rename", "extract"},
		subcategory: constSub("general"),
	},
	{
		category:    "documentation",
		keywords:    []string{"document", "readme", "docstring", "comment", "changelog"},
		subcategory: constSub("general"),
	},
	{
		category:    "code_understanding",
		keywords:    []string{"explain", "what does", "how does", "understand", "walk me through", "where is"},
		subcategory: constSub("general"),
	},
	{
		category:    "debugging",
		keywords:    []string{"debug", "investigate", "why is", "diagnose", "trace", "stack trace", "root cause"},
		subcategory: constSub("general"),
	},
	{
		category:    "code_review",
		keywords:    []string{"review", "critique", "feedback on", "look over"},
		subcategory: constSub("general"),
	},
	{
		category:    "configuration",
		keywords:    []string{"config", "setup", "install", "environment", "dependency", "dependencies", "ci pipeline"},
		subcategory: constSub("general"),
	},
	{
		category:    "version_control",
		keywords:    []string{"commit", "rebase", "merge", "branch", "cherry-pick", "git "},
		subcategory: constSub("general"),
	},
}

// ClassifyPrompt maps free-text prompts into the fixed taxonomy.
// Matching is case-insensitive, ordered, first match wins; unmatched text
// falls into general/other.
func ClassifyPrompt(text string) Classification {
	lowered := strings.ToLower(text)

	for _, group := range classifierGroups {
		if containsAny(lowered, group.keywords) {
			return Classification{
				Category:    group.category,
				Subcategory: group.subcategory(lowered),
			}
		}
	}

	return Classification{Category: "general", Subcategory: "other"}
}

package resolver

import (
	"strings"
	"time"
)

// Rule is one entry in the ordered response table. Match receives the
// lower-cased user input; Respond receives the current time so time-sensitive
// responses stay testable.
type Rule struct {
	// Name identifies the rule in logs and metrics.
	Name string

	Match   func(input string) bool
	Respond func(now time.Time) string
}

// contains returns a Match func that fires when the input contains any of the
// given substrings.
func contains(subs ...string) func(string) bool {
	return func(input string) bool {
		for _, s := range subs {
			if strings.Contains(input, s) {
				return true
			}
		}
		return false
	}
}

// static returns a Respond func that ignores the clock.
func static(response string) func(time.Time) string {
	return func(time.Time) string { return response }
}

// defaultRules is the built-in response table. Order matters: the first
// matching rule wins, so "hi" deliberately shadows later rules for inputs
// like "hi, what time is it".
var defaultRules = []Rule{
	{
		Name:    "greeting",
		Match:   contains("hello", "hi"),
		Respond: static("Hi there! How can I help you?"),
	},
	{
		Name:    "identity",
		Match:   contains("your name"),
		Respond: static("I'm your hybrid voice assistant."),
	},
	{
		Name:  "time",
		Match: contains("time"),
		Respond: func(now time.Time) string {
			return "The current time is " + now.Format("03:04 PM") + "."
		},
	},
	{
		Name:    "farewell",
		Match:   contains("bye"),
		Respond: static("Goodbye! Have a great day!"),
	},
	{
		Name:    "acknowledgement",
		Match:   contains("thank"),
		Respond: static("You're very welcome!"),
	},
}

// fallbackRule fires when nothing else matches.
var fallbackRule = Rule{
	Name:    "fallback",
	Match:   func(string) bool { return true },
	Respond: static("I'm still learning, but I can understand many languages!"),
}

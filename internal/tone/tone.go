// Package tone provides a fixed whitelist of reply-style tags, validation,
// mutual-exclusion enforcement, and prompt-guide construction so users can
// tune how Wednesday talks to them.
package tone

import (
	"sort"
	"strings"
	"sync"
)

// AllTags is the hard-coded set of safe style tags.
var AllTags = map[string]bool{
	// Style
	"concise":       true,
	"detailed":      true,
	"formal":        true,
	"casual":        true,
	"no_emojis":     true,
	"emojis_ok":     true,
	"bullet_points": true,
	// Stance
	"warm_supportive":      true,
	"neutral_professional": true,
	"extra_sassy":          true,
	"no_sass":              true,
}

// mutuallyExclusivePairs defines tags where at most one may be active.
// On conflict the later tag wins.
var mutuallyExclusivePairs = [][2]string{
	{"concise", "detailed"},
	{"formal", "casual"},
	{"no_emojis", "emojis_ok"},
	{"extra_sassy", "no_sass"},
	{"warm_supportive", "neutral_professional"},
}

// guides maps each tag to the instruction injected into the system prompt.
var guides = map[string]string{
	"concise":              "Keep replies short and to the point.",
	"detailed":             "Give thorough, detailed replies.",
	"formal":               "Use a formal register.",
	"casual":               "Keep the register casual and relaxed.",
	"no_emojis":            "Do not use emojis.",
	"emojis_ok":            "Emojis are welcome.",
	"bullet_points":        "Prefer bullet points for lists.",
	"warm_supportive":      "Be warm and supportive.",
	"neutral_professional": "Stay neutral and professional.",
	"extra_sassy":          "Turn the sarcasm up a notch.",
	"no_sass":              "Drop the sarcasm entirely.",
}

// Normalize lowercases, deduplicates, and filters tags against the whitelist,
// then resolves mutual exclusions in favor of the later tag. The relative
// order of surviving tags is preserved.
func Normalize(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	valid := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if !AllTags[tag] || seen[tag] {
			continue
		}
		seen[tag] = true
		valid = append(valid, tag)
	}

	for _, pair := range mutuallyExclusivePairs {
		if seen[pair[0]] && seen[pair[1]] {
			// Drop whichever appeared first.
			for i, tag := range valid {
				if tag == pair[0] || tag == pair[1] {
					seen[tag] = false
					valid = append(valid[:i], valid[i+1:]...)
					break
				}
			}
		}
	}

	out := valid[:0]
	for _, tag := range valid {
		if seen[tag] {
			out = append(out, tag)
		}
	}
	return out
}

// AllowedTags returns the whitelist sorted, for user-facing messages.
func AllowedTags() []string {
	tags := make([]string, 0, len(AllTags))
	for tag := range AllTags {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Manager holds per-user style tags. State is in-memory only; styles reset on
// restart, which keeps a bad style request easy to escape.
type Manager struct {
	mu     sync.RWMutex
	styles map[string][]string
}

// NewManager creates an empty style manager.
func NewManager() *Manager {
	return &Manager{styles: make(map[string][]string)}
}

// Set replaces the user's style tags with the normalized form of tags and
// returns what was applied. An input with no valid tags clears nothing and
// returns an empty slice.
func (m *Manager) Set(phone string, tags []string) []string {
	applied := Normalize(tags)
	if len(applied) == 0 {
		return nil
	}
	m.mu.Lock()
	m.styles[phone] = applied
	m.mu.Unlock()
	return applied
}

// Clear removes the user's style tags.
func (m *Manager) Clear(phone string) {
	m.mu.Lock()
	delete(m.styles, phone)
	m.mu.Unlock()
}

// Tags returns the user's active style tags.
func (m *Manager) Tags(phone string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.styles[phone]
}

// Guide builds the prompt guide for the user's active tags. It returns an
// empty string when no tags are set.
func (m *Manager) Guide(phone string) string {
	tags := m.Tags(phone)
	if len(tags) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Reply style preferences for this user:")
	for _, tag := range tags {
		if g, ok := guides[tag]; ok {
			b.WriteString(" ")
			b.WriteString(g)
		}
	}
	return b.String()
}

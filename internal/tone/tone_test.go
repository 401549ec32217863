package tone

import (
	"reflect"
	"strings"
	"testing"
)

func TestNormalizeFiltersAndDeduplicates(t *testing.T) {
	got := Normalize([]string{"Concise", "concise", "telepathic", " no_emojis ", ""})
	want := []string{"concise", "no_emojis"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Normalize = %v, want %v", got, want)
	}
}

func TestNormalizeLaterTagWinsConflicts(t *testing.T) {
	cases := []struct {
		name string
		in   []string
		want []string
	}{
		{"concise then detailed", []string{"concise", "detailed"}, []string{"detailed"}},
		{"detailed then concise", []string{"detailed", "concise"}, []string{"concise"}},
		{"sass conflict with survivor", []string{"extra_sassy", "bullet_points", "no_sass"}, []string{"bullet_points", "no_sass"}},
		{"multiple conflicts", []string{"formal", "no_emojis", "casual", "emojis_ok"}, []string{"casual", "emojis_ok"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Normalize(tc.in); !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Normalize(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeEmptyInput(t *testing.T) {
	if got := Normalize(nil); len(got) != 0 {
		t.Errorf("Normalize(nil) = %v, want empty", got)
	}
	if got := Normalize([]string{"nonsense"}); len(got) != 0 {
		t.Errorf("Normalize with no valid tags = %v, want empty", got)
	}
}

func TestAllowedTagsSortedAndComplete(t *testing.T) {
	tags := AllowedTags()
	if len(tags) != len(AllTags) {
		t.Fatalf("AllowedTags length = %d, want %d", len(tags), len(AllTags))
	}
	for i := 1; i < len(tags); i++ {
		if tags[i-1] >= tags[i] {
			t.Fatalf("AllowedTags not sorted: %v", tags)
		}
	}
}

func TestManagerSetAndGuide(t *testing.T) {
	m := NewManager()

	if guide := m.Guide("123"); guide != "" {
		t.Errorf("guide without styles = %q, want empty", guide)
	}

	applied := m.Set("123", []string{"concise", "no_sass"})
	if !reflect.DeepEqual(applied, []string{"concise", "no_sass"}) {
		t.Fatalf("applied = %v", applied)
	}

	guide := m.Guide("123")
	if !strings.HasPrefix(guide, "Reply style preferences for this user:") {
		t.Errorf("guide preamble missing: %q", guide)
	}
	if !strings.Contains(guide, "short and to the point") || !strings.Contains(guide, "Drop the sarcasm") {
		t.Errorf("guide missing tag instructions: %q", guide)
	}

	// Other users are unaffected.
	if guide := m.Guide("999"); guide != "" {
		t.Errorf("styles leaked across users: %q", guide)
	}
}

func TestManagerSetReplacesPrevious(t *testing.T) {
	m := NewManager()
	m.Set("123", []string{"formal"})
	m.Set("123", []string{"casual"})

	if got := m.Tags("123"); !reflect.DeepEqual(got, []string{"casual"}) {
		t.Errorf("Tags after replace = %v, want [casual]", got)
	}
}

func TestManagerSetWithNoValidTagsKeepsExisting(t *testing.T) {
	m := NewManager()
	m.Set("123", []string{"concise"})

	if applied := m.Set("123", []string{"gibberish"}); applied != nil {
		t.Errorf("invalid-only input applied = %v, want nil", applied)
	}
	if got := m.Tags("123"); !reflect.DeepEqual(got, []string{"concise"}) {
		t.Errorf("existing styles clobbered: %v", got)
	}
}

func TestManagerClear(t *testing.T) {
	m := NewManager()
	m.Set("123", []string{"concise"})
	m.Clear("123")

	if got := m.Tags("123"); len(got) != 0 {
		t.Errorf("Tags after clear = %v, want empty", got)
	}
}

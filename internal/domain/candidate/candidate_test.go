package candidate

import "testing"

func TestKind_IsValid(t *testing.T) {
	if !KindTask.IsValid() || !KindTranscript.IsValid() {
		t.Error("built-in kinds must be valid")
	}
	if Kind("chat").IsValid() {
		t.Error("unknown kind must be invalid")
	}
}

func TestCandidate_EmbeddingText(t *testing.T) {
	tests := []struct {
		primary, secondary, want string
	}{
		{"Buy milk", "two liters", "Buy milk two liters"},
		{"Buy milk", "", "Buy milk"},
		{"", "summary only", "summary only"},
	}
	for _, tt := range tests {
		c := New(KindTask, "t1", tt.primary, tt.secondary, "")
		if got := c.EmbeddingText(); got != tt.want {
			t.Errorf("EmbeddingText() = %q, want %q", got, tt.want)
		}
	}
}

func TestCandidate_Getters(t *testing.T) {
	c := New(KindTranscript, "m1", "Standup", "short summary", "full content")
	if c.Kind() != KindTranscript || c.ID() != "m1" {
		t.Errorf("unexpected identity %s/%s", c.Kind(), c.ID())
	}
	if c.PrimaryText() != "Standup" || c.SecondaryText() != "short summary" || c.Content() != "full content" {
		t.Error("unexpected text fields")
	}
}

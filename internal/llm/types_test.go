package llm

import (
	"errors"
	"testing"
)

func TestFilterMessages(t *testing.T) {
	tests := []struct {
		name  string
		input []Message
		want  []string // expected contents, in order
	}{
		{
			name: "drops empty and whitespace-only",
			input: []Message{
				{Role: RoleSystem, Content: "be brief"},
				{Role: RoleUser, Content: ""},
				{Role: RoleAssistant, Content: "   \n\t"},
				{Role: RoleUser, Content: "hello"},
			},
			want: []string{"be brief", "hello"},
		},
		{
			name: "preserves order of survivors",
			input: []Message{
				{Role: RoleUser, Content: "first"},
				{Role: RoleAssistant, Content: ""},
				{Role: RoleUser, Content: "second"},
				{Role: RoleAssistant, Content: "third"},
			},
			want: []string{"first", "second", "third"},
		},
		{
			name:  "all blank",
			input: []Message{{Content: ""}, {Content: "  "}},
			want:  []string{},
		},
		{
			name:  "nil input",
			input: nil,
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterMessages(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d messages, want %d", len(got), len(tt.want))
			}
			for i, content := range tt.want {
				if got[i].Content != content {
					t.Errorf("message[%d] = %q, want %q", i, got[i].Content, content)
				}
			}
		})
	}
}

func TestPrepareMessagesRejectsEmptyConversation(t *testing.T) {
	_, err := PrepareMessages([]Message{{Role: RoleUser, Content: "  "}})
	if !errors.Is(err, ErrNoValidMessages) {
		t.Errorf("PrepareMessages() error = %v, want ErrNoValidMessages", err)
	}

	messages, err := PrepareMessages([]Message{{Role: RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("PrepareMessages() error = %v", err)
	}
	if len(messages) != 1 {
		t.Errorf("got %d messages, want 1", len(messages))
	}
}

package chat

import "testing"

func TestSwitchDiscardsPreviousView(t *testing.T) {
	s := NewStore("#general")
	if !s.ApplyPoll("#general", []Event{{Kind: EventPlainMessage, Text: "hi"}}, []string{"alice"}) {
		t.Fatal("apply to current channel must succeed")
	}
	if !s.SetFiles("#general", []FileRecord{{ID: 1, OriginalName: "a.txt"}}) {
		t.Fatal("set files on current channel must succeed")
	}

	s.Switch("#dev")

	state := s.Current()
	if state.Name != "#dev" {
		t.Fatalf("expected current channel #dev, got %s", state.Name)
	}
	if len(state.Events) != 0 || len(state.Roster) != 0 || len(state.Files) != 0 || state.Topic != "" {
		t.Fatalf("previous view must be discarded, got %+v", state)
	}
}

func TestApplyPollDropsStaleChannel(t *testing.T) {
	s := NewStore("#general")
	s.Switch("#dev")

	if s.ApplyPoll("#general", []Event{{Kind: EventPlainMessage, Text: "late"}}, []string{"bob"}) {
		t.Fatal("result for a stale channel must be dropped")
	}
	if got := s.Current(); len(got.Events) != 0 || len(got.Roster) != 0 {
		t.Fatalf("stale result leaked into state: %+v", got)
	}
}

func TestApplyPollAppendsInOrderAndReplacesRoster(t *testing.T) {
	s := NewStore("#general")
	s.ApplyPoll("#general", []Event{{Text: "one"}, {Text: "two"}}, []string{"alice", "bob"})
	s.ApplyPoll("#general", []Event{{Text: "three"}}, nil)

	state := s.Current()
	if len(state.Events) != 3 || state.Events[0].Text != "one" || state.Events[2].Text != "three" {
		t.Fatalf("events not appended in order: %+v", state.Events)
	}
	// nil roster leaves the previous roster in place.
	if len(state.Roster) != 2 {
		t.Fatalf("roster lost on nil update: %v", state.Roster)
	}

	s.ApplyPoll("#general", nil, []string{"carol"})
	if got := s.Current().Roster; len(got) != 1 || got[0] != "carol" {
		t.Fatalf("roster not replaced: %v", got)
	}
}

func TestStaleTopicAndFileMutationsDropped(t *testing.T) {
	s := NewStore("#general")
	s.Switch("#dev")

	if s.SetTopic("#general", "old topic") {
		t.Fatal("stale topic must be dropped")
	}
	if s.AppendFile("#general", FileRecord{ID: 9}) {
		t.Fatal("stale file append must be dropped")
	}
	if got := s.Current(); got.Topic != "" || len(got.Files) != 0 {
		t.Fatalf("stale mutation leaked: %+v", got)
	}
}

func TestCurrentReturnsCopy(t *testing.T) {
	s := NewStore("#general")
	s.ApplyPoll("#general", []Event{{Text: "hi"}}, []string{"alice"})

	state := s.Current()
	state.Events[0].Text = "mutated"
	state.Roster[0] = "mallory"

	if got := s.Current(); got.Events[0].Text != "hi" || got.Roster[0] != "alice" {
		t.Fatalf("store state mutated through copy: %+v", got)
	}
}

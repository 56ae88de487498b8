package core

import "testing"

func TestSession_ApplyStateDeltaAndClone(t *testing.T) {
	s := NewSession("app", "u1", "s1")

	s.ApplyStateDelta(map[string]any{"a": 1, "b": "x"})
	if v, ok := s.GetState("a"); !ok || v.(int) != 1 {
		t.Fatalf("state not applied: %+v", s.State)
	}

	clone := s.Clone()
	if clone == s {
		t.Fatal("clone should be a different pointer")
	}
	if clone.UserID != "u1" || clone.AppName != "app" {
		t.Fatalf("clone lost identity: %+v", clone)
	}

	clone.SetState("c", 2)
	if _, exists := s.GetState("c"); exists {
		t.Error("original should not see clone's new key")
	}
}

func TestSession_AddEventAndHistory(t *testing.T) {
	s := NewSession("app", "u1", "s2")
	s.AddEvent(NewMessageEvent("inv", "agent", "hello"))
	s.AddEvent(NewUserContentEvent("inv", &Content{Role: RoleUser, Parts: []Part{TextPart{Text: "hi"}}}))

	partial := NewMessageEvent("inv", "agent", "hel")
	p := true
	partial.Partial = &p
	s.AddEvent(partial)

	sys := NewEvent("inv", "system")
	sysContent := NewTextContent(RoleSystem, "ignored")
	sys.Content = &sysContent
	s.AddEvent(sys)

	all := s.GetEvents()
	if len(all) != 4 {
		t.Fatalf("expected 4 events, got %d", len(all))
	}

	all[0].Author = "changed"
	if s.GetEvents()[0].Author != "agent" {
		t.Error("events slice should be copied on read")
	}

	history := s.GetConversationHistory()
	if len(history) != 2 {
		t.Fatalf("expected 2 history events, got %d", len(history))
	}
}

package session

import "testing"

func TestSessionNotifiesOnChange(t *testing.T) {
	s := New("initial")
	var got []string
	unsub := s.Subscribe(func(tok string) { got = append(got, tok) })

	s.Set("initial") // unchanged, no event
	s.Set("next")
	s.Clear()

	if len(got) != 2 || got[0] != "next" || got[1] != "" {
		t.Fatalf("unexpected events %q", got)
	}
	if s.Authenticated() {
		t.Fatalf("cleared session should not be authenticated")
	}

	unsub()
	unsub()
	s.Set("again")
	if len(got) != 2 {
		t.Fatalf("listener called after unsubscribe: %q", got)
	}
	if s.Token() != "again" {
		t.Fatalf("Token() = %q", s.Token())
	}
}

package status

import (
	"strings"
	"testing"
)

func TestViewShowsText(t *testing.T) {
	m := New("http://quiz.local", true)
	m.SetText("セッション残り時間: 4分", true)
	v := m.View()
	if !strings.Contains(v, "4分") {
		t.Error("view should contain the status text")
	}
	if !strings.Contains(v, "active") {
		t.Error("view should contain the state badge")
	}
	if !strings.Contains(v, "quiz.local") {
		t.Error("view should contain the server")
	}
}

func TestConnectionLabel(t *testing.T) {
	m := New("", true)
	if !strings.Contains(m.View(), "Connecting") {
		t.Error("disconnected feed should show Connecting")
	}
	m.Connected = true
	if !strings.Contains(m.View(), "Live") {
		t.Error("connected feed should show Live")
	}
	m = New("", false)
	if !strings.Contains(m.View(), "Polling") {
		t.Error("no feed should show Polling")
	}
}

package toast

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

var t0 = time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)

func TestAddAndExpire(t *testing.T) {
	m := New()
	m.Add("saved", "success", t0)
	m.Add("failed", "error", t0.Add(2*time.Second))

	m.Expire(t0.Add(TTL))
	if len(m.Toasts) != 1 || m.Toasts[0].Message != "failed" {
		t.Fatalf("after first deadline: %+v", m.Toasts)
	}
	m.Expire(t0.Add(2*time.Second + TTL))
	if len(m.Toasts) != 0 {
		t.Fatalf("expected empty stack, got %+v", m.Toasts)
	}
}

func TestStackCapped(t *testing.T) {
	m := New()
	for i := 0; i < maxVisible+3; i++ {
		m.Add(fmt.Sprintf("toast %d", i), "info", t0)
	}
	if len(m.Toasts) != maxVisible {
		t.Fatalf("expected %d toasts, got %d", maxVisible, len(m.Toasts))
	}
	if m.Toasts[0].Message != "toast 3" {
		t.Errorf("oldest kept = %q, want toast 3", m.Toasts[0].Message)
	}
}

func TestDismiss(t *testing.T) {
	m := New()
	a := m.Add("a", "info", t0)
	m.Add("b", "info", t0)
	m.Dismiss(a)
	if len(m.Toasts) != 1 || m.Toasts[0].Message != "b" {
		t.Fatalf("unexpected stack %+v", m.Toasts)
	}
	m.Dismiss(99)
	if len(m.Toasts) != 1 {
		t.Error("dismissing an unknown id should be a no-op")
	}
}

func TestView(t *testing.T) {
	m := New()
	if m.View(80) != "" {
		t.Error("empty stack should render nothing")
	}
	m.Add("セッションを延長しました", "success", t0)
	if !strings.Contains(m.View(80), "セッションを延長しました") {
		t.Error("view should contain the message")
	}
}

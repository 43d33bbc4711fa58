package popup

import (
	"errors"
	"testing"
	"time"

	"select-translate/src/caret"
)

func anchor() caret.Anchor {
	return caret.Anchor{X: 500, Y: 400, Valid: true, Source: caret.SourcePrecise}
}

func recv(t *testing.T, ch <-chan Decision) Decision {
	t.Helper()
	select {
	case d := <-ch:
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("no decision delivered")
		return 0
	}
}

func TestAutoConfirmResolvesImmediately(t *testing.T) {
	c := &controller{
		autoConfirm: true,
		ask: func(x, y int, source, translated string) (bool, error) {
			t.Error("prompt shown despite auto-confirm")
			return false, nil
		},
		dismiss: func() {},
	}
	if d := recv(t, c.ShowResult(anchor(), "Hello", "你好")); d != DecisionConfirm {
		t.Errorf("decision = %v, want confirm", d)
	}
}

func TestPromptAnswerMapsToDecision(t *testing.T) {
	for _, confirmed := range []bool{true, false} {
		c := &controller{
			ask:     func(x, y int, source, translated string) (bool, error) { return confirmed, nil },
			dismiss: func() {},
		}
		want := DecisionDismiss
		if confirmed {
			want = DecisionConfirm
		}
		if d := recv(t, c.ShowResult(anchor(), "Hello", "你好")); d != want {
			t.Errorf("confirmed=%v: decision = %v, want %v", confirmed, d, want)
		}
	}
}

func TestPromptFailureDismisses(t *testing.T) {
	c := &controller{
		ask:     func(x, y int, source, translated string) (bool, error) { return false, errors.New("no display") },
		dismiss: func() {},
	}
	if d := recv(t, c.ShowResult(anchor(), "Hello", "你好")); d != DecisionDismiss {
		t.Errorf("decision = %v, want dismiss on prompt failure", d)
	}
}

func TestPromptReceivesClampedPosition(t *testing.T) {
	got := make(chan [2]int, 1)
	c := &controller{
		ask: func(x, y int, source, translated string) (bool, error) {
			got <- [2]int{x, y}
			return true, nil
		},
		dismiss: func() {},
	}
	a := caret.Anchor{X: 500, Y: 400, Valid: true, Source: caret.SourcePrecise}
	recv(t, c.ShowResult(a, "Hello", "你好"))

	wx, wy := caret.PopupPosition(a, promptWidth, promptHeight)
	pos := <-got
	if pos[0] != wx || pos[1] != wy {
		t.Errorf("prompt position = %v, want (%d,%d)", pos, wx, wy)
	}
}

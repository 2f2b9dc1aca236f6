package social

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dreamland-studio/dreamland/internal/clock"
)

func newTestCodec() (*StateCodec, *clock.FakeClock) {
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	return NewStateCodec("test-secret", clk, false), clk
}

func TestStateRoundTrip(t *testing.T) {
	codec, _ := newTestCodec()

	in := LoginState{Provider: "google", State: "abc123", ReturnTo: "/dashboard"}
	value, err := codec.Encode(in, StateTTL)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var out LoginState
	if err := codec.Decode(value, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: %+v != %+v", out, in)
	}
}

func TestStateRejectsTampering(t *testing.T) {
	codec, _ := newTestCodec()

	value, err := codec.Encode(LoginState{Provider: "google", State: "abc"}, StateTTL)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	body, mac, _ := strings.Cut(value, ".")
	tampered := []string{
		body,
		body + ".",
		body + "x." + mac,
		body + "." + mac + "x",
		"." + mac,
	}
	var out LoginState
	for _, v := range tampered {
		if err := codec.Decode(v, &out); !errors.Is(err, ErrStateInvalid) {
			t.Errorf("expected ErrStateInvalid for %q, got %v", v, err)
		}
	}
}

func TestStateRejectsForeignSecret(t *testing.T) {
	codec, _ := newTestCodec()
	other := NewStateCodec("other-secret", clock.NewFakeClock(time.Now()), false)

	value, err := other.Encode(LoginState{Provider: "google"}, StateTTL)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var out LoginState
	if err := codec.Decode(value, &out); !errors.Is(err, ErrStateInvalid) {
		t.Fatalf("expected ErrStateInvalid, got %v", err)
	}
}

func TestStateExpiry(t *testing.T) {
	codec, clk := newTestCodec()

	value, err := codec.Encode(RegisterState{Provider: "discord", ProviderAccountID: "1"}, StateTTL)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var out RegisterState
	clk.Advance(StateTTL - time.Second)
	if err := codec.Decode(value, &out); err != nil {
		t.Fatalf("state should still be valid: %v", err)
	}

	clk.Advance(2 * time.Second)
	if err := codec.Decode(value, &out); !errors.Is(err, ErrStateExpired) {
		t.Fatalf("expected ErrStateExpired, got %v", err)
	}
}

func TestSanitizeReturnTo(t *testing.T) {
	cases := map[string]string{
		"/dashboard":          "/dashboard",
		"/a/b?x=1":            "/a/b?x=1",
		"":                    "/",
		"https://example.com": "/",
		"//evil.com":          "/",
		"dashboard":           "/",
	}
	for in, want := range cases {
		if got := sanitizeReturnTo(in); got != want {
			t.Errorf("sanitizeReturnTo(%q) = %q, want %q", in, got, want)
		}
	}
}

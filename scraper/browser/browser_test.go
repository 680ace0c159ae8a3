package browser

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"review-scraper/config"
)

func TestFindChromeBinaryOverride(t *testing.T) {
	if got := findChromeBinary("/opt/chrome/chrome"); got != "/opt/chrome/chrome" {
		t.Errorf("override: got %q", got)
	}
	t.Setenv("CHROME_BIN", "/from/env")
	if got := findChromeBinary(""); got != "/from/env" {
		t.Errorf("env: got %q", got)
	}
}

func TestNewProbe(t *testing.T) {
	cfg := config.Default()
	if _, ok := newProbe(cfg).(heightProbe); !ok {
		t.Errorf("scroll mode should use the height probe")
	}

	cfg.ScrollMode = "loadmore"
	p, ok := newProbe(cfg).(*loadMoreProbe)
	if !ok {
		t.Fatalf("loadmore mode should use the load-more probe")
	}
	if p.items != cfg.Selectors.Item || p.button != cfg.LoadMoreSelector {
		t.Errorf("probe selectors: got %+v", p)
	}
}

func TestJSString(t *testing.T) {
	tests := []struct{ in, want string }{
		{"a.fd-btn-more", `"a.fd-btn-more"`},
		{`input[name="Email"]`, `"input[name=\"Email\"]"`},
	}
	for _, tt := range tests {
		if got := jsString(tt.in); got != tt.want {
			t.Errorf("jsString(%q) = %s; want %s", tt.in, got, tt.want)
		}
	}
}

func TestWaitForEnter(t *testing.T) {
	if err := waitForEnter(context.Background(), strings.NewReader("\n")); err != nil {
		t.Errorf("enter: %v", err)
	}
	if err := waitForEnter(context.Background(), strings.NewReader("")); err != nil {
		t.Errorf("closed stdin should not block: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r, _ := io.Pipe()
	if err := waitForEnter(ctx, r); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled: got %v", err)
	}
}

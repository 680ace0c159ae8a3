package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chromedp/chromedp"

	"review-scraper/config"
	"review-scraper/scraper/scroll"
)

func newProbe(cfg *config.Config) scroll.Probe {
	if cfg.ScrollMode == "loadmore" {
		return &loadMoreProbe{items: cfg.Selectors.Item, button: cfg.LoadMoreSelector}
	}
	return heightProbe{}
}

// heightProbe scrolls the window to the bottom and measures scrollHeight.
type heightProbe struct{}

func (heightProbe) Measure(ctx context.Context) (int, error) {
	var h int
	err := chromedp.Run(ctx, chromedp.Evaluate(`document.body ? document.body.scrollHeight : 0`, &h))
	return h, err
}

func (heightProbe) Advance(ctx context.Context) (bool, error) {
	err := chromedp.Run(ctx, chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil))
	return err == nil, err
}

// loadMoreProbe clicks the "load more" button and counts rendered items.
type loadMoreProbe struct {
	items  string
	button string
}

func (p *loadMoreProbe) Measure(ctx context.Context) (int, error) {
	var n int
	js := fmt.Sprintf(`document.querySelectorAll(%s).length`, jsString(p.items))
	err := chromedp.Run(ctx, chromedp.Evaluate(js, &n))
	return n, err
}

func (p *loadMoreProbe) Advance(ctx context.Context) (bool, error) {
	var clicked bool
	js := fmt.Sprintf(`(function() {
		var btn = document.querySelector(%s);
		if (!btn || btn.offsetParent === null) return false;
		btn.scrollIntoView({block: 'center'});
		btn.click();
		return true;
	})()`, jsString(p.button))
	err := chromedp.Run(ctx, chromedp.Evaluate(js, &clicked))
	return clicked, err
}

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

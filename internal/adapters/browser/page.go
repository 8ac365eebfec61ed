package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"placeharvest/internal/adapters/observability"
	"placeharvest/internal/domain"
)

const searchBoxSelector = `input#searchboxinput, input[name="q"]`

type Options struct {
	Headless      bool
	UserAgent     string
	Locale        string
	ExecPath      string
	ActionTimeout time.Duration
	NavTimeout    time.Duration
	Settle        time.Duration // pause after scroll/click so results can render
	MinInterval   time.Duration // minimum spacing between navigations
}

// Page drives one Chrome tab. It is not safe for concurrent use; the pipeline
// issues one action at a time.
type Page struct {
	ctx  context.Context // tab context
	opts Options
	rl   *rate.Limiter
	snap *DOM
}

// Launch starts Chrome and opens a blank tab. The returned func closes it.
func Launch(parent context.Context, opts Options) (*Page, func(), error) {
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = 15 * time.Second
	}
	if opts.NavTimeout <= 0 {
		opts.NavTimeout = 60 * time.Second
	}
	if opts.Settle <= 0 {
		opts.Settle = 1200 * time.Millisecond
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	}
	if opts.Locale == "" {
		opts.Locale = "en-US"
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("lang", opts.Locale),
		chromedp.WindowSize(1500, 950),
		chromedp.UserAgent(opts.UserAgent),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	closeAll := func() {
		tabCancel()
		allocCancel()
	}
	if err := chromedp.Run(tabCtx, chromedp.Navigate("about:blank")); err != nil {
		closeAll()
		return nil, nil, fmt.Errorf("launch browser: %w", err)
	}

	lim := rate.Inf
	if opts.MinInterval > 0 {
		lim = rate.Every(opts.MinInterval)
	}
	return &Page{ctx: tabCtx, opts: opts, rl: rate.NewLimiter(lim, 1)}, closeAll, nil
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := p.rl.Wait(ctx); err != nil {
		return err
	}
	p.snap = nil
	err := p.run(ctx, "navigate", p.opts.NavTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return err
	}
	// consent and promo dialogs are best effort
	var clicked bool
	_ = p.run(ctx, "consent", p.opts.ActionTimeout, chromedp.Evaluate(consentScript, &clicked))
	if clicked {
		log.Debug().Str("url", url).Msg("consent dialog dismissed")
	}
	return nil
}

func (p *Page) TypeAndSubmit(ctx context.Context, query string) error {
	p.snap = nil
	return p.run(ctx, "type_submit", p.opts.ActionTimeout,
		chromedp.WaitVisible(searchBoxSelector, chromedp.ByQuery),
		chromedp.SetValue(searchBoxSelector, "", chromedp.ByQuery),
		chromedp.SendKeys(searchBoxSelector, query+kb.Enter, chromedp.ByQuery),
		chromedp.Sleep(p.opts.Settle),
	)
}

func (p *Page) Scroll(ctx context.Context, container string) error {
	p.snap = nil
	var found bool
	return p.run(ctx, "scroll", p.opts.ActionTimeout,
		chromedp.Evaluate(fmt.Sprintf(scrollScript, jsString(container)), &found),
		chromedp.Sleep(p.opts.Settle),
	)
}

func (p *Page) Click(ctx context.Context, t domain.Target) (bool, error) {
	var clicked bool
	err := p.run(ctx, "click", p.opts.ActionTimeout,
		chromedp.Evaluate(fmt.Sprintf(clickScript, jsString(t.Selector), jsString(t.Text)), &clicked),
	)
	if err != nil || !clicked {
		return false, err
	}
	p.snap = nil
	if err := p.run(ctx, "settle", p.opts.Settle+p.opts.ActionTimeout, chromedp.Sleep(p.opts.Settle)); err != nil {
		return true, err
	}
	return true, nil
}

// SetGeolocation grants the geolocation permission and pins the reported
// position to c until the next call.
func (p *Page) SetGeolocation(ctx context.Context, c domain.Coords) error {
	return p.run(ctx, "geolocation", p.opts.ActionTimeout,
		cdpbrowser.GrantPermissions([]cdpbrowser.PermissionType{cdpbrowser.PermissionTypeGeolocation}),
		emulation.SetGeolocationOverride().WithLatitude(c.Lat).WithLongitude(c.Lon).WithAccuracy(100),
	)
}

func (p *Page) WaitFor(ctx context.Context, selector string) error {
	return p.run(ctx, "wait", p.opts.ActionTimeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (p *Page) URL(ctx context.Context) (string, error) {
	var u string
	err := p.run(ctx, "location", p.opts.ActionTimeout, chromedp.Location(&u))
	return u, err
}

func (p *Page) QueryText(ctx context.Context, selector string) ([]string, error) {
	d, err := p.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return d.Text(selector), nil
}

func (p *Page) QueryLinks(ctx context.Context, selector string) ([]domain.Link, error) {
	d, err := p.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return d.Links(selector), nil
}

func (p *Page) QueryAttr(ctx context.Context, selector, attr string) ([]string, error) {
	d, err := p.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return d.Attr(selector, attr), nil
}

// snapshot parses the current DOM once per page state; any mutating action
// invalidates it.
func (p *Page) snapshot(ctx context.Context) (*DOM, error) {
	if p.snap != nil {
		return p.snap, nil
	}
	var html, loc string
	if err := p.run(ctx, "snapshot", p.opts.ActionTimeout,
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Location(&loc),
	); err != nil {
		return nil, err
	}
	d, err := NewDOM(html, loc)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w: %v", domain.ErrPageAction, err)
	}
	p.snap = d
	return d, nil
}

// run executes actions on the tab bounded by timeout and by ctx.
func (p *Page) run(ctx context.Context, action string, timeout time.Duration, actions ...chromedp.Action) error {
	tctx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	start := time.Now()
	err := chromedp.Run(tctx, actions...)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		err = fmt.Errorf("%s: %w", action, ctx.Err())
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(tctx.Err(), context.DeadlineExceeded):
		err = fmt.Errorf("%s: %w", action, domain.ErrPageTimeout)
	default:
		err = fmt.Errorf("%s: %w: %v", action, domain.ErrPageAction, err)
	}
	observability.ObservePage(action, err, time.Since(start))
	return err
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

const consentScript = `(function () {
  const selectors = [
    'button[aria-label="Accept all"]',
    'button[aria-label="I agree"]',
    'button[aria-label="Alles akzeptieren"]',
    'button[aria-label="قبول الكل"]',
    'button[aria-label="ยอมรับทั้งหมด"]',
    'form[action*="consent"] button'
  ];
  for (const sel of selectors) {
    const btn = document.querySelector(sel);
    if (btn) {
      btn.click();
      return true;
    }
  }
  return false;
})()`

const scrollScript = `(function (sel) {
  const el = document.querySelector(sel);
  if (!el) {
    window.scrollBy(0, window.innerHeight);
    return false;
  }
  el.scrollBy(0, el.scrollHeight);
  return true;
})(%s)`

const clickScript = `(function (sel, text) {
  let el = sel ? document.querySelector(sel) : null;
  if (!el && text) {
    const want = text.toLowerCase();
    el = Array.from(document.querySelectorAll('button, [role="button"]')).find(b =>
      ((b.innerText || '') + ' ' + (b.getAttribute('aria-label') || '')).toLowerCase().includes(want));
  }
  if (!el) {
    return false;
  }
  el.click();
  return true;
})(%s, %s)`

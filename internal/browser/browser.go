package browser

import (
	"fmt"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

// Config controls how the browser is launched.
type Config struct {
	Headless bool
	// Viewport defaults to 1920x1080 when zero.
	ViewportWidth  int
	ViewportHeight int
}

// Browser owns the playwright runtime and a single launched browser.
type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	logger  *zap.Logger
}

// Launch starts playwright and a Chromium instance.
func Launch(cfg Config, logger *zap.Logger) (*Browser, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("starting playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	return &Browser{pw: pw, browser: browser, logger: logger}, nil
}

// NewPage opens a page in a fresh browser context.
func (b *Browser) NewPage(cfg Config) (playwright.Page, error) {
	width, height := cfg.ViewportWidth, cfg.ViewportHeight
	if width <= 0 {
		width = 1920
	}
	if height <= 0 {
		height = 1080
	}

	ctx, err := b.browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: width, Height: height},
	})
	if err != nil {
		return nil, fmt.Errorf("creating browser context: %w", err)
	}

	page, err := ctx.NewPage()
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("creating page: %w", err)
	}
	return page, nil
}

// Close shuts down the browser and the playwright runtime.
func (b *Browser) Close() error {
	if b.browser != nil {
		b.browser.Close()
	}
	if b.pw != nil {
		return b.pw.Stop()
	}
	return nil
}

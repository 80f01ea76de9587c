package browser

import (
	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/memfill/memfill/internal/dom"
	"github.com/memfill/memfill/internal/domain"
)

// MaxFrameDepth bounds frame traversal. Pages nesting iframes deeper
// than this are either broken or hostile.
const MaxFrameDepth = 10

// rectScript stamps every form control with its viewport geometry so
// the parsed snapshot keeps positions the detector can use for
// visibility and highlight decisions.
const rectScript = `() => {
	for (const el of document.querySelectorAll('input, select, textarea')) {
		const r = el.getBoundingClientRect();
		el.setAttribute('data-rect', JSON.stringify({x: r.x, y: r.y, width: r.width, height: r.height}));
	}
}`

// FrameDocument is one frame's parsed snapshot plus its identity and
// position within the page.
type FrameDocument struct {
	Doc  *dom.Document
	Info domain.FrameInfo
}

// Loader turns a live page into per-frame document snapshots.
type Loader struct {
	logger *zap.Logger
}

// NewLoader creates a loader.
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger}
}

// Snapshot captures every reachable frame of the page. Frames that
// cannot be read, usually cross-origin, are skipped rather than failing
// the snapshot: a page with one opaque ad iframe still has fillable
// forms.
func (l *Loader) Snapshot(page playwright.Page) []FrameDocument {
	main := page.MainFrame()
	var out []FrameDocument

	for _, frame := range page.Frames() {
		depth := frameDepth(frame)
		if depth > MaxFrameDepth {
			l.logger.Debug("frame beyond depth limit", zap.String("url", frame.URL()), zap.Int("depth", depth))
			continue
		}

		if _, err := frame.Evaluate(rectScript); err != nil {
			l.logger.Debug("geometry annotation failed", zap.String("url", frame.URL()), zap.Error(err))
		}

		content, err := frame.Content()
		if err != nil {
			l.logger.Debug("frame content unreadable", zap.String("url", frame.URL()), zap.Error(err))
			continue
		}

		doc, err := dom.Parse(content, frame.URL())
		if err != nil {
			l.logger.Warn("frame parse failed", zap.String("url", frame.URL()), zap.Error(err))
			continue
		}

		info := domain.FrameInfo{
			IsMainFrame: frame == main,
			URL:         frame.URL(),
			Depth:       depth,
			Offset:      frameOffset(frame),
		}
		if parent := frame.ParentFrame(); parent != nil {
			info.ParentURL = parent.URL()
		}
		out = append(out, FrameDocument{Doc: doc, Info: info})
	}

	l.logger.Debug("page snapshot complete", zap.Int("frames", len(out)))
	return out
}

func frameDepth(frame playwright.Frame) int {
	depth := 0
	for parent := frame.ParentFrame(); parent != nil; parent = parent.ParentFrame() {
		depth++
		if depth > MaxFrameDepth {
			break
		}
	}
	return depth
}

// frameOffset accumulates the positions of the ancestor iframe elements
// so frame-local rects can be lifted into top-document coordinates at
// merge time. Unreadable ancestors contribute zero.
func frameOffset(frame playwright.Frame) domain.Rect {
	var offset domain.Rect
	for f := frame; f.ParentFrame() != nil; f = f.ParentFrame() {
		el, err := f.FrameElement()
		if err != nil {
			continue
		}
		box, err := el.BoundingBox()
		if err != nil || box == nil {
			continue
		}
		offset.X += box.X
		offset.Y += box.Y
	}
	return offset
}

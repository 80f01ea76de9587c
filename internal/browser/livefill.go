package browser

import (
	"fmt"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/memfill/memfill/internal/domain"
	"github.com/memfill/memfill/internal/services/detection"
	"github.com/memfill/memfill/internal/textutil"
)

// LiveFiller writes fill instructions into a running page. Targets are
// located by the opid stamp, searched across every frame; playwright's
// Fill and Check dispatch the input and change events framework-bound
// listeners expect, so React-controlled inputs pick the value up.
type LiveFiller struct {
	logger *zap.Logger
}

// NewLiveFiller creates a live filler.
func NewLiveFiller(logger *zap.Logger) *LiveFiller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LiveFiller{logger: logger}
}

// Apply executes the plan against the page. Each instruction is
// independent; unlocatable or inapplicable fields are reported, never
// aborting the batch.
func (f *LiveFiller) Apply(page playwright.Page, plan domain.FillPlan) domain.FillReport {
	var report domain.FillReport

	for _, inst := range plan.Instructions {
		loc, frame := f.locate(page, inst.FieldOpid)
		if loc == nil {
			report.Skipped++
			report.Misses = append(report.Misses, inst.FieldOpid)
			f.logger.Debug("fill target not on page", zap.String("opid", inst.FieldOpid))
			continue
		}
		if err := f.write(frame, loc, inst.Value); err != nil {
			report.Skipped++
			f.logger.Warn("fill failed", zap.String("opid", inst.FieldOpid), zap.Error(err))
			continue
		}
		report.Filled++
	}

	f.logger.Info("live fill complete",
		zap.Int("filled", report.Filled),
		zap.Int("skipped", report.Skipped),
		zap.Int("misses", len(report.Misses)))
	return report
}

func (f *LiveFiller) locate(page playwright.Page, opid string) (playwright.Locator, playwright.Frame) {
	sel := opidSelector(opid)
	for _, frame := range page.Frames() {
		loc := frame.Locator(sel)
		if n, err := loc.Count(); err == nil && n > 0 {
			return loc.First(), frame
		}
	}
	return nil, nil
}

func (f *LiveFiller) write(frame playwright.Frame, loc playwright.Locator, value string) error {
	kindRaw, err := loc.Evaluate(`el => el.tagName.toLowerCase() + ":" + (el.type || "")`, nil)
	if err != nil {
		return fmt.Errorf("inspecting target: %w", err)
	}
	kind, _ := kindRaw.(string)

	switch kind {
	case "select:select-one", "select:select-multiple":
		return fillSelect(loc, value)
	case "input:checkbox":
		return loc.SetChecked(isAffirmative(value))
	case "input:radio":
		return fillRadio(frame, loc, value)
	default:
		return loc.Fill(value)
	}
}

// fillSelect tries the submission value first, then the visible label.
func fillSelect(loc playwright.Locator, value string) error {
	if _, err := loc.SelectOption(playwright.SelectOptionValues{Values: &[]string{value}}); err == nil {
		return nil
	}
	_, err := loc.SelectOption(playwright.SelectOptionValues{Labels: &[]string{value}})
	return err
}

// fillRadio checks the group member whose value matches; the located
// element is just whichever radio carries the opid stamp.
func fillRadio(frame playwright.Frame, loc playwright.Locator, value string) error {
	name, err := loc.GetAttribute("name")
	if err != nil || name == "" {
		return loc.SetChecked(true)
	}
	target := frame.Locator(fmt.Sprintf(`input[type="radio"][name=%q][value=%q]`, name, value))
	if n, err := target.Count(); err == nil && n > 0 {
		return target.First().Check()
	}
	return fmt.Errorf("no radio in group %q accepts %q", name, value)
}

func opidSelector(opid string) string {
	return fmt.Sprintf(`[%s=%q]`, detection.OpidAttr, opid)
}

func isAffirmative(value string) bool {
	switch textutil.Normalize(value) {
	case "true", "yes", "1", "on", "checked":
		return true
	}
	return false
}

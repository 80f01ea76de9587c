package autofill

import (
	"strings"

	"go.uber.org/zap"

	"github.com/memfill/memfill/internal/dom"
	"github.com/memfill/memfill/internal/domain"
	"github.com/memfill/memfill/internal/observability"
	"github.com/memfill/memfill/internal/services/detection"
	"github.com/memfill/memfill/internal/textutil"
)

// Filler writes fill instructions into the session's document. Each
// instruction is independent: a field that cannot be resolved or whose
// value does not apply is recorded in the report, never aborting the
// remaining fields.
type Filler struct {
	session *detection.Session
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewFiller creates a filler bound to one frame session.
func NewFiller(session *detection.Session, metrics *observability.Metrics, logger *zap.Logger) *Filler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filler{session: session, metrics: metrics, logger: logger}
}

// Fill applies the plan against the session. A stale generation fails
// the whole plan: opid numbering restarts every detection pass, so a
// stale opid may name a different element in the current document and
// recovery would silently fill the wrong field.
func (f *Filler) Fill(plan domain.FillPlan) (domain.FillReport, error) {
	var report domain.FillReport

	for _, inst := range plan.Instructions {
		field, err := f.session.Field(plan.Generation, inst.FieldOpid)
		if err != nil {
			return domain.FillReport{}, err
		}

		switch {
		case field != nil:
			f.record(&report, inst.FieldOpid, f.applyField(field, inst.Value))
		case f.recoverAndApply(inst):
			f.record(&report, inst.FieldOpid, outcomeFilled)
		default:
			f.record(&report, inst.FieldOpid, outcomeMiss)
		}
	}

	f.logger.Info("fill complete",
		zap.Uint64("generation", plan.Generation),
		zap.Int("filled", report.Filled),
		zap.Int("skipped", report.Skipped),
		zap.Int("misses", len(report.Misses)))
	return report, nil
}

const (
	outcomeFilled  = "filled"
	outcomeSkipped = "skipped"
	outcomeMiss    = "miss"
)

func (f *Filler) record(report *domain.FillReport, opid, outcome string) {
	switch outcome {
	case outcomeFilled:
		report.Filled++
	case outcomeSkipped:
		report.Skipped++
	case outcomeMiss:
		report.Misses = append(report.Misses, opid)
		report.Skipped++
		f.logger.Debug("fill target not found", zap.String("opid", opid))
	}
	if f.metrics != nil {
		f.metrics.RecordFill(outcome)
	}
}

func (f *Filler) applyField(field *detection.DetectedField, value string) string {
	switch field.Metadata.FieldType {
	case domain.FieldTypeCheckbox:
		return applyCheckbox(field.Element, value)
	case domain.FieldTypeRadio:
		return f.applyRadio(field, value)
	case domain.FieldTypeSelect:
		return applySelect(field.Element, field.Metadata.Options, value)
	default:
		field.Element.SetAttr("value", value)
		return outcomeFilled
	}
}

// recoverAndApply scans the current document for an element carrying the
// opid stamp. The stamp survives cache invalidation within a generation,
// so fields added to the cache map late (or evicted by concurrent
// mutation handling) can still be filled.
func (f *Filler) recoverAndApply(inst domain.FillInstruction) bool {
	doc := f.session.Document()
	if doc == nil || doc.Root == nil {
		return false
	}
	matches := dom.CollectAll(doc.Root, func(el *dom.Element) bool {
		return el.Attr(detection.OpidAttr) == inst.FieldOpid
	})
	if len(matches) == 0 {
		return false
	}
	el := matches[0]
	switch {
	case el.Type() == "checkbox":
		applyCheckbox(el, inst.Value)
	case el.Type() == "radio":
		if el.Attr("value") == inst.Value {
			el.SetAttr("checked", "checked")
		}
	default:
		el.SetAttr("value", inst.Value)
	}
	return true
}

func applyCheckbox(el *dom.Element, value string) string {
	switch textutil.Normalize(value) {
	case "true", "yes", "1", "on", "checked":
		el.SetAttr("checked", "checked")
	default:
		el.SetAttr("checked", "")
	}
	return outcomeFilled
}

// applyRadio checks the sibling radio whose option matches the value.
// Options carry both the submission value and the visible label; the
// value may arrive as either.
func (f *Filler) applyRadio(field *detection.DetectedField, value string) string {
	opt, ok := matchOption(field.Metadata.Options, value)
	if !ok {
		return outcomeSkipped
	}

	doc := f.session.Document()
	if doc == nil || doc.Root == nil {
		return outcomeSkipped
	}
	name := field.Element.Attr("name")
	radios := dom.CollectAll(doc.Root, func(el *dom.Element) bool {
		return el.Tag == "input" && el.Type() == "radio" && el.Attr("name") == name
	})
	for _, radio := range radios {
		if radio.Attr("value") == opt.Value {
			radio.SetAttr("checked", "checked")
			return outcomeFilled
		}
	}
	return outcomeSkipped
}

func applySelect(el *dom.Element, options []domain.OptionPair, value string) string {
	opt, ok := matchOption(options, value)
	if !ok {
		return outcomeSkipped
	}
	el.SetAttr("value", opt.Value)
	return outcomeFilled
}

// matchOption resolves a fill value against an option list, trying the
// submission value first, then the visible label, then a normalized
// label comparison. Memories store what the user said, not what the
// form submits.
func matchOption(options []domain.OptionPair, value string) (domain.OptionPair, bool) {
	for _, opt := range options {
		if opt.Value == value {
			return opt, true
		}
	}
	for _, opt := range options {
		if strings.EqualFold(opt.Label, value) {
			return opt, true
		}
	}
	norm := textutil.Normalize(value)
	if norm != "" {
		for _, opt := range options {
			if textutil.Normalize(opt.Label) == norm || textutil.Normalize(opt.Value) == norm {
				return opt, true
			}
		}
	}
	return domain.OptionPair{}, false
}

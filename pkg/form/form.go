// Package form fills registration forms from declarative field specs. Fields absent from
// the page are skipped, dropdowns never stay at their placeholder option.
package form

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/umputun/regcheck/pkg/interact"
	"github.com/umputun/regcheck/pkg/page"
	"github.com/umputun/regcheck/pkg/resolve"
)

// DefaultFieldDelay is the pause after each filled field, keeping clear of the target
// site's input debouncing.
const DefaultFieldDelay = 150 * time.Millisecond

// placeholderSelector lists the elements searched when a field is located by placeholder.
const placeholderSelector = "input, textarea, select"

// placeholderOptionRe matches option labels that only prompt for a choice.
var placeholderOptionRe = regexp.MustCompile(`(?i)^\s*(?:(?:select|choose|please|pick)\b|--)`)

// Kind is how a field receives its value.
type Kind string

// field kinds.
const (
	KindText        Kind = "text"         // type the value as a literal string
	KindSelectLabel Kind = "select-label" // select the option with this visible label
	KindSelectValue Kind = "select-value" // select the option with this value or visible text
)

// FieldSpec describes one form field. The field is filled only if its locator finds an
// element; Selector takes precedence over Placeholder.
type FieldSpec struct {
	Name        string
	Selector    string // CSS selector of the field
	Placeholder string // case-insensitive placeholder, aria-label or name fragment
	Kind        Kind   // empty means KindText
	Value       string
	Scroll      bool // scroll into view before filling
}

func (f FieldSpec) kind() Kind {
	if f.Kind == "" {
		return KindText
	}
	return f.Kind
}

func (f FieldSpec) locator() string {
	if f.Selector != "" {
		return f.Selector
	}
	return fmt.Sprintf("placeholder~%q", f.Placeholder)
}

// FormFieldMissingError marks a field whose existence guard failed. Fill recovers it
// locally by skipping the field.
type FormFieldMissingError struct {
	Field   string
	Locator string
}

func (e *FormFieldMissingError) Error() string {
	return fmt.Sprintf("field %s not present (%s)", e.Field, e.Locator)
}

// Report lists what Fill did with each spec.
type Report struct {
	Filled    []string
	Skipped   []string
	Fallbacks map[string]string // field name -> option label chosen instead of the requested one
}

// Interactor performs a single interaction on an element.
type Interactor interface {
	Do(ctx context.Context, el page.Element, a interact.Action) error
}

// Logger is the diagnostic sink for skipped fields and dropdown fallbacks.
type Logger interface {
	Print(format string, args ...any)
}

// Filler fills fields in spec order.
type Filler struct {
	Exec       Interactor
	Log        Logger
	FieldDelay time.Duration // pause after each filled field, zero uses DefaultFieldDelay
}

// Fill fills every present field in specs order and skips absent ones without error.
// interaction errors on present fields stop the fill and are returned.
func (f *Filler) Fill(ctx context.Context, p page.Page, specs []FieldSpec) (Report, error) {
	report := Report{Fallbacks: map[string]string{}}
	delay := f.FieldDelay
	if delay <= 0 {
		delay = DefaultFieldDelay
	}

	for _, spec := range specs {
		el, err := locate(ctx, p, spec)
		if err != nil {
			return report, fmt.Errorf("locate field %s: %w", spec.Name, err)
		}
		if el == nil {
			missing := &FormFieldMissingError{Field: spec.Name, Locator: spec.locator()}
			f.print("skip: %v", missing)
			report.Skipped = append(report.Skipped, spec.Name)
			continue
		}

		action := interact.Action{Kind: interact.KindType, Target: spec.Name, Value: spec.Value, Scroll: spec.Scroll}
		if spec.kind() != KindText {
			opts, err := el.Options(ctx)
			if err != nil {
				return report, fmt.Errorf("read options of %s: %w", spec.Name, err)
			}
			value, fallback, err := chooseOption(opts, spec)
			if err != nil {
				return report, fmt.Errorf("field %s: %w", spec.Name, err)
			}
			if fallback != "" {
				f.print("field %s: option %q not found, selected %q", spec.Name, spec.Value, fallback)
				report.Fallbacks[spec.Name] = fallback
			}
			action.Kind, action.Value = interact.KindSelect, value
		}

		if err := f.Exec.Do(ctx, el, action); err != nil {
			return report, fmt.Errorf("fill %s: %w", spec.Name, err)
		}
		report.Filled = append(report.Filled, spec.Name)

		if err := interact.Sleep(ctx, delay); err != nil {
			return report, fmt.Errorf("delay after %s: %w", spec.Name, err)
		}
	}
	return report, nil
}

func (f *Filler) print(format string, args ...any) {
	if f.Log != nil {
		f.Log.Print(format, args...)
	}
}

// locate returns the first element of the field or nil if the field is absent.
func locate(ctx context.Context, p page.Page, spec FieldSpec) (page.Element, error) {
	if spec.Selector != "" {
		els, err := p.Query(ctx, spec.Selector)
		if err != nil {
			return nil, err
		}
		if len(els) == 0 {
			return nil, nil
		}
		return els[0], nil
	}

	needle := strings.ToLower(strings.TrimSpace(spec.Placeholder))
	if needle == "" {
		return nil, fmt.Errorf("field %s has neither selector nor placeholder", spec.Name)
	}
	els, err := p.Query(ctx, placeholderSelector)
	if err != nil {
		return nil, err
	}
	for _, el := range els {
		attrs, err := el.Attributes(ctx)
		if err != nil {
			continue // detached while scanning, not this field
		}
		for _, key := range []string{"placeholder", "aria-label", "name"} {
			if strings.Contains(strings.ToLower(attrs[key]), needle) {
				return el, nil
			}
		}
	}
	return nil, nil
}

// chooseOption picks the option requested by spec, or the first non-placeholder option.
// fallback is the label of the substitute option, empty when the requested one was found.
func chooseOption(opts []page.Option, spec FieldSpec) (value, fallback string, err error) {
	want := resolve.NormalizeText(spec.Value)
	for _, o := range opts {
		if isPlaceholder(o) {
			continue
		}
		label := resolve.NormalizeText(o.Label)
		switch spec.kind() {
		case KindSelectLabel:
			if strings.EqualFold(label, want) {
				return o.Value, "", nil
			}
		case KindSelectValue:
			if o.Value == spec.Value || strings.EqualFold(label, want) {
				return o.Value, "", nil
			}
		}
	}

	for _, o := range opts {
		if !isPlaceholder(o) {
			return o.Value, resolve.NormalizeText(o.Label), nil
		}
	}
	return "", "", fmt.Errorf("no selectable option among %d", len(opts))
}

func isPlaceholder(o page.Option) bool {
	return o.Disabled || strings.TrimSpace(o.Value) == "" || placeholderOptionRe.MatchString(o.Label)
}

// Package scenario loads registration scenarios from YAML files. Literal test data
// (workshop names, cities, phone numbers) lives in scenario vars and is referenced as
// ${NAME}, so the same flow runs against any staging dataset.
package scenario

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/umputun/regcheck/pkg/form"
	"github.com/umputun/regcheck/pkg/outcome"
	"github.com/umputun/regcheck/pkg/resolve"
	"github.com/umputun/regcheck/pkg/runner"
	"github.com/umputun/regcheck/pkg/status"
)

// EnvPrefix marks environment variables overriding scenario vars, REGCHECK_VAR_CITY sets ${CITY}.
const EnvPrefix = "REGCHECK_VAR_"

var varRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// file is the YAML layout of a scenario.
type file struct {
	Name    string            `yaml:"name"`
	URL     string            `yaml:"url"`
	Vars    map[string]string `yaml:"vars"`
	Steps   []stepSpec        `yaml:"steps"`
	Fields  []fieldSpec       `yaml:"fields"`
	Submit  *stepSpec         `yaml:"submit"`
	Outcome []signalSpec      `yaml:"outcome"`
}

type stepSpec struct {
	Name     string          `yaml:"name"`
	Scope    string          `yaml:"scope"`
	Timeout  string          `yaml:"timeout"`
	Scroll   bool            `yaml:"scroll"`
	Force    bool            `yaml:"force"`
	Criteria []criterionSpec `yaml:"criteria"`
}

// criterionSpec is one criterion, exactly one key must be set.
type criterionSpec struct {
	Exact    []string     `yaml:"exact"`
	Partial  *partialSpec `yaml:"partial"`
	Category string       `yaml:"category"`
	Pattern  string       `yaml:"pattern"`
	Attr     *attrSpec    `yaml:"attr"`
	First    bool         `yaml:"first"`
}

type partialSpec struct {
	Fields []string `yaml:"fields"`
	Min    int      `yaml:"min"`
}

type attrSpec struct {
	Name     string `yaml:"name"`
	Contains string `yaml:"contains"`
}

type fieldSpec struct {
	Name        string `yaml:"name"`
	Selector    string `yaml:"selector"`
	Placeholder string `yaml:"placeholder"`
	Kind        string `yaml:"kind"`
	Value       string `yaml:"value"`
	Scroll      bool   `yaml:"scroll"`
}

type signalSpec struct {
	Kind     string `yaml:"kind"`
	Selector string `yaml:"selector"`
	Text     string `yaml:"text"`
	Hold     string `yaml:"hold"`
}

// Loader reads scenario files and expands their vars. Values are looked up in order of
// increasing precedence: Defaults, the file's vars, the DotEnv file, then REGCHECK_VAR_*
// environment variables.
type Loader struct {
	Defaults  map[string]string              // e.g. BASE_URL from the app config
	DotEnv    string                         // optional .env file with var values, missing file is ignored
	LookupEnv func(key string) (string, bool) // nil uses os.LookupEnv
}

// LoadDir loads all *.yml and *.yaml files in dir, sorted by file name.
func (l *Loader) LoadDir(dir string) ([]runner.Scenario, error) {
	var paths []string
	for _, pattern := range []string{"*.yml", "*.yaml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", pattern, err)
		}
		paths = append(paths, matches...)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenario files in %s", dir)
	}
	sort.Strings(paths)

	res := make([]runner.Scenario, 0, len(paths))
	seen := map[string]string{}
	for _, p := range paths {
		sc, err := l.LoadFile(p)
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[sc.Name]; ok {
			return nil, fmt.Errorf("scenario %q defined in both %s and %s", sc.Name, prev, p)
		}
		seen[sc.Name] = p
		res = append(res, sc)
	}
	return res, nil
}

// LoadFile loads a single scenario. The scenario name defaults to the file name without
// extension.
func (l *Loader) LoadFile(path string) (runner.Scenario, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path from user config
	if err != nil {
		return runner.Scenario{}, fmt.Errorf("read scenario: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	sc, err := l.Parse(data, name)
	if err != nil {
		return runner.Scenario{}, fmt.Errorf("scenario %s: %w", path, err)
	}
	return sc, nil
}

// Parse converts YAML scenario data. defaultName is used when the data has no name.
func (l *Loader) Parse(data []byte, defaultName string) (runner.Scenario, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return runner.Scenario{}, fmt.Errorf("parse yaml: %w", err)
	}
	if f.Name == "" {
		f.Name = defaultName
	}

	vars, err := l.vars(f.Vars)
	if err != nil {
		return runner.Scenario{}, err
	}
	x := &expander{vars: vars, lookup: l.LookupEnv}
	if x.lookup == nil {
		x.lookup = os.LookupEnv
	}
	sc, err := convert(f, x)
	if err != nil {
		return runner.Scenario{}, err
	}
	if len(x.missing) > 0 {
		return runner.Scenario{}, fmt.Errorf("undefined vars: %s", strings.Join(x.missingNames(), ", "))
	}
	return sc, nil
}

func (l *Loader) vars(fileVars map[string]string) (map[string]string, error) {
	res := map[string]string{}
	for k, v := range l.Defaults {
		res[k] = v
	}
	for k, v := range fileVars {
		res[k] = v
	}

	if l.DotEnv != "" {
		dot, err := godotenv.Read(l.DotEnv)
		switch {
		case err == nil:
			for k, v := range dot {
				res[k] = v
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read %s: %w", l.DotEnv, err)
		}
	}

	return res, nil
}

// expander substitutes ${NAME} references and collects undefined names.
// REGCHECK_VAR_NAME in the environment wins over any other source.
type expander struct {
	vars    map[string]string
	lookup  func(key string) (string, bool)
	missing map[string]bool
}

func (x *expander) expand(s string) string {
	return varRe.ReplaceAllStringFunc(s, func(m string) string {
		name := varRe.FindStringSubmatch(m)[1]
		if v, ok := x.lookup(EnvPrefix + name); ok {
			return v
		}
		if v, ok := x.vars[name]; ok {
			return v
		}
		if x.missing == nil {
			x.missing = map[string]bool{}
		}
		x.missing[name] = true
		return m
	})
}

func (x *expander) expandAll(ss []string) []string {
	res := make([]string, len(ss))
	for i, s := range ss {
		res[i] = x.expand(s)
	}
	return res
}

func (x *expander) missingNames() []string {
	res := make([]string, 0, len(x.missing))
	for k := range x.missing {
		res = append(res, k)
	}
	sort.Strings(res)
	return res
}

func convert(f file, x *expander) (runner.Scenario, error) {
	sc := runner.Scenario{Name: f.Name, URL: x.expand(f.URL)}
	if sc.URL == "" {
		return sc, errors.New("url is required")
	}

	for i, s := range f.Steps {
		step, err := convertStep(s, x)
		if err != nil {
			return sc, fmt.Errorf("step %d: %w", i+1, err)
		}
		sc.Steps = append(sc.Steps, step)
	}

	for i, fs := range f.Fields {
		field, err := convertField(fs, x)
		if err != nil {
			return sc, fmt.Errorf("field %d: %w", i+1, err)
		}
		sc.Fields = append(sc.Fields, field)
	}

	if f.Submit != nil {
		if f.Submit.Name == "" {
			f.Submit.Name = "submit"
		}
		step, err := convertStep(*f.Submit, x)
		if err != nil {
			return sc, fmt.Errorf("submit: %w", err)
		}
		sc.Submit = &step
	}

	for i, s := range f.Outcome {
		sig, err := convertSignal(s, x)
		if err != nil {
			return sc, fmt.Errorf("outcome %d: %w", i+1, err)
		}
		sc.Signals = append(sc.Signals, sig)
	}
	return sc, nil
}

func convertStep(s stepSpec, x *expander) (runner.Step, error) {
	if s.Scope == "" {
		return runner.Step{}, errors.New("scope is required")
	}
	if len(s.Criteria) == 0 {
		return runner.Step{}, errors.New("at least one criterion is required")
	}
	name := s.Name
	if name == "" {
		name = s.Scope
	}
	t := resolve.Target{Name: name, Scope: x.expand(s.Scope)}
	if s.Timeout != "" {
		d, err := time.ParseDuration(s.Timeout)
		if err != nil {
			return runner.Step{}, fmt.Errorf("timeout: %w", err)
		}
		t.Timeout = d
	}
	for i, c := range s.Criteria {
		cr, err := convertCriterion(c, x)
		if err != nil {
			return runner.Step{}, fmt.Errorf("criterion %d: %w", i+1, err)
		}
		t.Criteria = append(t.Criteria, cr)
	}
	return runner.Step{Target: t, Scroll: s.Scroll, Force: s.Force}, nil
}

func convertCriterion(c criterionSpec, x *expander) (resolve.Criterion, error) {
	var res []resolve.Criterion
	if len(c.Exact) > 0 {
		res = append(res, resolve.ExactMultiField{Fields: x.expandAll(c.Exact)})
	}
	if c.Partial != nil {
		if len(c.Partial.Fields) == 0 {
			return nil, errors.New("partial: fields are required")
		}
		if c.Partial.Min > len(c.Partial.Fields) {
			return nil, fmt.Errorf("partial: min %d exceeds %d fields", c.Partial.Min, len(c.Partial.Fields))
		}
		res = append(res, resolve.PartialField{Fields: x.expandAll(c.Partial.Fields), Min: c.Partial.Min})
	}
	if c.Category != "" {
		res = append(res, resolve.CategoryOnly{Category: x.expand(c.Category)})
	}
	if c.Pattern != "" {
		re, err := regexp.Compile(x.expand(c.Pattern))
		if err != nil {
			return nil, fmt.Errorf("pattern: %w", err)
		}
		res = append(res, resolve.TextPattern{Pattern: re})
	}
	if c.Attr != nil {
		if c.Attr.Name == "" {
			return nil, errors.New("attr: name is required")
		}
		res = append(res, resolve.AttrContains{Attr: c.Attr.Name, Value: x.expand(c.Attr.Contains)})
	}
	if c.First {
		res = append(res, resolve.FirstAvailable{})
	}

	switch len(res) {
	case 0:
		return nil, errors.New("empty criterion")
	case 1:
		return res[0], nil
	default:
		return nil, fmt.Errorf("criterion sets %d kinds, expected one", len(res))
	}
}

func convertField(fs fieldSpec, x *expander) (form.FieldSpec, error) {
	if fs.Name == "" {
		return form.FieldSpec{}, errors.New("name is required")
	}
	if fs.Selector == "" && fs.Placeholder == "" {
		return form.FieldSpec{}, fmt.Errorf("%s: selector or placeholder is required", fs.Name)
	}
	kind := form.Kind(fs.Kind)
	switch kind {
	case "", form.KindText, form.KindSelectLabel, form.KindSelectValue:
	default:
		return form.FieldSpec{}, fmt.Errorf("%s: unknown kind %q", fs.Name, fs.Kind)
	}
	return form.FieldSpec{
		Name:        fs.Name,
		Selector:    x.expand(fs.Selector),
		Placeholder: x.expand(fs.Placeholder),
		Kind:        kind,
		Value:       x.expand(fs.Value),
		Scroll:      fs.Scroll,
	}, nil
}

func convertSignal(s signalSpec, x *expander) (outcome.Signal, error) {
	kind, ok := status.ParseOutcome(s.Kind)
	if !ok {
		return outcome.Signal{}, fmt.Errorf("unknown kind %q", s.Kind)
	}
	if s.Selector == "" && s.Text == "" {
		return outcome.Signal{}, fmt.Errorf("%s: selector or text is required", s.Kind)
	}
	sig := outcome.Signal{Kind: kind, Selector: x.expand(s.Selector), Text: x.expand(s.Text)}
	if s.Hold != "" {
		d, err := time.ParseDuration(s.Hold)
		if err != nil {
			return outcome.Signal{}, fmt.Errorf("hold: %w", err)
		}
		sig.Hold = d
	}
	return sig, nil
}

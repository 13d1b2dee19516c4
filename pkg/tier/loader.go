package tier

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadPolicies overlays a YAML file on the default table. Only the fields
// present in the file change; an empty path returns the defaults.
//
//	professional:
//	  max_queries_per_window: 150
//	  allow_forecast: true
func LoadPolicies(path string) (Table, error) {
	table := DefaultPolicies()
	if path == "" {
		return table, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tier policy file: %w", err)
	}

	var overrides map[string]yaml.Node
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("parse tier policy file: %w", err)
	}

	for name, node := range overrides {
		t := Tier(name)
		if !t.Valid() {
			return nil, fmt.Errorf("unknown tier %q in %s", name, path)
		}
		p := table[t]
		if err := node.Decode(&p); err != nil {
			return nil, fmt.Errorf("decode tier %s: %w", name, err)
		}
		table[t] = p
	}

	if err := ValidatePolicies(table); err != nil {
		return nil, err
	}
	return table, nil
}

// ValidatePolicies checks that every tier is defined and that capability
// never shrinks when moving up a tier. The enterprise spam guard is allowed
// as the one override of that ordering.
func ValidatePolicies(table Table) error {
	var errs []error
	for _, t := range Ordered {
		p, ok := table[t]
		if !ok {
			errs = append(errs, fmt.Errorf("tier %s is not defined", t))
			continue
		}
		if p.MaxQueriesPerWindow != Unlimited && p.WindowLengthSeconds <= 0 {
			errs = append(errs, fmt.Errorf("tier %s: capped queries need a positive window length", t))
		}
		if p.MaxConcurrentDataSources < 1 {
			errs = append(errs, fmt.Errorf("tier %s: must allow at least one data source", t))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	for i := 1; i < len(Ordered); i++ {
		lower, higher := Ordered[i-1], Ordered[i]
		lp, hp := table[lower], table[higher]

		if !atLeast(hp.MaxQueriesPerHour(), lp.MaxQueriesPerHour()) {
			errs = append(errs, fmt.Errorf("%s allows fewer queries per hour than %s", higher, lower))
		}
		if !atLeast(hp.MaxResponseWords, lp.MaxResponseWords) {
			errs = append(errs, fmt.Errorf("%s allows shorter responses than %s", higher, lower))
		}
		if hp.MaxConcurrentDataSources < lp.MaxConcurrentDataSources {
			errs = append(errs, fmt.Errorf("%s allows fewer data sources than %s", higher, lower))
		}
		for _, a := range []Action{ActionChart, ActionForecast, ActionProactiveSuggestions, ActionExtendedThinking} {
			if lp.Allows(a) && !hp.Allows(a) {
				errs = append(errs, fmt.Errorf("%s lacks %s which %s has", higher, a, lower))
			}
		}
	}
	return errors.Join(errs...)
}

// MaxQueriesPerHour normalizes the fixed window cap to an hourly rate
func (p Policy) MaxQueriesPerHour() int {
	if !p.fixedWindow() {
		return Unlimited
	}
	return p.MaxQueriesPerWindow * 3600 / p.WindowLengthSeconds
}

// atLeast compares caps where Unlimited is larger than any number
func atLeast(a, b int) bool {
	if a == Unlimited {
		return true
	}
	if b == Unlimited {
		return false
	}
	return a >= b
}

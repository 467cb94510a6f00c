package recipe

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

var ErrInvalidOption = errors.New("invalid option")

// OptionDef declares a recipe option, its allowed values and default
type OptionDef struct {
	Values   []any  `toml:"values"`
	Default  any    `toml:"default"`
	RemoveIf string `toml:"remove_if"`
	Help     string `toml:"help"`
}

// formatValue renders an option value the way users type it
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return `""`
	case string:
		if val == "" {
			return `""`
		}
		return val
	default:
		return fmt.Sprint(val)
	}
}

// match finds the allowed value spelled s; booleans are case-insensitive
// and the empty string also matches "none".
func (o OptionDef) match(s string) (any, bool) {
	for _, v := range o.Values {
		switch val := v.(type) {
		case bool:
			if strings.EqualFold(s, fmt.Sprint(val)) {
				return val, true
			}
		case string:
			if val == s || (val == "" && strings.EqualFold(s, "none")) {
				return val, true
			}
		default:
			if fmt.Sprint(val) == s {
				return val, true
			}
		}
	}
	return nil, false
}

func (o OptionDef) allowed() string {
	vals := make([]string, len(o.Values))
	for i, v := range o.Values {
		vals[i] = formatValue(v)
	}
	return strings.Join(vals, ", ")
}

// resolveOptions applies overrides on top of defaults. Unknown option names and
// values outside the declared set are errors.
func resolveOptions(defs map[string]OptionDef, overrides map[string]string) (map[string]any, error) {
	options := make(map[string]any, len(defs))
	for name, def := range defs {
		options[name] = def.Default
	}

	for _, name := range slices.Sorted(maps.Keys(overrides)) {
		def, ok := defs[name]
		if !ok {
			return nil, fmt.Errorf("%w: unknown option %q (known: %s)",
				ErrInvalidOption, name, strings.Join(slices.Sorted(maps.Keys(defs)), ", "))
		}
		val, ok := def.match(overrides[name])
		if !ok {
			return nil, fmt.Errorf("%w: %s=%s, must be one of: %s",
				ErrInvalidOption, name, overrides[name], def.allowed())
		}
		options[name] = val
	}
	return options, nil
}

// pruneOptions removes options whose remove_if holds, e.g. fPIC for shared builds
func pruneOptions(defs map[string]OptionDef, env Env) (map[string]any, error) {
	options := maps.Clone(env.Options)
	for _, name := range slices.Sorted(maps.Keys(defs)) {
		cond := defs[name].RemoveIf
		if cond == "" {
			continue
		}
		remove, err := evalBool(cond, env)
		if err != nil {
			return nil, fmt.Errorf("option %q: bad remove_if: %w", name, err)
		}
		if remove {
			delete(options, name)
		}
	}
	return options, nil
}

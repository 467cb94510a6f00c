package recipe

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Requirement is a reference to another package, `name/version` or `name/[range]`
type Requirement struct {
	Name  string
	Range string
}

func ParseRequirement(ref string) (Requirement, error) {
	name, rng, ok := strings.Cut(strings.TrimSpace(ref), "/")
	if !ok || name == "" || rng == "" {
		return Requirement{}, fmt.Errorf("malformed requirement %q, expected name/version", ref)
	}
	return Requirement{Name: name, Range: rng}, nil
}

func (r Requirement) String() string {
	return r.Name + "/" + r.Range
}

// Constraint converts the requirement's version or range to semver constraints.
// Space separated terms inside brackets are ANDed: [>=1.1 <4] means >=1.1, <4.
func (r Requirement) Constraint() (*semver.Constraints, error) {
	rng := r.Range
	if strings.HasPrefix(rng, "[") && strings.HasSuffix(rng, "]") {
		rng = rng[1 : len(rng)-1]
		alternatives := strings.Split(rng, "||")
		for i, alt := range alternatives {
			alternatives[i] = strings.Join(strings.Fields(alt), ", ")
		}
		rng = strings.Join(alternatives, " || ")
	} else {
		rng = "=" + rng
	}

	c, err := semver.NewConstraint(rng)
	if err != nil {
		return nil, fmt.Errorf("bad version range in %s: %w", r, err)
	}
	return c, nil
}

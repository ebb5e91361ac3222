package composition

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/gogpu/xrcompose"
)

// Quirks are runtime-specific workarounds decided once per session.
type Quirks struct {
	// ForceBounceCopy bounces every submittable swapchain image through a
	// shared copy, even images that report themselves shareable.
	ForceBounceCopy bool

	// Matched lists the rules that applied, for logging.
	Matched []string
}

// builtinQuirks lists runtimes whose shared swapchain images are not
// reliably visible to a second device.
var builtinQuirks = []xrcompose.QuirkRule{
	{Runtime: "Varjo", ForceBounceCopy: true},
}

// probeQuirks matches runtimeName against the built-in rules and rules,
// case-insensitively. policy is one of the xrcompose.BounceCopy values.
func probeQuirks(runtimeName string, rules []xrcompose.QuirkRule, policy string) Quirks {
	var q Quirks
	switch policy {
	case xrcompose.BounceCopyAlways:
		q.ForceBounceCopy = true
		q.Matched = append(q.Matched, "bounce_copy=always")
		return q
	case xrcompose.BounceCopyNever:
		return q
	}

	fold := cases.Fold()
	name := fold.String(runtimeName)
	all := append(append([]xrcompose.QuirkRule(nil), builtinQuirks...), rules...)
	for _, r := range all {
		if r.Runtime == "" || !strings.Contains(name, fold.String(r.Runtime)) {
			continue
		}
		if r.ForceBounceCopy {
			q.ForceBounceCopy = true
		}
		q.Matched = append(q.Matched, r.Runtime)
	}
	return q
}

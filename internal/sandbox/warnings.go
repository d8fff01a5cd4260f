package sandbox

import (
	"fmt"
	"regexp"
)

// riskyPattern is a construct that is allowed but worth flagging to the
// operator reviewing execution history. Warnings never fail a run.
type riskyPattern struct {
	re   *regexp.Regexp
	note string
}

var riskyPatterns = []riskyPattern{
	{regexp.MustCompile(`\bgo\s+func\b`), "spawns goroutines; abandoned work keeps running until the deadline"},
	{regexp.MustCompile(`\bfor\s*\{`), "contains an unconditional loop; relies on the deadline to terminate"},
	{regexp.MustCompile(`\bpanic\(`), "calls panic(); a panic fails the invocation"},
	{regexp.MustCompile(`\btime\.Sleep\(`), "sleeps; long sleeps burn the invocation deadline"},
	{regexp.MustCompile(`regexp\.MustCompile\(`), "compiles regular expressions per call; MustCompile panics on a bad pattern"},
}

// securityScan returns advisory warnings for risky-but-allowed
// constructs in handler source.
func securityScan(source string) []string {
	var warnings []string
	for _, p := range riskyPatterns {
		if p.re.MatchString(source) {
			warnings = append(warnings, fmt.Sprintf("handler %s", p.note))
		}
	}
	return warnings
}

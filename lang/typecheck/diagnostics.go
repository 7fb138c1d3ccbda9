package typecheck

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
)

// Level is the severity of a Diagnostic. hcl.Diagnostic only
// distinguishes Error/Warning, so Note is layered on top by storing it
// in the diagnostic's Detail prefix and tracked alongside.
type Level int

const (
	LevelError Level = iota
	LevelWarning
	LevelNote
)

// Diagnostic is a single user-facing compile diagnostic: a level, a
// stable code, a message, and span labels pointing at source ranges
// (spec §7). Spans are hcl.Range values and HCL converts a Diagnostic
// to an hcl.Diagnostic, so span reporting reuses the same position
// machinery the teacher's own HCL-based decoder uses.
type Diagnostic struct {
	Level   Level
	Code    string
	Message string
	Labels  []hcl.Range
}

// Error implements the error interface so a Diagnostic can be returned
// wherever plain errors are expected (e.g. wrapped by fmt.Errorf).
func (d *Diagnostic) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", d.Code, d.Message)
	if len(d.Labels) > 0 {
		fmt.Fprintf(&b, " (at %s)", d.Labels[0])
	}
	return b.String()
}

// HCL renders d as an hcl.Diagnostic for hosts that want to print
// diagnostics using hcl's own formatter.
func (d *Diagnostic) HCL() *hcl.Diagnostic {
	out := &hcl.Diagnostic{
		Severity: hcl.DiagError,
		Summary:  d.Code,
		Detail:   d.Message,
	}
	if d.Level == LevelWarning {
		out.Severity = hcl.DiagWarning
	}
	if d.Level == LevelNote {
		out.Detail = "note: " + d.Message
	}
	if len(d.Labels) > 0 {
		r := d.Labels[0]
		out.Subject = &r
	}
	return out
}

// Diagnostics is an accumulated batch of compile diagnostics (spec
// §4.B/§7: returned together when no further elaboration is possible).
type Diagnostics []*Diagnostic

func (ds Diagnostics) Error() string {
	msgs := make([]string, len(ds))
	for i, d := range ds {
		msgs[i] = d.Error()
	}
	return strings.Join(msgs, "; ")
}

// HasErrors reports whether any diagnostic in the batch is an Error.
func (ds Diagnostics) HasErrors() bool {
	for _, d := range ds {
		if d.Level == LevelError {
			return true
		}
	}
	return false
}

// Diagnostic codes used by the elaboration passes.
const (
	CodeUnknownType          = "unknown-type"
	CodeDuplicateName        = "duplicate-name"
	CodeInvalidAnnotationTgt = "invalid-annotation-target"
	CodeUnknownAnnotation    = "unknown-annotation"
	CodeBadAnnotationParams  = "bad-annotation-params"
	CodeTypeMismatch         = "type-mismatch"
	CodeForbiddenNesting     = "forbidden-nested-wrapper"
	CodeInvalidAccessShape   = "invalid-access-expression"
	CodeContextFieldMismatch = "context-field-type-mismatch"
)

func errf(code string, rng hcl.Range, format string, args ...any) *Diagnostic {
	return &Diagnostic{Level: LevelError, Code: code, Message: fmt.Sprintf(format, args...), Labels: []hcl.Range{rng}}
}

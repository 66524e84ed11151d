package goIdem

import (
	"errors"
	"strings"
	"time"
)

// LintSeverity ranks configuration warnings.
type LintSeverity int

const (
	// LintInfo marks settings worth knowing about.
	LintInfo LintSeverity = iota
	// LintWarn marks settings that weaken protection.
	LintWarn
	// LintHigh marks settings that can break at-most-once execution.
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "INFO"
	case LintWarn:
		return "WARN"
	case LintHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// LintWarning is one advisory finding from Config.Lint.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintWarnings is the result of Config.Lint.
type LintWarnings []LintWarning

// Codes returns the warning codes in order.
func (ws LintWarnings) Codes() []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Code)
	}
	return out
}

// BySeverity returns warnings at or above min.
func (ws LintWarnings) BySeverity(min LintSeverity) LintWarnings {
	var out LintWarnings
	for _, w := range ws {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError folds warnings at or above min into one error, or nil.
func (ws LintWarnings) AsError(min LintSeverity) error {
	matched := ws.BySeverity(min)
	if len(matched) == 0 {
		return nil
	}
	parts := make([]string, 0, len(matched))
	for _, w := range matched {
		parts = append(parts, w.Severity.String()+" "+w.Code+": "+w.Message)
	}
	return errors.New("config lint: " + strings.Join(parts, "; "))
}

// Lint reports settings that are valid but risky. Validate must pass first
// for the findings to be meaningful.
func (c Config) Lint() LintWarnings {
	var ws LintWarnings

	if !c.RequireKey {
		ws = append(ws, LintWarning{
			Code:     "key_optional",
			Severity: LintWarn,
			Message:  "protected requests without an idempotency key run uncoordinated",
		})
	}
	if c.TTL < time.Minute {
		ws = append(ws, LintWarning{
			Code:     "ttl_short",
			Severity: LintHigh,
			Message:  "records may expire while a slow handler is still running, allowing a duplicate execution",
		})
	}
	if c.TTL > 7*24*time.Hour {
		ws = append(ws, LintWarning{
			Code:     "ttl_long",
			Severity: LintInfo,
			Message:  "a crashed in-flight request blocks its key for the whole TTL",
		})
	}
	if c.RetryAfter >= c.TTL {
		ws = append(ws, LintWarning{
			Code:     "retry_after_exceeds_ttl",
			Severity: LintWarn,
			Message:  "clients are told to wait longer than records live",
		})
	}
	if c.FinalizeTimeout >= c.TTL {
		ws = append(ws, LintWarning{
			Code:     "finalize_timeout_exceeds_ttl",
			Severity: LintWarn,
			Message:  "finalize may run after the reservation expired",
		})
	}
	if c.Store.FinalizePolicy == FinalizeRefreshTTL {
		ws = append(ws, LintWarning{
			Code:     "finalize_refresh_ttl",
			Severity: LintInfo,
			Message:  "completed records live TTL past completion, not past reservation",
		})
	}
	if !c.Audit.Enabled {
		ws = append(ws, LintWarning{
			Code:     "audit_disabled",
			Severity: LintInfo,
			Message:  "replays and conflicts are not audited",
		})
	}

	return ws
}

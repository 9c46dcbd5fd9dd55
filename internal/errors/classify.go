package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"regexp"
	"strings"
	"syscall"
)

// Kind is the handling class of a failure. It decides whether a call is
// retried, degraded, surfaced to the user, or recorded and dropped.
type Kind string

const (
	// KindTransient failures are retried with backoff at the call site.
	KindTransient Kind = "TRANSIENT"
	// KindLLMRecoverable failures may be retried with adjusted input, or
	// degraded to the raw tool output.
	KindLLMRecoverable Kind = "LLM_RECOVERABLE"
	// KindUserFixable failures ask the user for missing information.
	KindUserFixable Kind = "USER_FIXABLE"
	// KindPermanent failures are recorded and never retried.
	KindPermanent Kind = "PERMANENT"
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// Retryable reports whether failures of this kind are retried automatically.
func (k Kind) Retryable() bool {
	return k == KindTransient
}

// Valid reports whether k is one of the four known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindTransient, KindLLMRecoverable, KindUserFixable, KindPermanent:
		return true
	}
	return false
}

// Message vocabularies, checked against the lower-cased error text.
// Mostly substring matches, so "ReadTimeout" and "parser" count. Word
// boundaries remain where a substring would misfire: "format" inside
// "information", "parse" inside "sparse", "429" inside longer numbers.
var (
	transientPattern = regexp.MustCompile(
		`rate[ _-]?limit|\b429\b|too many requests|quota|connection|timeout|timed out|deadline exceeded|network|\bdns\b`)
	recoverablePattern = regexp.MustCompile(
		`\bpars(e|ed|er|ing)|\bformat\b|invalid json|malformed`)
	missingPattern = regexp.MustCompile(
		`\bmissing\b|\brequired\b|not provided|not found`)
	configPattern = regexp.MustCompile(
		`api[ _-]?key|\bconfig(uration)?\b|\bcredentials?\b|\bsecret\b`)
)

// Classify maps any failure to its handling class. Checks run in a fixed
// order and the first match wins:
//
//  1. rate-limit, quota, connection, timeout, or network vocabulary: TRANSIENT
//  2. parse, format, or malformed-JSON vocabulary: LLM_RECOVERABLE
//  3. missing/required vocabulary that also mentions configuration or API keys: PERMANENT
//  4. other missing/required vocabulary: USER_FIXABLE
//  5. the structural category of the error chain
//  6. PERMANENT
//
// A recovered panic is PERMANENT before any of these checks. A nil error
// classifies as PERMANENT; callers should not classify nil.
func Classify(err error) Kind {
	if err == nil {
		return KindPermanent
	}
	var specErr *SpecialistError
	if As(err, &specErr) && specErr.Panicked {
		return KindPermanent
	}

	msg := strings.ToLower(err.Error())
	switch {
	case transientPattern.MatchString(msg):
		return KindTransient
	case recoverablePattern.MatchString(msg):
		return KindLLMRecoverable
	case missingPattern.MatchString(msg) && configPattern.MatchString(msg):
		return KindPermanent
	case missingPattern.MatchString(msg):
		return KindUserFixable
	}

	if kind, ok := classifyStructural(err); ok {
		return kind
	}
	return KindPermanent
}

// classifyStructural inspects the error chain for known types.
func classifyStructural(err error) (Kind, bool) {
	var (
		cfgErr      *ConfigError
		timeoutErr  *TimeoutError
		toolErr     *ToolError
		syntaxErr   *json.SyntaxError
		typeErr     *json.UnmarshalTypeError
		validateErr *ValidationError
		notFoundErr *NotFoundError
		netErr      net.Error
	)

	switch {
	case As(err, &cfgErr), Is(err, ErrMissingAPIKey):
		return KindPermanent, true
	case Is(err, context.Canceled):
		return KindPermanent, true
	case Is(err, context.DeadlineExceeded), As(err, &timeoutErr), Is(err, ErrTimeout):
		return KindTransient, true
	case As(err, &toolErr):
		return classifyStatus(toolErr.StatusCode), true
	case Is(err, syscall.ECONNREFUSED), Is(err, syscall.ECONNRESET), As(err, &netErr):
		return KindTransient, true
	case As(err, &syntaxErr), As(err, &typeErr):
		return KindLLMRecoverable, true
	case As(err, &validateErr), As(err, &notFoundErr):
		return KindUserFixable, true
	}
	return "", false
}

// classifyStatus maps an upstream HTTP status to a kind.
func classifyStatus(code int) Kind {
	switch {
	case code == 429 || code >= 500:
		return KindTransient
	case code == 401 || code == 403:
		return KindPermanent
	case code == 400 || code == 404 || code == 422:
		return KindUserFixable
	default:
		return KindPermanent
	}
}

// UnderlyingType returns the Go type name of the innermost error in a
// single-cause chain, e.g. "*json.SyntaxError" or "*errors.errorString".
func UnderlyingType(err error) string {
	if err == nil {
		return ""
	}
	for {
		next := Unwrap(err)
		if next == nil {
			return fmt.Sprintf("%T", err)
		}
		err = next
	}
}

// IsRateLimit reports whether err signals that an upstream rejected a call
// for rate reasons, either explicitly (429 / ErrRateLimited) or by message.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	if Is(err, ErrRateLimited) {
		return true
	}
	var toolErr *ToolError
	if As(err, &toolErr) && toolErr.StatusCode == 429 {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "429") ||
		strings.Contains(msg, "too many requests")
}

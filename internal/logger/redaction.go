package logger

import (
	"io"
	"regexp"
)

// Redactor scrubs credential material from log output before it reaches
// any sink. Tool output in this runtime routinely echoes the secrets an
// agent is using (sshpass command lines, bearer tokens, cloud keys), so
// the writer path is scrubbed once instead of trusting every call site.
type Redactor struct {
	rules []redactionRule
}

// redactionRule ties a pattern to a label kept in the replacement, so a
// scrubbed log still says what kind of value was removed.
type redactionRule struct {
	label string
	re    *regexp.Regexp
}

// NewRedactor returns a redactor covering the credential shapes that show
// up in this runtime's tool output and model transcripts.
func NewRedactor() *Redactor {
	return &Redactor{
		rules: []redactionRule{
			{"api_key", regexp.MustCompile(`sk-(?:ant-)?[a-zA-Z0-9_-]{20,}`)},
			{"bearer", regexp.MustCompile(`Bearer\s+[a-zA-Z0-9._-]+`)},
			{"sshpass", regexp.MustCompile(`sshpass -p\s*[^\s"]+`)},
			{"password", regexp.MustCompile(`(?i)(?:password|passwd|pwd)["\s:=]+[^\s"]+`)},
			{"token", regexp.MustCompile(`token["\s:=]+[a-zA-Z0-9._-]{20,}`)},
			{"aws_key", regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
			{"secret", regexp.MustCompile(`secret["\s:=]+[^\s"]+`)},
			{"private_key", regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----`)},
		},
	}
}

// AddRule registers an extra labelled pattern, for target-specific
// credential formats.
func (r *Redactor) AddRule(label, pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.rules = append(r.rules, redactionRule{label: label, re: re})
	return nil
}

// Redact replaces every match with a labelled placeholder.
func (r *Redactor) Redact(s string) string {
	for _, rule := range r.rules {
		s = rule.re.ReplaceAllString(s, "[REDACTED:"+rule.label+"]")
	}
	return s
}

// Wrap returns a writer that redacts everything flowing into w.
func (r *Redactor) Wrap(w io.Writer) io.Writer {
	return &redactingWriter{dst: w, redactor: r}
}

type redactingWriter struct {
	dst      io.Writer
	redactor *Redactor
}

// Write reports the length of p even though redaction changes the byte
// count, so wrapping writers never surfaces spurious short writes.
func (w *redactingWriter) Write(p []byte) (int, error) {
	if _, err := w.dst.Write([]byte(w.redactor.Redact(string(p)))); err != nil {
		return 0, err
	}
	return len(p), nil
}

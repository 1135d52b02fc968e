// Package logging is a thin wrapper over the standard log package,
// prefixing every line with a component tag the way the teacher's
// internal/service/webhook_delivery.go does by hand (e.g.
// "[WebhookDelivery] delivery failed: %v"). It does not introduce a
// structured logging dependency: the corpus's teacher repo logs with
// log.Printf throughout, and this module follows that idiom rather than
// reaching for a library none of the example repos use for this role.
package logging

import "log"

// Logger prefixes every message with a fixed component tag.
type Logger struct {
	tag string
}

// New returns a Logger that prefixes every message with "[tag]".
func New(tag string) Logger {
	return Logger{tag: "[" + tag + "] "}
}

func (l Logger) Printf(format string, args ...any) {
	log.Printf(l.tag+format, args...)
}

func (l Logger) Println(args ...any) {
	log.Print(append([]any{l.tag}, args...)...)
}

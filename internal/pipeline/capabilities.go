package pipeline

import "context"

type (
	// Fetcher retrieves the raw bytes of a dataset's source file and a
	// fingerprint used for the driver's change-check step. Implementations
	// (HTTP, file, object download) are external collaborators, out of
	// core scope here.
	Fetcher interface {
		Fetch(ctx context.Context, cfg Config) (raw []byte, fingerprint SourceFingerprint, err error)
	}

	// Parser turns raw source bytes into a Frame. Format-specific parsers
	// (Excel, CSV) are external collaborators, selected by the registry
	// below via Config.ParserName.
	Parser interface {
		Parse(ctx context.Context, raw []byte, cfg Config) (Frame, error)
	}

	// Normalizer applies per-dataset normalization to a parsed Frame.
	// Selected by Config.NormalizerName.
	Normalizer interface {
		Normalize(ctx context.Context, frame Frame, cfg Config) (Frame, error)
	}

	// Notifier delivers the post-publish notification payload. The core only owns the payload shape; delivery transport is
	// pluggable.
	Notifier interface {
		Notify(ctx context.Context, payload NotificationPayload) error
	}

	// ParserRegistry resolves a Config.ParserName to a registered Parser.
	// The core treats every registered implementation as opaque: it never branches on the name itself beyond this lookup.
	ParserRegistry map[string]Parser

	// NormalizerRegistry resolves a Config.NormalizerName to a registered
	// Normalizer.
	NormalizerRegistry map[string]Normalizer
)

// Resolve looks up a Parser by name.
func (r ParserRegistry) Resolve(name string) (Parser, bool) {
	p, ok := r[name]

	return p, ok
}

// Resolve looks up a Normalizer by name.
func (r NormalizerRegistry) Resolve(name string) (Normalizer, bool) {
	n, ok := r[name]

	return n, ok
}

// NoopNotifier discards notifications. Useful for datasets with no
// notify_topic configured and for tests.
type NoopNotifier struct{}

// Notify implements Notifier by doing nothing.
func (NoopNotifier) Notify(context.Context, NotificationPayload) error {
	return nil
}

package llmjson

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultAttempts = 3
	baseDelay       = 1 * time.Second
)

// StripCodeFences removes a leading ```json / ``` fence and a trailing
// ``` fence when the provider wraps its JSON output in markdown.
func StripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```json") {
		text = text[len("```json"):]
	} else if strings.HasPrefix(text, "```") {
		text = text[len("```"):]
	}
	if strings.HasSuffix(text, "```") {
		text = text[:len(text)-len("```")]
	}
	return strings.TrimSpace(text)
}

// Decode strips code fences and unmarshals into v.
func Decode(text string, v any) error {
	cleaned := StripCodeFences(text)
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return fmt.Errorf("decoding model response: %w", err)
	}
	return nil
}

// ExponentialBackoff returns the delay before retry number attempt
// (zero-based).
func ExponentialBackoff(attempt int) time.Duration {
	return baseDelay * time.Duration(1<<uint(attempt))
}

// Do wraps a generation call with a bounded retry policy. call produces
// raw model text; accept decides whether the decoded value is usable.
// The decoded value of the first accepted attempt is returned. After
// attempts exhausted the last error is returned so the caller can hand
// back its deterministic fallback.
func Do[T any](ctx context.Context, attempts int, call func(ctx context.Context) (string, error), accept func(T) bool) (T, error) {
	tracer := otel.Tracer("llmjson/Do")
	ctx, span := tracer.Start(ctx, "Do")
	defer span.End()

	span.SetAttributes(attribute.Int("attempts", attempts))

	var zero T
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		text, err := call(ctx)
		if err == nil {
			var value T
			if err = Decode(text, &value); err == nil {
				if accept == nil || accept(value) {
					return value, nil
				}
				err = fmt.Errorf("response missing required fields")
			}
		}

		lastErr = err
		span.RecordError(err)

		if attempt < attempts-1 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(ExponentialBackoff(attempt)):
			}
		}
	}

	return zero, lastErr
}

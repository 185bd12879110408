package numbering

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/httpx"
)

var (
	// ErrDuplicateReference is returned by repositories when a reference is
	// already taken. Generator.Assign retries on it.
	ErrDuplicateReference = fmt.Errorf("numbering: duplicate reference: %w", httpx.ErrDuplicate)
	// ErrUnknownDocumentType indicates a document type without a prefix.
	ErrUnknownDocumentType = fmt.Errorf("numbering: unknown document type: %w", httpx.ErrValidation)
)

// DefaultMaxRetries bounds Assign when no limit is configured.
const DefaultMaxRetries = 5

// Allocator hands out the next sequence value for a (type, year) key. Every
// implementation serializes concurrent callers for the same key.
type Allocator interface {
	Allocate(ctx context.Context, docType DocumentType, year int) (int64, error)
}

// Generator formats allocated sequences into references.
type Generator struct {
	alloc      Allocator
	maxRetries int
	logger     *slog.Logger
	metrics    RetryObserver
}

// RetryObserver is notified when a reference collides and is reallocated.
type RetryObserver interface {
	ObserveReferenceRetry(docType string)
}

// NewGenerator wires an allocator.
func NewGenerator(alloc Allocator, maxRetries int, logger *slog.Logger) *Generator {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{alloc: alloc, maxRetries: maxRetries, logger: logger}
}

// WithMetrics attaches a retry observer.
func (g *Generator) WithMetrics(m RetryObserver) *Generator {
	g.metrics = m
	return g
}

// Next allocates and formats the next reference for the document type.
func (g *Generator) Next(ctx context.Context, docType DocumentType, year int) (string, error) {
	prefix, err := docType.Prefix()
	if err != nil {
		return "", err
	}
	seq, err := g.alloc.Allocate(ctx, docType, year)
	if err != nil {
		return "", fmt.Errorf("numbering: allocate %s %d: %w", docType, year, err)
	}
	return Format(prefix, year, seq), nil
}

// NextNow allocates a reference for the current calendar year.
func (g *Generator) NextNow(ctx context.Context, docType DocumentType) (string, error) {
	return g.Next(ctx, docType, time.Now().Year())
}

// Assign allocates a reference and hands it to fn, which persists the
// document. When fn reports ErrDuplicateReference a fresh number is allocated
// and fn is called again. The number lost to a failed fn is the only source of
// gaps in a sequence.
func (g *Generator) Assign(ctx context.Context, docType DocumentType, year int, fn func(ctx context.Context, reference string) error) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= g.maxRetries; attempt++ {
		ref, err := g.Next(ctx, docType, year)
		if err != nil {
			return "", err
		}
		err = fn(ctx, ref)
		if err == nil {
			return ref, nil
		}
		if !errors.Is(err, ErrDuplicateReference) {
			return "", err
		}
		lastErr = err
		g.logger.Warn("reference collision, reallocating",
			slog.String("doc_type", string(docType)),
			slog.String("reference", ref),
			slog.Int("attempt", attempt))
		if g.metrics != nil {
			g.metrics.ObserveReferenceRetry(string(docType))
		}
	}
	return "", fmt.Errorf("numbering: %d attempts exhausted: %w", g.maxRetries, lastErr)
}

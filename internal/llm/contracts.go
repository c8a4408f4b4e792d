package llm

import (
	"context"

	"github.com/joseph-ayodele/referral-intake/internal/entity"
)

// ExtractRequest carries one document's text into a field strategy.
type ExtractRequest struct {
	Text     string
	FileName string
}

// FieldStrategy turns document text into a FieldSet. A non-nil error means the
// strategy produced nothing usable; the caller decides what to fall back to.
type FieldStrategy interface {
	Name() string
	// Available reports whether the strategy can run at all (e.g. credential configured).
	Available() bool
	ExtractFields(ctx context.Context, req ExtractRequest) (entity.FieldSet, []byte /*rawJSON*/, error)
}

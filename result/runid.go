package result

import (
	"encoding/base64"

	"github.com/google/uuid"
)

// NewRunID mints a short, base64-encoded UUID for Trace.RunID, one per
// Run call, so a single trace's log lines can be grepped together.
func NewRunID() string {
	id := uuid.New()
	return base64.RawURLEncoding.EncodeToString(id[:])
}

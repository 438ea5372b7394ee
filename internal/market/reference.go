package market

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewOrderReference builds the human-readable id printed on invoices
// and shown to both parties, e.g. PO-20260829-1A2B3C4D.
func NewOrderReference(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("PO-%s-%s", now.Format("20060102"), suffix)
}

// Package tips provides the local tip store and its cross-device
// synchronization against the remote mirror.
package tips

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tip is a manually entered cash-earnings record.
// The id is the sole equality and merge key; it is never regenerated and
// stays globally unique for the lifetime of the record.
type Tip struct {
	ID     string          `json:"id"`
	Amount decimal.Decimal `json:"amount"`
	Date   time.Time       `json:"date"`
	Note   string          `json:"note,omitempty"`
	Synced bool            `json:"synced"`
}

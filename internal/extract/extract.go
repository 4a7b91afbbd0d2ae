// Package extract parses payment-notification mail bodies into transfer records.
//
// Two extraction profiles are attempted in order:
//   - label-based: a "From"/"Van" sender label plus an "Amount"/"Bedrag" label,
//     both required;
//   - symbol-based: a currency symbol adjacent to a decimal number, sender left
//     empty.
//
// A body matching neither profile is not an error - the message is skipped.
package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Transfer is a parsed payment notification.
// Derived purely from a single message; never persisted.
type Transfer struct {
	Sender    string
	Amount    decimal.Decimal
	Timestamp time.Time
}

var (
	// Label-based profile. Sender is free text up to end of line; amount is a
	// decimal with an optional two-digit fraction, optionally preceded by a
	// currency symbol.
	senderLabelRe = regexp.MustCompile(`(?im)^[ \t]*(?:From|Van)[ \t]*:[ \t]*(.+)$`)
	amountLabelRe = regexp.MustCompile(`(?i)(?:Amount|Bedrag)[ \t]*:[ \t]*€?[ \t]*(\d+(?:[.,]\d{2})?)`)

	// Symbol-based profile. The symbol may sit on either side of the numeral;
	// comma and dot both act as the fractional separator.
	symbolBeforeRe = regexp.MustCompile(`€[ \t]*(\d+(?:[.,]\d{1,2})?)`)
	symbolAfterRe  = regexp.MustCompile(`(\d+(?:[.,]\d{1,2})?)[ \t]*€`)
)

// Parse extracts a Transfer from a decoded message body.
// The second return value is false when no confident match was found.
// The caller fills in Timestamp from the message's date header.
func Parse(body string) (Transfer, bool) {
	if t, ok := parseLabeled(body); ok {
		return t, true
	}
	return parseSymbol(body)
}

// parseLabeled applies the label-based profile. Both labels are required.
func parseLabeled(body string) (Transfer, bool) {
	senderMatch := senderLabelRe.FindStringSubmatch(body)
	amountMatch := amountLabelRe.FindStringSubmatch(body)
	if senderMatch == nil || amountMatch == nil {
		return Transfer{}, false
	}

	amount, ok := parseAmount(amountMatch[1])
	if !ok {
		return Transfer{}, false
	}

	return Transfer{
		Sender: strings.TrimSpace(senderMatch[1]),
		Amount: amount,
	}, true
}

// parseSymbol applies the symbol-based profile. Sender stays empty.
func parseSymbol(body string) (Transfer, bool) {
	match := symbolBeforeRe.FindStringSubmatch(body)
	if match == nil {
		match = symbolAfterRe.FindStringSubmatch(body)
	}
	if match == nil {
		return Transfer{}, false
	}

	amount, ok := parseAmount(match[1])
	if !ok {
		return Transfer{}, false
	}

	return Transfer{Amount: amount}, true
}

// parseAmount normalizes the comma separator to a dot and converts.
func parseAmount(numeral string) (decimal.Decimal, bool) {
	normalized := strings.ReplaceAll(numeral, ",", ".")
	amount, err := decimal.NewFromString(normalized)
	if err != nil || amount.IsNegative() {
		return decimal.Decimal{}, false
	}
	return amount, true
}

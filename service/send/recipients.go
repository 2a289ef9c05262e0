package send

import (
	"math"
	"strconv"
	"strings"

	solclient "github.com/brojonat/fanout/service/solana"
)

// ParseMode controls how raw recipient text is interpreted.
type ParseMode string

const (
	// ParseUniform treats every token as an address; one amount is applied
	// to all of them.
	ParseUniform ParseMode = "uniform"
	// ParsePaired reads address/amount pairs positionally from the token
	// stream.
	ParsePaired ParseMode = "paired"
)

// Recipient is one (address, amount) pair. The amount is a positive decimal
// string scaled by the asset's decimal precision at build time. Recipients
// are immutable once batched.
type Recipient struct {
	Address string
	Amount  string
}

// ParseResult carries the parsed recipient list plus planning warnings.
// Truncated is the number of entries dropped by the recipient cap; it is a
// warning, not an error.
type ParseResult struct {
	Recipients []Recipient
	Truncated  int
}

// Parse tokenizes raw recipient text and produces the recipient list.
// Tokens are split on newlines, whitespace, and commas; empty tokens are
// dropped. In uniform mode uniformAmount is applied to every address token.
// In paired mode a trailing address with no following amount token defaults
// to amount "0"; callers must filter zero/invalid entries before dispatch
// (see FilterValid). Entries beyond maxRecipients are truncated, not
// rejected, and the truncation count is reported.
func Parse(raw string, mode ParseMode, uniformAmount string, maxRecipients int) ParseResult {
	tokens := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '\n' || r == '\r' || r == '\t' || r == ' ' || r == ','
	})

	var recipients []Recipient
	switch mode {
	case ParsePaired:
		for i := 0; i < len(tokens); i += 2 {
			amount := "0"
			if i+1 < len(tokens) {
				amount = tokens[i+1]
			}
			recipients = append(recipients, Recipient{Address: tokens[i], Amount: amount})
		}
	default:
		for _, tok := range tokens {
			recipients = append(recipients, Recipient{Address: tok, Amount: uniformAmount})
		}
	}

	truncated := 0
	if maxRecipients > 0 && len(recipients) > maxRecipients {
		truncated = len(recipients) - maxRecipients
		recipients = recipients[:maxRecipients]
	}

	return ParseResult{Recipients: recipients, Truncated: truncated}
}

// FilterValid drops recipients with an invalid address or a non-positive
// amount and reports how many were skipped. Order is preserved.
func FilterValid(in []Recipient) (valid []Recipient, skipped int) {
	for _, r := range in {
		if !solclient.IsValidAddress(r.Address) {
			skipped++
			continue
		}
		if !isPositiveAmount(r.Amount) {
			skipped++
			continue
		}
		valid = append(valid, r)
	}
	return valid, skipped
}

// Chunk partitions recipients into batches of at most maxSize, preserving
// order within and across batches. The concatenation of the returned batches
// equals the input exactly.
func Chunk(recipients []Recipient, maxSize int) [][]Recipient {
	if maxSize < 1 {
		maxSize = 1
	}
	var batches [][]Recipient
	for offset := 0; offset < len(recipients); offset += maxSize {
		end := min(offset+maxSize, len(recipients))
		batches = append(batches, recipients[offset:end])
	}
	return batches
}

func isPositiveAmount(s string) bool {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return false
	}
	return f > 0 && !math.IsInf(f, 0) && !math.IsNaN(f)
}

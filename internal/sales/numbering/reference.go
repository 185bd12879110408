// Package numbering allocates year scoped, human readable document references
// such as INV-2025-0001.
package numbering

import (
	"fmt"
	"strconv"
	"strings"
)

// DocumentType identifies a sales document family.
type DocumentType string

const (
	DocumentInvoice    DocumentType = "invoice"
	DocumentEstimate   DocumentType = "estimate"
	DocumentReceipt    DocumentType = "receipt"
	DocumentCreditNote DocumentType = "credit_note"
	DocumentRefund     DocumentType = "refund"
)

var prefixes = map[DocumentType]string{
	DocumentInvoice:    "INV",
	DocumentEstimate:   "EST",
	DocumentReceipt:    "RCT",
	DocumentCreditNote: "CN",
	DocumentRefund:     "RF",
}

// Prefix returns the reference prefix for the document type.
func (t DocumentType) Prefix() (string, error) {
	p, ok := prefixes[t]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownDocumentType, string(t))
	}
	return p, nil
}

const sequenceWidth = 4

// Format renders PREFIX-YEAR-SEQ with the sequence zero padded to four digits.
// Sequences beyond 9999 widen naturally.
func Format(prefix string, year int, seq int64) string {
	return fmt.Sprintf("%s-%04d-%0*d", prefix, year, sequenceWidth, seq)
}

// Reference is a parsed document reference.
type Reference struct {
	Prefix string
	Year   int
	Seq    int64
}

func (r Reference) String() string {
	return Format(r.Prefix, r.Year, r.Seq)
}

// Parse splits a reference into its prefix, year and sequence.
func Parse(reference string) (Reference, error) {
	parts := strings.Split(reference, "-")
	if len(parts) != 3 || parts[0] == "" {
		return Reference{}, fmt.Errorf("numbering: malformed reference %q", reference)
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 4 {
		return Reference{}, fmt.Errorf("numbering: malformed year in %q", reference)
	}
	seq, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || seq <= 0 || len(parts[2]) < sequenceWidth {
		return Reference{}, fmt.Errorf("numbering: malformed sequence in %q", reference)
	}
	return Reference{Prefix: parts[0], Year: year, Seq: seq}, nil
}

// Pattern returns the SQL LIKE pattern matching every reference of the year.
func Pattern(prefix string, year int) string {
	return fmt.Sprintf("%s-%04d-%%", prefix, year)
}

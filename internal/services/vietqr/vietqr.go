package vietqr

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrValidation wraps every bad-input error from BuildPayload.
var ErrValidation = errors.New("invalid vietqr input")

// ReferencePrefix is the product tag carried in every generated reference id.
const ReferencePrefix = "WALTOP"

// ContentPrefix is the fixed transfer-purpose marker. The bank app shows
// "<ContentPrefix> <cleaned reference>" to the payer and the same text comes
// back verbatim inside the notification email.
const ContentPrefix = "NAP TIEN WALTOP"

// Generator builds VietQR payment payloads for a single receiving account.
type Generator struct {
	BankCode      string // bank BIN, e.g. 970436
	AccountNumber string
	AccountName   string
}

// BuildPayload encodes the EMVCo TLV payment string for a bank-transfer QR.
// Field order and the checksum placement are fixed by the format; any change
// breaks scanning in banking apps.
func (g *Generator) BuildPayload(amount decimal.Decimal, referenceID string) (string, error) {
	if g.BankCode == "" {
		return "", fmt.Errorf("%w: bank code is empty", ErrValidation)
	}
	if g.AccountNumber == "" {
		return "", fmt.Errorf("%w: account number is empty", ErrValidation)
	}
	if g.AccountName == "" {
		return "", fmt.Errorf("%w: account name is empty", ErrValidation)
	}
	if !amount.IsPositive() {
		return "", fmt.Errorf("%w: amount must be > 0", ErrValidation)
	}
	if referenceID == "" {
		return "", fmt.Errorf("%w: reference id is empty", ErrValidation)
	}

	content := ContentPrefix + " " + CleanReference(referenceID)

	var sb strings.Builder

	// 00: payload format indicator
	sb.WriteString(field("00", "01"))
	// 01: point of initiation method, 12 = static
	sb.WriteString(field("01", "12"))

	// 38: merchant account information
	var mai strings.Builder
	mai.WriteString(field("00", "A000000727"))
	mai.WriteString(field("01", "0006"+g.BankCode+"0110"+g.AccountNumber))
	mai.WriteString(field("02", "QRIBFTTA"))
	sb.WriteString(field("38", mai.String()))

	// 53: currency, 704 = VND
	sb.WriteString(field("53", "704"))
	// 54: amount, plain decimal, no trailing-zero fraction
	sb.WriteString(field("54", formatAmount(amount)))
	// 58: country code
	sb.WriteString(field("58", "VN"))

	// 62: additional data, 08 = purpose of transaction
	sb.WriteString(field("62", field("08", content)))

	// 63: CRC over everything so far plus the "6304" tag+length itself
	crc := Checksum(sb.String() + "6304")
	sb.WriteString(field("63", crc))

	return sb.String(), nil
}

func field(tag, value string) string {
	return tag + fmt.Sprintf("%02d", len(value)) + value
}

func formatAmount(amount decimal.Decimal) string {
	s := amount.String()
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
	}
	return s
}

// Checksum computes the CRC16 variant used by the payload: poly 0x8408,
// init 0xFFFF, LSB-first per byte, final value xored with 0xFFFF, rendered
// as 4 uppercase hex digits.
func Checksum(data string) string {
	crc := 0xFFFF
	for i := 0; i < len(data); i++ {
		crc ^= int(data[i])
		for j := 0; j < 8; j++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ 0x8408
			} else {
				crc >>= 1
			}
		}
	}
	crc ^= 0xFFFF
	return fmt.Sprintf("%04X", crc&0xFFFF)
}

// CleanReference strips everything that is not an ASCII letter or digit and
// uppercases the rest. The cleaned form is what appears in the transfer
// purpose text and what notification matching searches for.
func CleanReference(ref string) string {
	var sb strings.Builder
	for _, r := range ref {
		switch {
		case r >= '0' && r <= '9', r >= 'A' && r <= 'Z':
			sb.WriteRune(r)
		case r >= 'a' && r <= 'z':
			sb.WriteRune(r - 'a' + 'A')
		}
	}
	return sb.String()
}

// GenerateReferenceID returns a new opaque deposit reference: product prefix,
// millisecond timestamp, then 6 hex chars of a fresh UUID so two references
// in the same millisecond still differ. Uniqueness is ultimately enforced by
// the unique index on reference_id.
func GenerateReferenceID() string {
	suffix := strings.ToUpper(uuid.NewString()[:6])
	return fmt.Sprintf("%s%d%s", ReferencePrefix, time.Now().UnixMilli(), suffix)
}

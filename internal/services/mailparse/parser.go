package mailparse

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"wallet-topup-backend/internal/services/vietqr"
)

// ErrUnparsable is returned when neither account number nor amount can be
// extracted from a notification body. Missing reference or timestamp is not
// fatal; those degrade to an empty reference / the ingestion time.
var ErrUnparsable = errors.New("could not extract account and amount from notification")

// Notification holds the fields extracted from one bank notification email.
type Notification struct {
	Account         string
	Amount          decimal.Decimal
	Content         string // raw captured free-text content line
	Reference       string // token after the marker, else cleaned content
	TransactionDate time.Time
}

// Label alternatives per field, in priority order. The bank sends the same
// information under different labels depending on message layout and locale;
// the first matching alternative wins.
var (
	accountPatterns = []*regexp.Regexp{
		regexp.MustCompile(`Tài khoản\s*:\s*(\d+)`),
		regexp.MustCompile(`Số tài khoản\s*:\s*(\d+)`),
		regexp.MustCompile(`TK\s*:\s*(\d+)`),
		regexp.MustCompile(`Account\s*:\s*(\d+)`),
	}

	amountPatterns = []*regexp.Regexp{
		regexp.MustCompile(`Số tiền\s*:\s*([\d,]+)\s*VND`),
		regexp.MustCompile(`Số tiền\s*:\s*([\d,]+)`),
		regexp.MustCompile(`ST\s*:\s*([\d,]+)`),
		regexp.MustCompile(`Amount\s*:\s*([\d,]+)`),
		regexp.MustCompile(`[+-]([\d,]+)\s*VND`),
	}

	contentPatterns = []*regexp.Regexp{
		regexp.MustCompile(`Nội dung\s*:\s*(.+)`),
		regexp.MustCompile(`Diễn giải\s*:\s*(.+)`),
		regexp.MustCompile(`ND\s*:\s*(.+)`),
		regexp.MustCompile(`Memo\s*:\s*(.+)`),
		regexp.MustCompile(`Content\s*:\s*(.+)`),
	}

	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`Thời gian\s*:\s*(.+)`),
		regexp.MustCompile(`TG\s*:\s*(.+)`),
		regexp.MustCompile(`Time\s*:\s*(.+)`),
		regexp.MustCompile(`Ngày\s*:\s*(.+)`),
	}

	// Reference token embedded in the content line: the full purpose marker
	// or just the product tag, followed by the alphanumeric reference.
	markerPattern = regexp.MustCompile(
		`(?:` + vietqr.ContentPrefix + `|` + vietqr.ReferencePrefix + `)\s*([A-Z0-9]+)`)
)

const dateLayout = "02/01/2006 15:04:05"

// Parse extracts structured fields from an unstructured notification body.
func Parse(body string) (*Notification, error) {
	account := firstMatch(body, accountPatterns)
	amountStr := firstMatch(body, amountPatterns)
	if account == "" || amountStr == "" {
		return nil, ErrUnparsable
	}

	// Thousands separators are display noise, not decimal structure.
	amount, err := decimal.NewFromString(strings.ReplaceAll(amountStr, ",", ""))
	if err != nil {
		return nil, ErrUnparsable
	}

	n := &Notification{
		Account: account,
		Amount:  amount,
	}

	if content := firstMatch(body, contentPatterns); content != "" {
		n.Content = content
		if m := markerPattern.FindStringSubmatch(content); m != nil {
			n.Reference = m[1]
		} else {
			n.Reference = vietqr.CleanReference(content)
		}
	}

	n.TransactionDate = time.Now()
	if dateStr := firstMatch(body, datePatterns); dateStr != "" {
		if ts, err := time.ParseInLocation(dateLayout, dateStr, time.Local); err == nil {
			n.TransactionDate = ts
		}
	}

	return n, nil
}

func firstMatch(body string, patterns []*regexp.Regexp) string {
	for _, p := range patterns {
		if m := p.FindStringSubmatch(body); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

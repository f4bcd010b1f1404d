package vietqr

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func testGenerator() *Generator {
	return &Generator{
		BankCode:      "970436",
		AccountNumber: "9889559357",
		AccountName:   "NGUYEN VAN HOANG",
	}
}

func TestChecksumKnownVector(t *testing.T) {
	// CRC-16/X-25 check value for the standard test string.
	if got := Checksum("123456789"); got != "906E" {
		t.Errorf("Checksum(123456789) = %s, want 906E", got)
	}
}

func TestChecksumDeterministic(t *testing.T) {
	payload := "00020101021238540010A000000727"
	first := Checksum(payload)
	for i := 0; i < 10; i++ {
		if got := Checksum(payload); got != first {
			t.Fatalf("checksum not deterministic: %s vs %s", got, first)
		}
	}
	if len(first) != 4 {
		t.Errorf("checksum length = %d, want 4", len(first))
	}
	if first != strings.ToUpper(first) {
		t.Errorf("checksum not uppercase: %s", first)
	}
}

func TestCleanReference(t *testing.T) {
	cases := map[string]string{
		"abc123":          "ABC123",
		"ABC-123":         "ABC123",
		"  waltop 42  ":   "WALTOP42",
		"nạp tiền #9":     "NPTIN9",
		"ALREADYCLEAN007": "ALREADYCLEAN007",
	}
	for in, want := range cases {
		if got := CleanReference(in); got != want {
			t.Errorf("CleanReference(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCleanReferenceIdempotent(t *testing.T) {
	inputs := []string{"abc-123", "NAP TIEN WALTOP X1", "##", "MixedCase99", ""}
	for _, in := range inputs {
		once := CleanReference(in)
		if twice := CleanReference(once); twice != once {
			t.Errorf("clean not idempotent for %q: %q -> %q", in, once, twice)
		}
	}
}

type tlvField struct {
	tag   string
	value string
}

// decodeTLV walks tag(2)+length(2)+value fields and fails the test on any
// structural inconsistency.
func decodeTLV(t *testing.T, s string) []tlvField {
	t.Helper()
	var fields []tlvField
	i := 0
	for i < len(s) {
		if i+4 > len(s) {
			t.Fatalf("truncated TLV header at offset %d in %q", i, s)
		}
		tag := s[i : i+2]
		length, err := strconv.Atoi(s[i+2 : i+4])
		if err != nil {
			t.Fatalf("bad length %q at offset %d", s[i+2:i+4], i)
		}
		if i+4+length > len(s) {
			t.Fatalf("field %s overruns payload: need %d bytes at offset %d", tag, length, i+4)
		}
		fields = append(fields, tlvField{tag: tag, value: s[i+4 : i+4+length]})
		i += 4 + length
	}
	if i != len(s) {
		t.Fatalf("decoder consumed %d of %d bytes", i, len(s))
	}
	return fields
}

func fieldValue(fields []tlvField, tag string) (string, bool) {
	for _, f := range fields {
		if f.tag == tag {
			return f.value, true
		}
	}
	return "", false
}

func TestBuildPayloadRoundTrip(t *testing.T) {
	g := testGenerator()
	payload, err := g.BuildPayload(decimal.NewFromInt(100000), "ABC123")
	if err != nil {
		t.Fatalf("BuildPayload: %v", err)
	}

	fields := decodeTLV(t, payload)

	wantOrder := []string{"00", "01", "38", "53", "54", "58", "62", "63"}
	if len(fields) != len(wantOrder) {
		t.Fatalf("got %d fields, want %d", len(fields), len(wantOrder))
	}
	for i, tag := range wantOrder {
		if fields[i].tag != tag {
			t.Errorf("field %d has tag %s, want %s", i, fields[i].tag, tag)
		}
	}

	checks := map[string]string{
		"00": "01",
		"01": "12",
		"53": "704",
		"54": "100000",
		"58": "VN",
	}
	for tag, want := range checks {
		got, ok := fieldValue(fields, tag)
		if !ok {
			t.Errorf("missing field %s", tag)
			continue
		}
		if got != want {
			t.Errorf("field %s = %q, want %q", tag, got, want)
		}
	}

	// Merchant account block is itself TLV.
	mai, _ := fieldValue(fields, "38")
	maiFields := decodeTLV(t, mai)
	if guid, _ := fieldValue(maiFields, "00"); guid != "A000000727" {
		t.Errorf("scheme GUID = %q", guid)
	}
	if acq, _ := fieldValue(maiFields, "01"); acq != "0006970436"+"0110"+"9889559357" {
		t.Errorf("acquirer data = %q", acq)
	}
	if svc, _ := fieldValue(maiFields, "02"); svc != "QRIBFTTA" {
		t.Errorf("service code = %q", svc)
	}

	// Purpose text carries the prefix plus the cleaned reference.
	add, _ := fieldValue(fields, "62")
	addFields := decodeTLV(t, add)
	if purpose, _ := fieldValue(addFields, "08"); purpose != "NAP TIEN WALTOP ABC123" {
		t.Errorf("purpose = %q", purpose)
	}

	// The checksum covers everything before it plus its own tag and length.
	crc, _ := fieldValue(fields, "63")
	if want := Checksum(payload[:len(payload)-4]); crc != want {
		t.Errorf("checksum = %s, want %s", crc, want)
	}
}

func TestBuildPayloadCleansReference(t *testing.T) {
	g := testGenerator()
	payload, err := g.BuildPayload(decimal.NewFromInt(50000), "abc-123 x")
	if err != nil {
		t.Fatalf("BuildPayload: %v", err)
	}
	if !strings.Contains(payload, "NAP TIEN WALTOP ABC123X") {
		t.Errorf("payload does not carry cleaned reference: %q", payload)
	}
}

func TestBuildPayloadAmountFormatting(t *testing.T) {
	g := testGenerator()
	amount, _ := decimal.NewFromString("1500.50")
	payload, err := g.BuildPayload(amount, "ABC123")
	if err != nil {
		t.Fatalf("BuildPayload: %v", err)
	}
	fields := decodeTLV(t, payload)
	if got, _ := fieldValue(fields, "54"); got != "1500.5" {
		t.Errorf("amount field = %q, want 1500.5", got)
	}
}

func TestBuildPayloadValidation(t *testing.T) {
	amount := decimal.NewFromInt(1000)
	cases := []struct {
		name string
		gen  Generator
		amt  decimal.Decimal
		ref  string
	}{
		{"empty bank code", Generator{AccountNumber: "1", AccountName: "A"}, amount, "R1"},
		{"empty account number", Generator{BankCode: "970436", AccountName: "A"}, amount, "R1"},
		{"empty account name", Generator{BankCode: "970436", AccountNumber: "1"}, amount, "R1"},
		{"zero amount", *testGenerator(), decimal.Zero, "R1"},
		{"negative amount", *testGenerator(), decimal.NewFromInt(-5), "R1"},
		{"empty reference", *testGenerator(), amount, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.gen.BuildPayload(tc.amt, tc.ref)
			if !errors.Is(err, ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestGenerateReferenceID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		ref := GenerateReferenceID()
		if !strings.HasPrefix(ref, ReferencePrefix) {
			t.Fatalf("reference %q missing prefix", ref)
		}
		if CleanReference(ref) != ref {
			t.Fatalf("generated reference %q is not already clean", ref)
		}
		if seen[ref] {
			t.Fatalf("duplicate reference generated: %q", ref)
		}
		seen[ref] = true
	}
}

package webhook

import (
	"encoding/hex"
	"strings"
	"testing"
)

func TestVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		body   string
		secret string
	}{
		{name: "typical", body: `{"eventId":"e1","event":"invoice.created","data":{"id":123}}`, secret: "s3cret"},
		{name: "empty body", body: "", secret: "s3cret"},
		{name: "unicode", body: `{"nome":"Vinho Tinto Reserva ção"}`, secret: "chave-secreta"},
		{name: "long secret", body: "x", secret: strings.Repeat("k", 200)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sig := Sign([]byte(tt.body), tt.secret)
			if !Verify([]byte(tt.body), sig, tt.secret) {
				t.Fatalf("Verify(Sign(body)) = false")
			}
			if !Verify([]byte(tt.body), strings.TrimPrefix(sig, signaturePrefix), tt.secret) {
				t.Errorf("prefix should be optional")
			}
			if !Verify([]byte(tt.body), strings.ToUpper(sig), tt.secret) {
				t.Errorf("hex and prefix case should not matter")
			}
			if Verify([]byte(tt.body+" "), sig, tt.secret) {
				t.Errorf("signature must cover exact bytes")
			}
			if Verify([]byte(tt.body), sig, tt.secret+"x") {
				t.Errorf("wrong secret accepted")
			}
		})
	}
}

func TestVerifyRejectsEverySingleBitFlip(t *testing.T) {
	t.Parallel()

	body := []byte(`{"eventId":"e1","event":"invoice.updated","data":{"id":"987"}}`)
	secret := "s3cret"

	raw, err := hex.DecodeString(strings.TrimPrefix(Sign(body, secret), signaturePrefix))
	if err != nil {
		t.Fatal(err)
	}

	for i := range len(raw) * 8 {
		mutated := make([]byte, len(raw))
		copy(mutated, raw)
		mutated[i/8] ^= 1 << (i % 8)

		if Verify(body, signaturePrefix+hex.EncodeToString(mutated), secret) {
			t.Fatalf("bit %d flipped but signature still verified", i)
		}
	}
}

func TestVerifyMalformedHeaderNeverPanics(t *testing.T) {
	t.Parallel()

	body := []byte("{}")
	headers := []string{
		"",
		"sha256=",
		"sha256",
		"sha256=zz",
		"sha256=abc",
		"sha1=" + strings.Repeat("a", 40),
		strings.Repeat("a", 63),
		strings.Repeat("a", 66),
		"base64:" + strings.Repeat("A", 44),
		"sha256=" + strings.Repeat("\x00", 64),
		"\xff\xfe",
	}

	for _, h := range headers {
		if Verify(body, h, "s3cret") {
			t.Errorf("Verify(%q) = true, want false", h)
		}
	}
}

func FuzzVerify(f *testing.F) {
	f.Add([]byte("{}"), "sha256=00", "s")
	f.Add([]byte(`{"event":"invoice.created"}`), "", "secret")
	f.Fuzz(func(t *testing.T, body []byte, header, secret string) {
		_ = Verify(body, header, secret)
		if secret != "" && !Verify(body, Sign(body, secret), secret) {
			t.Fatal("round trip failed")
		}
	})
}

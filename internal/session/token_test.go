package session

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestIssueAndParse(t *testing.T) {
	m := NewManager(secret, time.Hour, "shelf")

	tok, err := m.Issue("user-1")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if tok.ID == "" || tok.Value == "" {
		t.Fatalf("Issue() returned incomplete token: %+v", tok)
	}

	claims, err := m.Parse(tok.Value)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if claims.Subject != "user-1" {
		t.Errorf("Subject = %q, want user-1", claims.Subject)
	}
	if claims.ID != tok.ID {
		t.Errorf("ID = %q, want %q", claims.ID, tok.ID)
	}
}

func TestParseRejects(t *testing.T) {
	m := NewManager(secret, time.Hour, "shelf")
	tok, _ := m.Issue("user-1")

	other := NewManager("ffffffffffffffffffffffffffffffff", time.Hour, "shelf")
	foreign, _ := other.Issue("user-1")

	wrongIssuer := NewManager(secret, time.Hour, "elsewhere")
	misissued, _ := wrongIssuer.Issue("user-1")

	expired := NewManager(secret, time.Hour, "shelf")
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	stale, _ := expired.Issue("user-1")

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{RegisteredClaims: jwt.RegisteredClaims{
		ID: "x", Subject: "user-1", Issuer: "shelf", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}})
	none, _ := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)

	parts := strings.Split(tok.Value, ".")
	forgedPayload := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"admin","jti":"x","iss":"shelf","exp":9999999999}`))
	tampered := parts[0] + "." + forgedPayload + "." + parts[2]

	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty", raw: ""},
		{name: "garbage", raw: "not.a.token"},
		{name: "tampered payload", raw: tampered},
		{name: "other secret", raw: foreign.Value},
		{name: "other issuer", raw: misissued.Value},
		{name: "expired", raw: stale.Value},
		{name: "alg none", raw: none},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.Parse(tt.raw); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Parse() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

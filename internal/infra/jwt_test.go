package infra

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestJWTVerifier(t *testing.T) {
	const secret = "test-secret"
	v := NewJWTVerifier(secret)
	future := time.Now().Add(time.Hour).Unix()
	past := time.Now().Add(-time.Hour).Unix()

	cases := []struct {
		name     string
		secret   string
		claims   jwt.MapClaims
		wantUID  string
		wantRole string
		wantErr  bool
	}{
		{"sub claim", secret, jwt.MapClaims{"sub": "u1", "role": "vendor", "exp": future}, "u1", "vendor", false},
		{"id claim defaults role", secret, jwt.MapClaims{"id": "u2", "exp": future}, "u2", "user", false},
		{"expired", secret, jwt.MapClaims{"sub": "u1", "exp": past}, "", "", true},
		{"no expiry", secret, jwt.MapClaims{"sub": "u1"}, "", "", true},
		{"wrong secret", "other", jwt.MapClaims{"sub": "u1", "exp": future}, "", "", true},
		{"missing subject", secret, jwt.MapClaims{"exp": future}, "", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := SignToken(tc.secret, tc.claims)
			if err != nil {
				t.Fatalf("SignToken() error = %v", err)
			}
			tok, err := v.VerifyToken(context.Background(), raw)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidToken) {
					t.Errorf("VerifyToken() error = %v, want ErrInvalidToken", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("VerifyToken() error = %v", err)
			}
			if tok.UID != tc.wantUID || tok.Role != tc.wantRole {
				t.Errorf("VerifyToken() = %+v, want uid=%s role=%s", tok, tc.wantUID, tc.wantRole)
			}
		})
	}
}

func TestJWTVerifier_RejectsOtherAlgorithms(t *testing.T) {
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{"sub": "u1", "exp": time.Now().Add(time.Hour).Unix()}).
		SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := NewJWTVerifier("test-secret").VerifyToken(context.Background(), raw); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("VerifyToken(HS512) error = %v, want ErrInvalidToken", err)
	}
}

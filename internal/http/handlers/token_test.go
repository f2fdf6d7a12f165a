package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/clienthubhq/clienthub-api/internal/auth"
)

func testTokenHandler() *TokenHandler {
	authn := auth.NewAuthenticator(
		[]string{"ch_live_abc123"},
		[]byte("0123456789abcdef0123456789abcdef"),
		15*time.Minute,
	)
	return NewTokenHandler(authn)
}

// ========================================
// CreateToken Tests
// ========================================

func TestCreateToken_ValidKey(t *testing.T) {
	handler := testTokenHandler()

	input := &CreateTokenInput{}
	input.Body.APIKey = "ch_live_abc123"

	output, err := handler.CreateToken(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output.Body.Token == "" {
		t.Error("Token should not be empty")
	}
	if strings.Count(output.Body.Token, ".") != 2 {
		t.Errorf("Token = %q, want a three-segment JWS", output.Body.Token)
	}
	if output.Body.TokenType != "Bearer" {
		t.Errorf("TokenType = %q, want %q", output.Body.TokenType, "Bearer")
	}
	if !output.Body.ExpiresAt.After(time.Now()) {
		t.Error("ExpiresAt should be in the future")
	}
}

func TestCreateToken_InvalidKey(t *testing.T) {
	handler := testTokenHandler()

	input := &CreateTokenInput{}
	input.Body.APIKey = "ch_live_wrong"

	_, err := handler.CreateToken(context.Background(), input)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var statusErr huma.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected huma.StatusError, got %T", err)
	}
	if statusErr.GetStatus() != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", statusErr.GetStatus(), http.StatusUnauthorized)
	}
}

func TestCreateToken_MintedTokenVerifies(t *testing.T) {
	authn := auth.NewAuthenticator(
		[]string{"ch_live_abc123"},
		[]byte("0123456789abcdef0123456789abcdef"),
		15*time.Minute,
	)
	handler := NewTokenHandler(authn)

	input := &CreateTokenInput{}
	input.Body.APIKey = "ch_live_abc123"

	output, err := handler.CreateToken(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	claims, err := authn.VerifyToken(output.Body.Token)
	if err != nil {
		t.Fatalf("minted token should verify: %v", err)
	}
	if claims.Subject != auth.Fingerprint("ch_live_abc123") {
		t.Errorf("Subject = %q, want %q", claims.Subject, auth.Fingerprint("ch_live_abc123"))
	}
}

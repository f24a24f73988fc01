package identity

import "testing"

func TestGenerateIdentityKey(t *testing.T) {
	k1, err := GenerateIdentityKey()
	if err != nil {
		t.Fatalf("GenerateIdentityKey() error = %v", err)
	}
	if k1.IsZero() {
		t.Error("GenerateIdentityKey() returned a zero private key")
	}

	k2, err := GenerateIdentityKey()
	if err != nil {
		t.Fatalf("GenerateIdentityKey() second call error = %v", err)
	}
	if k1.PublicKey == k2.PublicKey {
		t.Error("two generated public keys are identical")
	}
	if k1.PrivateKey == k2.PrivateKey {
		t.Error("two generated private keys are identical")
	}
}

func TestSignVerify(t *testing.T) {
	k, err := GenerateIdentityKey()
	if err != nil {
		t.Fatalf("GenerateIdentityKey() error = %v", err)
	}

	message := []byte("sequence=1 chain_index=0 ciphertext=deadbeef")
	sig := k.Sign(message)

	if IsZeroSignature(sig) {
		t.Error("Sign() produced a zero signature")
	}
	if !Verify(k.PublicKey, message, sig) {
		t.Error("Verify() rejected a valid signature")
	}

	tampered := append([]byte{}, message...)
	tampered[0] ^= 0xFF
	if Verify(k.PublicKey, tampered, sig) {
		t.Error("Verify() accepted a signature over a tampered message")
	}

	other, err := GenerateIdentityKey()
	if err != nil {
		t.Fatalf("GenerateIdentityKey() error = %v", err)
	}
	if Verify(other.PublicKey, message, sig) {
		t.Error("Verify() accepted a signature under the wrong public key")
	}
}

func TestIsZeroSignature(t *testing.T) {
	var zero [SignatureSize]byte
	if !IsZeroSignature(zero) {
		t.Error("IsZeroSignature(zero) = false, want true")
	}

	nonZero := [SignatureSize]byte{1}
	if IsZeroSignature(nonZero) {
		t.Error("IsZeroSignature(nonzero) = true, want false")
	}
}

func TestPublicKeyStringRoundTrip(t *testing.T) {
	k, err := GenerateIdentityKey()
	if err != nil {
		t.Fatalf("GenerateIdentityKey() error = %v", err)
	}

	s := k.PublicKeyString()
	if len(s) != PublicKeySize*2 {
		t.Errorf("PublicKeyString() length = %d, want %d", len(s), PublicKeySize*2)
	}

	parsed, err := ParsePublicKey(s)
	if err != nil {
		t.Fatalf("ParsePublicKey() error = %v", err)
	}
	if parsed != k.PublicKey {
		t.Error("round-trip through ParsePublicKey/PublicKeyString changed the key")
	}

	short := k.PublicKeyShortString()
	if len(short) != 8 {
		t.Errorf("PublicKeyShortString() length = %d, want 8", len(short))
	}
	if short != s[:8] {
		t.Errorf("PublicKeyShortString() = %s, want prefix of %s", short, s)
	}
}

func TestParsePublicKey_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"too short", "a3f8c2d1"},
		{"too long", "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef00"},
		{"invalid hex", "zz" + "0123456789abcdef0123456789abcdef0123456789abcdef0123456789ab"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParsePublicKey(tt.input); err == nil {
				t.Errorf("ParsePublicKey(%q) expected error, got nil", tt.input)
			}
		})
	}
}

func TestParsePublicKey_AcceptsPrefixAndWhitespace(t *testing.T) {
	k, err := GenerateIdentityKey()
	if err != nil {
		t.Fatalf("GenerateIdentityKey() error = %v", err)
	}
	s := k.PublicKeyString()

	if _, err := ParsePublicKey("0x" + s); err != nil {
		t.Errorf("ParsePublicKey with 0x prefix failed: %v", err)
	}
	if _, err := ParsePublicKey("  " + s + "  "); err != nil {
		t.Errorf("ParsePublicKey with whitespace failed: %v", err)
	}
}

func TestZero(t *testing.T) {
	k, err := GenerateIdentityKey()
	if err != nil {
		t.Fatalf("GenerateIdentityKey() error = %v", err)
	}
	if k.IsZero() {
		t.Fatal("freshly generated key reports zero")
	}

	pub := k.PublicKey
	k.Zero()

	if !k.IsZero() {
		t.Error("Zero() did not clear the private key")
	}
	if k.PublicKey != pub {
		t.Error("Zero() unexpectedly modified the public key")
	}
}

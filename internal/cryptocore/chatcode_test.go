package cryptocore

import (
	"crypto/rand"
	"encoding/base64"
	"testing"
)

func TestParseChatCode_Numeric(t *testing.T) {
	cc, err := ParseChatCode("654321")
	if err != nil {
		t.Fatalf("ParseChatCode() error = %v", err)
	}
	if string(cc.RawBytes()) != "654321" {
		t.Errorf("RawBytes() = %q, want %q", cc.RawBytes(), "654321")
	}
}

func TestParseChatCode_Base64(t *testing.T) {
	raw := make([]byte, 64)
	if _, err := rand.Read(raw); err != nil {
		t.Fatalf("rand.Read error = %v", err)
	}
	encoded := base64.RawURLEncoding.EncodeToString(raw)

	cc, err := ParseChatCode(encoded)
	if err != nil {
		t.Fatalf("ParseChatCode() error = %v", err)
	}
	if cc.Secret() != [64]byte(func() [64]byte { var b [64]byte; copy(b[:], raw); return b }()) {
		t.Error("base64 chat code secret does not match decoded bytes")
	}
}

func TestParseChatCode_Invalid(t *testing.T) {
	tests := []string{
		"12345",     // too short numeric
		"1234567",   // too long numeric
		"abcdef",    // not numeric, not valid base64-of-64-bytes
		"!!!invalid",
		"",
	}
	for _, in := range tests {
		if _, err := ParseChatCode(in); err == nil {
			t.Errorf("ParseChatCode(%q) expected error, got nil", in)
		}
	}
}

// P1: derivation is deterministic and pure for a given chat code.
func TestParseChatCode_Deterministic(t *testing.T) {
	cc1, err := ParseChatCode("111222")
	if err != nil {
		t.Fatalf("ParseChatCode() error = %v", err)
	}
	cc2, err := ParseChatCode("111222")
	if err != nil {
		t.Fatalf("ParseChatCode() error = %v", err)
	}
	if cc1.Secret() != cc2.Secret() {
		t.Error("numeric chat code expansion is not deterministic")
	}

	roomID1 := DeriveRoomID(cc1.RawBytes())
	roomID2 := DeriveRoomID(cc2.RawBytes())
	if roomID1 != roomID2 {
		t.Error("room ID derivation is not deterministic")
	}

	rootKey1 := DeriveRootKey(cc1.Secret())
	rootKey2 := DeriveRootKey(cc2.Secret())
	if rootKey1 != rootKey2 {
		t.Error("root key derivation is not deterministic")
	}
}

// Scenario F: two clients with the same numeric chat code derive identical
// root keys and room IDs.
func TestNumericInterop(t *testing.T) {
	ccA, err := ParseChatCode("654321")
	if err != nil {
		t.Fatalf("ParseChatCode() error = %v", err)
	}
	ccB, err := ParseChatCode("654321")
	if err != nil {
		t.Fatalf("ParseChatCode() error = %v", err)
	}

	if ccA.Secret() != ccB.Secret() {
		t.Fatal("numeric chat secrets differ across independent derivations")
	}

	roomIDA := DeriveRoomID(ccA.RawBytes())
	roomIDB := DeriveRoomID(ccB.RawBytes())
	if roomIDA != roomIDB {
		t.Error("room IDs differ across independent derivations")
	}

	rootA := DeriveRootKey(ccA.Secret())
	rootB := DeriveRootKey(ccB.Secret())
	if rootA != rootB {
		t.Error("root keys differ across independent derivations")
	}
}

func TestDeriveRoomID_ScenarioA(t *testing.T) {
	cc, err := ParseChatCode("123456")
	if err != nil {
		t.Fatalf("ParseChatCode() error = %v", err)
	}
	roomID := DeriveRoomID(cc.RawBytes())
	encoded := base64.RawURLEncoding.EncodeToString(roomID[:])
	if len(encoded) == 0 {
		t.Fatal("empty room ID encoding")
	}
	// Re-derive independently from the literal code string to confirm the
	// binding is exactly BLAKE3/SHA3 over the raw "123456" bytes.
	again := DeriveRoomID([]byte("123456"))
	if again != roomID {
		t.Error("room ID is not bound to the literal chat-code bytes")
	}
}

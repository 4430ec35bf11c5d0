package chain

import (
	"strings"
	"testing"
)

func TestSignAndVerifyResult(t *testing.T) {
	signer, err := NewLocalSigner()
	if err != nil {
		t.Fatal(err)
	}

	hash := ResultHash("0xgame", "0xwinner", "0xcontract", 10143, 1700000000)
	blob, err := signer.SignResult(hash)
	if err != nil {
		t.Fatal(err)
	}

	if err := VerifyResult(signer.Address(), hash, blob); err != nil {
		t.Fatalf("verify own signature: %v", err)
	}

	other := ResultHash("0xgame", "0xsomeoneelse", "0xcontract", 10143, 1700000000)
	if err := VerifyResult(signer.Address(), other, blob); err == nil {
		t.Fatal("signature verified against a different winner")
	}

	stranger, _ := NewLocalSigner()
	if err := VerifyResult(stranger.Address(), hash, blob); err == nil {
		t.Fatal("signature attributed to the wrong wallet")
	}

	if err := VerifyResult(signer.Address(), hash, blob[:10]); err == nil {
		t.Fatal("truncated blob verified")
	}
}

func TestResultHashBindsEveryField(t *testing.T) {
	base := ResultHash("g", "w", "c", 1, 2)
	variants := [][32]byte{
		ResultHash("g2", "w", "c", 1, 2),
		ResultHash("g", "w2", "c", 1, 2),
		ResultHash("g", "w", "c2", 1, 2),
		ResultHash("g", "w", "c", 9, 2),
		ResultHash("g", "w", "c", 1, 9),
	}
	for i, v := range variants {
		if v == base {
			t.Errorf("variant %d did not change the hash", i)
		}
	}
}

func TestAddressFromKeyFormat(t *testing.T) {
	signer, err := NewLocalSigner()
	if err != nil {
		t.Fatal(err)
	}
	addr := signer.Address()
	if !strings.HasPrefix(addr, "0x") || len(addr) != 42 {
		t.Fatalf("address %q: want 0x plus 40 hex chars", addr)
	}
}

package service

import "testing"

func TestJWTRoundTrip(t *testing.T) {
	InitJWT("test-secret")

	token, err := GenerateJWT("0xabc123")
	if err != nil {
		t.Fatal(err)
	}

	wallet, err := ParseJWT(token)
	if err != nil {
		t.Fatal(err)
	}
	if wallet != "0xabc123" {
		t.Fatalf("wallet = %q", wallet)
	}
}

func TestParseJWTRejectsGarbage(t *testing.T) {
	InitJWT("test-secret")

	if _, err := ParseJWT("not.a.token"); err == nil {
		t.Fatal("garbage token parsed")
	}

	// Token signed with a different secret.
	InitJWT("other-secret")
	token, err := GenerateJWT("0xabc")
	if err != nil {
		t.Fatal(err)
	}
	InitJWT("test-secret")
	if _, err := ParseJWT(token); err == nil {
		t.Fatal("token with wrong signature parsed")
	}
}

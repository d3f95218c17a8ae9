package token

import (
	"testing"
	"time"
)

func TestTypeHas(t *testing.T) {
	combined := TypeInvite | TypeAcceptTerms | TypeValidateEmail

	if !combined.Has(TypeInvite) {
		t.Fatal("expected combined type to include invite")
	}
	if !combined.Has(TypeInvite | TypeAcceptTerms) {
		t.Fatal("expected combined type to include invite+accept_terms")
	}
	if combined.Has(TypeResetPassword) {
		t.Fatal("expected combined type to exclude reset_password")
	}
	if combined.Has(TypeInvite | TypeResetPassword) {
		t.Fatal("subset check must require every requested bit")
	}
	if combined.Has(0) {
		t.Fatal("empty want must never match")
	}
}

func TestTypeValid(t *testing.T) {
	if !TypeResetPassword.Valid() {
		t.Fatal("expected single bit to be valid")
	}
	if !(TypeInvite | TypeChangeEmail).Valid() {
		t.Fatal("expected combined bits to be valid")
	}
	if Type(0).Valid() {
		t.Fatal("zero type must be invalid")
	}
	if (TypeChangeEmail << 1).Valid() {
		t.Fatal("undefined bit must be invalid")
	}
}

func TestTypeStringRoundTrip(t *testing.T) {
	cases := []Type{
		TypeInvite,
		TypeValidateEmail,
		TypeInvite | TypeAcceptTerms | TypeAcceptPrivacyPolicy,
		TypeChangeEmail,
	}
	for _, typ := range cases {
		parsed, err := ParseType(typ.String())
		if err != nil {
			t.Fatalf("parse %q: %v", typ.String(), err)
		}
		if parsed != typ {
			t.Fatalf("round trip %q: got %v, want %v", typ.String(), parsed, typ)
		}
	}
}

func TestParseTypeUnknown(t *testing.T) {
	if _, err := ParseType("invite+frobnicate"); err == nil {
		t.Fatal("expected error for unknown type name")
	}
}

func TestActionExpired(t *testing.T) {
	now := time.Now()

	a := &Action{}
	if a.Expired(now) {
		t.Fatal("token without deadline must never expire")
	}

	past := now.Add(-time.Minute)
	a.ExpiresAt = &past
	if !a.Expired(now) {
		t.Fatal("expected token past its deadline to be expired")
	}

	future := now.Add(time.Minute)
	a.ExpiresAt = &future
	if a.Expired(now) {
		t.Fatal("expected token before its deadline to be live")
	}
}

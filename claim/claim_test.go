package claim

import (
	"errors"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	actions := []Action{ActionAdmin, ActionCreate, ActionRead, ActionUpdate, ActionEnable, ActionDisable, ActionExecute, ActionDelete}
	scopes := []Scope{ScopeAdmin, ScopeAny, ScopeOrganisation, ScopeEstablishment, ScopeOwn}

	for _, a := range actions {
		for _, s := range scopes {
			c := Claim{Action: a, Scope: s, Resource: "users"}
			parsed, err := Parse(c.String())
			if err != nil {
				t.Fatalf("parse %q: %v", c.String(), err)
			}
			if parsed != c {
				t.Fatalf("round trip: got %v, want %v", parsed, c)
			}
		}
	}
}

func TestParseCanonicalForm(t *testing.T) {
	c, err := Parse("read:own:users")
	if err != nil {
		t.Fatal(err)
	}
	if c.Action != ActionRead || c.Scope != ScopeOwn || c.Resource != "users" {
		t.Fatalf("unexpected claim %+v", c)
	}
}

func TestParseMalformed(t *testing.T) {
	cases := []string{
		"",
		"read",
		"read:own",
		"fly:own:users",
		"read:galaxy:users",
		"read:own:",
	}
	for _, s := range cases {
		if _, err := Parse(s); !errors.Is(err, ErrMalformed) {
			t.Fatalf("parse %q: want ErrMalformed, got %v", s, err)
		}
	}
}

func TestScopeRankOrder(t *testing.T) {
	ordered := []Scope{ScopeOwn, ScopeEstablishment, ScopeOrganisation, ScopeAny, ScopeAdmin}
	for i := 1; i < len(ordered); i++ {
		if ordered[i].Rank() <= ordered[i-1].Rank() {
			t.Fatalf("%s should outrank %s", ordered[i], ordered[i-1])
		}
	}
	if Scope("galaxy").Rank() != -1 {
		t.Fatal("unknown scope should rank below own")
	}
}

func TestMatches(t *testing.T) {
	read := MustParse("read:own:users")
	if !read.Matches(ActionRead, "users") {
		t.Fatal("exact match expected")
	}
	if read.Matches(ActionDelete, "users") {
		t.Fatal("read claim must not match delete")
	}
	if read.Matches(ActionRead, "roles") {
		t.Fatal("users claim must not match roles")
	}

	admin := MustParse("admin:organisation:users")
	if !admin.Matches(ActionDelete, "users") {
		t.Fatal("admin action implies delete")
	}

	wildcard := MustParse("admin:admin:*")
	if !wildcard.Matches(ActionExecute, "anything") {
		t.Fatal("wildcard claim matches every resource")
	}
}

func TestNormalizeShapes(t *testing.T) {
	want := MustParse("update:establishment:users")

	fromString, err := Normalize("update:establishment:users")
	if err != nil || fromString != want {
		t.Fatalf("string shape: %v %v", fromString, err)
	}

	fromStruct, err := Normalize(want)
	if err != nil || fromStruct != want {
		t.Fatalf("struct shape: %v %v", fromStruct, err)
	}

	fromPtr, err := Normalize(&want)
	if err != nil || fromPtr != want {
		t.Fatalf("pointer shape: %v %v", fromPtr, err)
	}

	fromTuple, err := Normalize([]string{"update", "establishment", "users"})
	if err != nil || fromTuple != want {
		t.Fatalf("tuple shape: %v %v", fromTuple, err)
	}
}

func TestNormalizeRejectsUnknownShapes(t *testing.T) {
	if _, err := Normalize(42); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput, got %v", err)
	}
	if _, err := Normalize([]string{"read", "own"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("short tuple: want ErrInvalidInput, got %v", err)
	}
	if _, err := Normalize((*Claim)(nil)); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("nil pointer: want ErrInvalidInput, got %v", err)
	}
}

func TestValidateSet(t *testing.T) {
	ok := []Claim{
		MustParse("read:own:users"),
		MustParse("read:organisation:users"), // same pair, different scope
		MustParse("delete:organisation:users"),
	}
	if err := ValidateSet(ok); err != nil {
		t.Fatalf("multiple scopes per pair should be allowed: %v", err)
	}

	dup := append(ok, MustParse("read:own:users"))
	if err := ValidateSet(dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("want ErrDuplicate, got %v", err)
	}
}

func TestTextMarshalling(t *testing.T) {
	c := MustParse("enable:any:establishments")
	data, err := c.MarshalText()
	if err != nil {
		t.Fatal(err)
	}
	var back Claim
	if err := back.UnmarshalText(data); err != nil {
		t.Fatal(err)
	}
	if back != c {
		t.Fatalf("got %v, want %v", back, c)
	}
}

package api

import (
	"errors"
	"fmt"
	"testing"

	"github.com/xraph/authsome/account"
	"github.com/xraph/authsome/token"
)

func TestMaskAccountProbe(t *testing.T) {
	notFound := fmt.Errorf("user nobody@example.com: %w", account.ErrNotFound)

	tests := []struct {
		name string
		typ  token.Type
		err  error
		want bool
	}{
		{"reset for unknown email", token.TypeResetPassword, notFound, true},
		{"reset with extra bits", token.TypeResetPassword | token.TypeValidateEmail, notFound, true},
		{"reset with other failure", token.TypeResetPassword, errors.New("boom"), false},
		{"reset success", token.TypeResetPassword, nil, false},
		{"invite for unknown email", token.TypeInvite, notFound, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := maskAccountProbe(tt.typ, tt.err); got != tt.want {
				t.Fatalf("maskAccountProbe(%v, %v) = %v, want %v", tt.typ, tt.err, got, tt.want)
			}
		})
	}
}

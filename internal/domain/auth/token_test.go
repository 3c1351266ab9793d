package auth

import (
	"context"
	"testing"
	"time"
)

func TestGenerateAndParseToken(t *testing.T) {
	secret := "test-secret"
	claims := Claims{UserID: "u1", TenantID: "t1", RoleName: RolePayrollOfficer}

	token, err := GenerateToken(secret, claims, time.Hour)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	parsed, err := ParseToken(secret, token)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if parsed.UserID != claims.UserID || parsed.TenantID != claims.TenantID || parsed.RoleName != claims.RoleName {
		t.Fatalf("claims mismatch: %+v", parsed)
	}

	if _, err := ParseToken("other-secret", token); err == nil {
		t.Fatal("expected signature error")
	}
}

func TestParseTokenRejectsExpiredAndAnonymous(t *testing.T) {
	expired, err := GenerateToken("s", Claims{UserID: "u1", TenantID: "t1"}, -time.Minute)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := ParseToken("s", expired); err == nil {
		t.Fatal("expected expired token to be rejected")
	}

	anonymous, err := GenerateToken("s", Claims{RoleName: RolePayrollAdmin}, time.Hour)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := ParseToken("s", anonymous); err == nil {
		t.Fatal("expected token without tenant to be rejected")
	}
}

func TestStaticPermissions(t *testing.T) {
	perms := StaticPermissions{}
	cases := []struct {
		role, perm string
		want       bool
	}{
		{RolePayrollAdmin, PermDeclarationsSubmit, true},
		{RolePayrollOfficer, PermDeclarationsWrite, true},
		{RolePayrollOfficer, PermDeclarationsEncode, false},
		{RoleAuditor, PermPayrollCalculate, false},
		{RoleAuditor, PermAuditRead, true},
		{"unknown", PermDeclarationsRead, false},
	}
	for _, tc := range cases {
		got, err := perms.HasPermission(context.Background(), tc.role, tc.perm)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != tc.want {
			t.Fatalf("%s/%s: expected %v, got %v", tc.role, tc.perm, tc.want, got)
		}
	}
}

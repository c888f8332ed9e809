package model

import "testing"

func TestParseRole(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   Role
		wantOK bool
	}{
		{name: "pastor", input: "pastor", want: RolePastor, wantOK: true},
		{name: "worker", input: "worker", want: RoleWorker, wantOK: true},
		{name: "member", input: "member", want: RoleMember, wantOK: true},
		{name: "newcomer", input: "newcomer", want: RoleNewcomer, wantOK: true},
		{name: "大文字は未知のロール", input: "Pastor", want: Role("Pastor"), wantOK: false},
		{name: "空文字", input: "", want: Role(""), wantOK: false},
		{name: "admin", input: "admin", want: Role("admin"), wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseRole(tt.input)
			if got != tt.want {
				t.Errorf("ParseRole(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if ok != tt.wantOK {
				t.Errorf("ParseRole(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
		})
	}
}

func TestRoles_AllValid(t *testing.T) {
	roles := Roles()
	if len(roles) != 4 {
		t.Fatalf("len(Roles()) = %d, want 4", len(roles))
	}
	for _, r := range roles {
		if !r.Valid() {
			t.Errorf("role %q should be valid", r)
		}
	}
}

package redisstore

import "testing"

func TestMemberRoundTrip(t *testing.T) {
	for _, steps := range []int{0, 7, 12345} {
		m := member(steps)
		got, err := parseMember(m)
		if err != nil {
			t.Fatalf("parse %q: %v", m, err)
		}
		if got != steps {
			t.Errorf("parseMember(%q) = %d, want %d", m, got, steps)
		}
	}
}

func TestMembersAreUnique(t *testing.T) {
	if member(5) == member(5) {
		t.Error("two samples with equal steps must not share a member")
	}
}

func TestParseMemberRejectsGarbage(t *testing.T) {
	for _, m := range []string{"", "12", "x|abc"} {
		if _, err := parseMember(m); err == nil {
			t.Errorf("parseMember(%q): expected error", m)
		}
	}
}

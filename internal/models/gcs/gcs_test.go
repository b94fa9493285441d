package gcs

import "testing"

func TestObjectNames(t *testing.T) {
	s := &Store{bucket: "b", prefix: "models"}

	tests := []struct {
		user, category, kind string
		want                 string
	}{
		{"u1", "Food", "seasonal", "models/users/u1/models/Food/seasonal.json"},
		{"a/b", "Eating Out", "sequence", "models/users/a%2Fb/models/Eating%20Out/sequence.json"},
	}
	for _, tt := range tests {
		if got := s.artifactObject(tt.user, tt.category, tt.kind); got != tt.want {
			t.Errorf("artifactObject(%q, %q, %q) = %q, want %q", tt.user, tt.category, tt.kind, got, tt.want)
		}
	}
}

func TestObjectNamesWithoutPrefix(t *testing.T) {
	s := &Store{bucket: "b"}
	if got := s.userDir("u1"); got != "users/u1" {
		t.Errorf("userDir = %q, want users/u1", got)
	}
}

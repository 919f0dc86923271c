package stack

import "testing"

func TestResolveVersion(t *testing.T) {
	tests := []struct {
		alias    string
		expected string
	}{
		{"6.0", "6.0.1"},
		{"6.1", "6.1.3"},
		{"6.2", "6.2.4"},
		{"6.3", "6.3.3"},
		{"6.4", "6.4.0"},
		{"6.5", "6.5.0"},
		{"master", "7.0.0-alpha1"},
		// unknown versions pass through so pinned releases keep working
		{"6.2.3", "6.2.3"},
		{"5.6.0", "5.6.0"},
	}
	for _, tt := range tests {
		t.Run(tt.alias, func(t *testing.T) {
			if got := ResolveVersion(tt.alias); got != tt.expected {
				t.Errorf("ResolveVersion(%q) = %q, expected %q", tt.alias, got, tt.expected)
			}
		})
	}
}

func TestSupportedAliases(t *testing.T) {
	aliases := SupportedAliases()
	if len(aliases) != len(supportedVersions) {
		t.Fatalf("expected %d aliases, got %d", len(supportedVersions), len(aliases))
	}
	for i := 1; i < len(aliases); i++ {
		if aliases[i-1] >= aliases[i] {
			t.Errorf("aliases not sorted: %q before %q", aliases[i-1], aliases[i])
		}
	}
}

func TestVersionAtLeast(t *testing.T) {
	tests := []struct {
		version  string
		target   string
		expected bool
	}{
		{"6.3.3", "6.3", true},
		{"6.3.0", "6.3", true},
		{"6.2.4", "6.3", false},
		{"6.4.0", "6.4", true},
		{"6.3.3", "6.4", false},
		{"7.0.0-alpha1", "6.5", true},
		{"7.0.0-alpha1", "7.0.0", true},
		{"6.10.0", "6.9", true},
		// a strict prefix orders below the longer target
		{"6.3", "6.3.0", false},
		{"6.3.0", "6.3.0", true},
	}
	for _, tt := range tests {
		t.Run(tt.version+"_vs_"+tt.target, func(t *testing.T) {
			if got := versionAtLeast(tt.version, tt.target); got != tt.expected {
				t.Errorf("versionAtLeast(%q, %q) = %v, expected %v",
					tt.version, tt.target, got, tt.expected)
			}
		})
	}
}

package platform

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		url  string
		kind Kind
		name string
	}{
		{"https://youtube.com/watch?v=abc", Supported, "YouTube"},
		{"https://www.YouTube.com/watch?v=abc", Supported, "YouTube"},
		{"https://youtu.be/abc123", Supported, "YouTube"},
		{"https://vk.com/video1", ComingSoon, "VK.COM"},
		{"https://soundcloud.com/artist/track", ComingSoon, "SOUNDCLOUD.COM"},
		{"https://open.spotify.com/track/x", ComingSoon, "SPOTIFY.COM"},
		{"https://example.com/video", Unknown, "unknown platform"},
		{"not a url at all", Unknown, "unknown platform"},
	}

	for _, test := range tests {
		got := Classify(test.url)
		if got.Kind != test.kind || got.Name != test.name {
			t.Errorf("Classify(%q) = (%v, %q), want (%v, %q)",
				test.url, got.Kind, got.Name, test.kind, test.name)
		}
	}
}

func TestDomainListsAreCopies(t *testing.T) {
	domains := SupportedDomains()
	domains[0] = "mutated"
	if SupportedDomains()[0] != "youtube.com" {
		t.Error("SupportedDomains exposes internal slice")
	}
}

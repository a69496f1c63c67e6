// Package platform classifies source URLs against the known platform sets.
package platform

import "strings"

// Kind partitions URLs into the supported set, the recognized-but-not-yet
// supported set, and everything else.
type Kind int

const (
	Unknown Kind = iota
	Supported
	ComingSoon
)

var (
	supportedMarkers  = []string{"youtube.com", "youtu.be"}
	comingSoonMarkers = []string{"vk.com", "soundcloud.com", "spotify.com"}
)

// Classification names the detected platform alongside its support kind.
type Classification struct {
	Kind Kind
	Name string
}

// Classify matches the URL against the known platform markers. Supported
// platforms report the canonical product name; coming-soon platforms report
// the upper-cased domain marker.
func Classify(url string) Classification {
	lower := strings.ToLower(url)

	for _, marker := range supportedMarkers {
		if strings.Contains(lower, marker) {
			return Classification{Kind: Supported, Name: "YouTube"}
		}
	}
	for _, marker := range comingSoonMarkers {
		if strings.Contains(lower, marker) {
			return Classification{Kind: ComingSoon, Name: strings.ToUpper(marker)}
		}
	}
	return Classification{Kind: Unknown, Name: "unknown platform"}
}

// SupportedDomains and ComingSoonDomains back the capability listing.
func SupportedDomains() []string  { return append([]string(nil), supportedMarkers...) }
func ComingSoonDomains() []string { return append([]string(nil), comingSoonMarkers...) }

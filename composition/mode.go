package composition

import "strings"

// Mode selects the swapchain implementation and the access the layer
// needs to its images.
type Mode uint8

const (
	// ModeSubmit creates a runtime swapchain the layer can submit.
	// Without it the swapchain is internal to the layer.
	ModeSubmit Mode = 1 << iota

	// ModeRead allows LastReleasedImage.
	ModeRead

	// ModeWrite allows CommitLastReleasedImage.
	ModeWrite
)

// Has reports whether every bit of flag is set in m.
func (m Mode) Has(flag Mode) bool { return m&flag == flag }

// String returns the set flags joined by "|".
func (m Mode) String() string {
	if m == 0 {
		return "none"
	}
	var parts []string
	if m.Has(ModeSubmit) {
		parts = append(parts, "submit")
	}
	if m.Has(ModeRead) {
		parts = append(parts, "read")
	}
	if m.Has(ModeWrite) {
		parts = append(parts, "write")
	}
	return strings.Join(parts, "|")
}

package models

// Capability is a string tag identifying a supported model family or feature.
type Capability string

// Fixed vocabulary of capability tags a node may declare. Registry.Load
// rejects any tag outside this set with ConfigError.
const (
	CapabilitySD15       Capability = "sd15"
	CapabilitySDXL       Capability = "sdxl"
	CapabilitySD3        Capability = "sd3"
	CapabilityFlux       Capability = "flux"
	CapabilityImg2Img    Capability = "img2img"
	CapabilityUpscale    Capability = "upscale"
	CapabilityControlNet Capability = "controlnet"
	CapabilityLora       Capability = "lora"
	CapabilityInpaint    Capability = "inpaint"
)

// knownCapabilities is the fixed vocabulary used to validate declared tags.
var knownCapabilities = map[Capability]bool{
	CapabilitySD15:       true,
	CapabilitySDXL:       true,
	CapabilitySD3:        true,
	CapabilityFlux:       true,
	CapabilityImg2Img:    true,
	CapabilityUpscale:    true,
	CapabilityControlNet: true,
	CapabilityLora:       true,
	CapabilityInpaint:    true,
}

// IsKnownCapability reports whether tag belongs to the fixed vocabulary.
func IsKnownCapability(tag string) bool {
	return knownCapabilities[Capability(tag)]
}

// CapabilitySet is an unordered set of capability tags with set-membership helpers.
type CapabilitySet map[Capability]struct{}

// NewCapabilitySet builds a CapabilitySet from a slice of tag strings.
func NewCapabilitySet(tags []string) CapabilitySet {
	set := make(CapabilitySet, len(tags))
	for _, t := range tags {
		set[Capability(t)] = struct{}{}
	}
	return set
}

// Has reports whether the set contains tag.
func (s CapabilitySet) Has(tag Capability) bool {
	_, ok := s[tag]
	return ok
}

// Slice returns the set's members as a string slice (unordered).
func (s CapabilitySet) Slice() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, string(k))
	}
	return out
}

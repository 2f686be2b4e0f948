package types

// ModelDescriptor describes a registered model. Descriptors are supplied once
// when the catalog is built and are never mutated afterwards.
type ModelDescriptor struct {
	// Stable identifier for the model.
	ID string `json:"id" yaml:"id" toml:"id"`
	// Human-friendly name.
	DisplayName string `json:"display_name" yaml:"display_name" toml:"display_name"`
	// Location of the model artifact. Opaque to the runtime; the backend resolves it.
	ArtifactLocation string `json:"artifact_location" yaml:"artifact_location" toml:"artifact_location"`
	// Capabilities advertised by the model (e.g., chat, summary, keywords).
	Capabilities []string `json:"capabilities,omitempty" yaml:"capabilities,omitempty" toml:"capabilities,omitempty"`
	// Maximum sequence length (prompt + generated). 0 means unlimited.
	TokenLimit int `json:"token_limit,omitempty" yaml:"token_limit,omitempty" toml:"token_limit,omitempty"`
	// Quantization level or variant string.
	Quantization string `json:"quantization,omitempty" yaml:"quantization,omitempty" toml:"quantization,omitempty"`
	// Optional family (e.g., toy, llama).
	Family string `json:"family,omitempty" yaml:"family,omitempty" toml:"family,omitempty"`
}

// HasCapability reports whether the descriptor advertises capability c.
func (d ModelDescriptor) HasCapability(c string) bool {
	for _, have := range d.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers cannot mutate catalog state.
func (d ModelDescriptor) Clone() ModelDescriptor {
	out := d
	if d.Capabilities != nil {
		out.Capabilities = append([]string(nil), d.Capabilities...)
	}
	return out
}

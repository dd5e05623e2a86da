// Package models - registry of the two classifier heads.
package models

import "fmt"

// Role distinguishes the two classifier heads of the pipeline.
type Role string

const (
	// RolePresence is the scooter presence classifier.
	RolePresence Role = "presence"
	// RoleParking is the parking-status classifier.
	RoleParking Role = "parking"
)

// Fixed input contract shared by both heads.
const (
	// InputWidth is the tensor width both models consume.
	InputWidth = 224
	// InputHeight is the tensor height both models consume.
	InputHeight = 224
	// InputChannels is the color channel count of the input tensor.
	InputChannels = 3
	// ClassCount is the width of each model's score vector.
	ClassCount = 3
)

// Spec describes one loadable classifier head.
type Spec struct {
	Role        Role   `json:"role"        yaml:"role"`
	Path        string `json:"path"        yaml:"path"`
	InputWidth  int    `json:"inputWidth"  yaml:"inputWidth"`
	InputHeight int    `json:"inputHeight" yaml:"inputHeight"`
	NumClasses  int    `json:"numClasses"  yaml:"numClasses"`
}

// NewSpec builds the spec for one classifier head with the fixed input
// contract filled in.
//
// Arguments:
//   - role: Which head the spec describes.
//   - path: Filesystem path of the serialized model.
//
// Returns:
//   - Spec: The validated spec.
//   - error: An error if the role is unknown or the path is empty.
func NewSpec(role Role, path string) (Spec, error) {
	s := Spec{
		Role:        role,
		Path:        path,
		InputWidth:  InputWidth,
		InputHeight: InputHeight,
		NumClasses:  ClassCount,
	}
	if err := s.Validate(); err != nil {
		return Spec{}, err
	}
	return s, nil
}

// Validate checks the spec against the model contract.
func (s Spec) Validate() error {
	switch s.Role {
	case RolePresence, RoleParking:
	default:
		return fmt.Errorf("unsupported model role: %q", s.Role)
	}
	if s.Path == "" {
		return fmt.Errorf("model path is required for role %s", s.Role)
	}
	if s.InputWidth <= 0 || s.InputHeight <= 0 {
		return fmt.Errorf("invalid input size %dx%d for role %s", s.InputWidth, s.InputHeight, s.Role)
	}
	if s.NumClasses != ClassCount {
		return fmt.Errorf("role %s must output %d classes, got %d", s.Role, ClassCount, s.NumClasses)
	}
	return nil
}

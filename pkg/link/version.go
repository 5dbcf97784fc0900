package link

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// ProtocolVersion is the NLP-C protocol version this transport speaks.
const ProtocolVersion = "1.2.0"

// protocolConstraint is the compatibility window for registering endpoints:
// any 1.x endpoint can interoperate with this transport.
const protocolConstraint = "^1.0"

// IncompatibleProtocolError reports an endpoint whose declared protocol
// version falls outside the transport's compatibility window.
type IncompatibleProtocolError struct {
	Declared   string
	Constraint string
}

func (e *IncompatibleProtocolError) Error() string {
	return fmt.Sprintf("link: protocol version %q incompatible with constraint %q", e.Declared, e.Constraint)
}

// CheckCompatibility validates a declared endpoint protocol version against
// the transport's compatibility constraint.
func CheckCompatibility(declared string) error {
	v, err := semver.NewVersion(declared)
	if err != nil {
		return fmt.Errorf("link: malformed protocol version %q: %w", declared, err)
	}
	c, err := semver.NewConstraint(protocolConstraint)
	if err != nil {
		return fmt.Errorf("link: protocol constraint: %w", err)
	}
	if !c.Check(v) {
		return &IncompatibleProtocolError{Declared: declared, Constraint: protocolConstraint}
	}
	return nil
}

package sandbox

import "time"

// Policy defines resource limits for sandbox execution.
type Policy struct {
	Memory     string        // Docker memory limit (e.g. "512m")
	CPUShares  int           // relative CPU weight; 0 leaves Docker's default
	MaxTimeout time.Duration // Maximum execution time
	Network    bool          // Whether network access is allowed
	Images     []string      // Allowed Docker images
}

// DefaultPolicy returns safe defaults for code execution.
func DefaultPolicy() Policy {
	return Policy{
		Memory:     "512m",
		CPUShares:  512,
		MaxTimeout: 120 * time.Second,
		Network:    false,
		Images:     []string{"python:3.9-slim"},
	}
}

// IsImageAllowed checks if an image is on the allowlist.
func (p Policy) IsImageAllowed(image string) bool {
	for _, allowed := range p.Images {
		if allowed == image {
			return true
		}
	}
	return false
}

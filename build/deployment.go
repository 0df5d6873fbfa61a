// Package build records which kind of binary was compiled. Development
// builds are produced with the "dev" build tag and enable hooks, such as
// the offline pepper fallback, that must never run in production.
package build

// DeploymentType is an enum specifying the deployment to compile.
type DeploymentType byte

const (
	// Development is a deployment that allows insecure offline fallbacks.
	Development DeploymentType = iota

	// Production is the default deployment.
	Production
)

// String returns a human readable name for a build type.
func (b DeploymentType) String() string {
	switch b {
	case Development:
		return "development"
	case Production:
		return "production"
	default:
		return "unknown"
	}
}

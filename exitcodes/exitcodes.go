// Package exitcodes defines the standard exit codes used by xcompat.
package exitcodes

// Exit code constants used by xcompat
// These constants define the exit codes that the application uses to
// indicate various states when it exits:
//
// * Success (0): Used when every attempted configuration passed
// * ComparisonFailure (1): Used when one or more configurations failed
// * RuntimeErr (2): Used for runtime errors such as bad flags, unknown
//   configurations or broken container runtimes
const (
	Success           = 0 // All configurations pass
	ComparisonFailure = 1 // Comparison or pipeline failures
	RuntimeErr        = 2 // Runtime errors or fatal setup errors
)

package exitcodes

// Exit codes for the swap-sentry CLIs
// These codes form the operational contract with provisioning scripts and operators
const (
	Success         = 0 // Successful execution
	UsageError      = 1 // Unknown command, flag or missing arguments
	InvalidConfig   = 2 // Configuration file invalid
	SafetyViolation = 3 // Safety validator blocked a teardown step
	RuntimeError    = 4 // A query or teardown command failed
)

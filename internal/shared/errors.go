package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")

	// Storage errors
	ErrStorage       = fmt.Errorf("storage failure")
	ErrStaleEpoch    = fmt.Errorf("write belongs to an earlier session")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
	ErrUnknownPlatform = fmt.Errorf("unknown platform")
	ErrOutOfOrderPage  = fmt.Errorf("page offset is not contiguous")
)

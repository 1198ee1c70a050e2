package music

import "errors"

var (
	// Precondition failures: reported to the caller, no state change.
	ErrNotInVoiceChannel = errors.New("user is not in a voice channel")
	ErrNoSession         = errors.New("no active session for this guild")
	ErrNotPlaying        = errors.New("no track is currently playing")
	ErrNotPaused         = errors.New("playback is not paused")

	// Resolution failures: the query matched nothing or the resolver
	// was unreachable. A Connecting session returns to Idle.
	ErrResolveFailed = errors.New("failed to resolve track metadata")
	ErrNoResults     = errors.New("query resolved to no tracks")

	// Transport failures: voice connect or stream setup broke. The
	// session is forced back to Idle and the connection torn down.
	ErrVoiceConnect = errors.New("failed to join voice channel")
	ErrStreamFailed = errors.New("failed to stream track")

	// Validation failures: reported with usage guidance, no state change.
	ErrVolumeOutOfRange = errors.New("volume must be between 0 and 100")
	ErrMissingInput     = errors.New("input is required")

	ErrSessionClosed = errors.New("session has been destroyed")
)

package constants

import "time"

// Media generation polling defaults. Image tasks settle within a minute,
// video tasks within ten.
const (
	ImagePollInterval    = 5 * time.Second
	ImagePollMaxAttempts = 12
	VideoPollInterval    = 60 * time.Second
	VideoPollMaxAttempts = 10
)

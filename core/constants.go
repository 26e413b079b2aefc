package core

const (
	ExitCodeSuccess = iota
	ExitCodeFailedStartup
	ExitCodeForceQuit
	ExitCodeFailedQuit
)

// S3 limits a multipart upload to this many parts.
const S3_MULTIPART_MAX_PARTS = 10000

const AUTH_COOKIE_NAME = "auth_token"

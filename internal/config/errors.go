package config

import "errors"

// Validation errors returned by Config.Validate.
var (
	ErrMissingAddr       = errors.New("invalid http.addr: must not be empty")
	ErrInvalidDuration   = errors.New("invalid duration")
	ErrInvalidUploadSize = errors.New("invalid intake.max_upload_bytes: must be positive")
	ErrMissingDSN        = errors.New("invalid database.dsn: must not be empty")
	ErrMissingRedisAddr  = errors.New("invalid redis.addr: must not be empty")
)

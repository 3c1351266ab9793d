package filing

import "errors"

var (
	ErrNoProfiles       = errors.New("no compensation profiles for period")
	ErrCompanyNotFound  = errors.New("company registration not found")
	ErrInvalidPeriod    = errors.New("invalid declaration period")
	ErrChecksumMismatch = errors.New("document checksum mismatch")
	ErrEncodingRejected = errors.New("encoded declaration failed verification")
)

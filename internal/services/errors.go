package services

import "errors"

var (
	ErrMissingInput       = errors.New("missing required fields")
	ErrInvalidAmount      = errors.New("amount must be a finite number")
	ErrDuplicateUser      = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrReportNotFound     = errors.New("report not found")
	ErrReportsDisabled    = errors.New("report archive is not configured")
)

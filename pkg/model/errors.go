package model

import "errors"

var (
	ErrInvalidConfig      = errors.New("invalid simulation config")
	ErrRunNotFound        = errors.New("simulation run not found")
	ErrPresetNotFound     = errors.New("simulation preset not found")
	ErrTooManyRuns        = errors.New("too many simulation runs in flight")
	ErrInvalidAmount      = errors.New("invalid settlement amount")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username already exists")
)

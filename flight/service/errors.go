package service

import "errors"

var (
	ErrFlightNotFound = errors.New("flight not found")
	ErrPresetNotFound = errors.New("preset not found")
	ErrInvalidSteps   = errors.New("invalid step count")
)

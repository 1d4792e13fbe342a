package models

import "errors"

var (
	// ErrInvalidParameter is returned for k, topK or nProbes below 1 and unknown modes.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrInvalidDataset is returned for datasets with duplicate ids or unreadable rows.
	ErrInvalidDataset = errors.New("invalid dataset")
	// ErrUpstreamUnavailable is returned when the dataset generator cannot serve a request.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrNotFound is returned by storage and sessions for unknown ids.
	ErrNotFound = errors.New("not found")
)

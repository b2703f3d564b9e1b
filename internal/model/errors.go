package model

import "errors"

var (
	ErrMalformedPayload   = errors.New("malformed payload")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrHistoryUnavailable = errors.New("history unavailable")
	ErrConnectionLost     = errors.New("connection lost")
)

package handler

import "errors"

var (
	ErrFailedToDecodeRequestBody = errors.New("failed to decode request body")
	ErrInvalidSize               = errors.New("size should be a positive integer")
	ErrInvalidPositionQuery      = errors.New("x, y and z should be numbers")
)

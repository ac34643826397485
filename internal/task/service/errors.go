package service

import "go.trai.ch/zerr"

var (
	ErrTaskNotFound      = zerr.New("task not found")
	ErrExecutionNotFound = zerr.New("execution not found")
	ErrUnsafeCommand     = zerr.New("command rejected by policy")
	ErrInvalidRequest    = zerr.New("invalid request")
)

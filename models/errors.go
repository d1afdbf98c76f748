package models

import "errors"

var (
	ErrRouteNotFound   = errors.New("route not found")
	ErrStudentNotFound = errors.New("student not found")
	ErrDuplicateName   = errors.New("student name already exists in route")
	ErrAlreadyArchived = errors.New("student already archived")
	ErrAlreadyActive   = errors.New("student already active")
	ErrBadStudentID    = errors.New("malformed student id")
)

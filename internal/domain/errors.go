package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrPageTimeout     = errors.New("page: timeout")
	ErrPageAction      = errors.New("page: action failed")
	ErrCityUnresolved  = errors.New("city could not be scoped")
	ErrDuplicateRecord = errors.New("record already written in this run")
	ErrSinkWrite       = errors.New("sink write failed")
)

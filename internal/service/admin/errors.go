package admin

import "errors"

var ErrInvalidPoolSize = errors.New("total tickets must be positive")

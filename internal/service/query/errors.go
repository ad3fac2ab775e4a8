package query

import "errors"

var ErrCompetitionNotFound = errors.New("competition not found")

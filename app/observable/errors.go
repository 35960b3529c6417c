package observable

import "errors"

var (
	ErrUnclassifiable    = errors.New("unclassifiable address")
	ErrUnsupportedEntity = errors.New("unsupported entity type")
)

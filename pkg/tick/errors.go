package tick

import "errors"

var errShortBuffer = errors.New("tick: buffer too short to contain a serialized tick")

package publisher

import "errors"

var errMissingURL = errors.New("webhook response has no url")

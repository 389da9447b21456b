package work

import "github.com/pkg/errors"

var errShutdown = errors.New("work: queue has been shut down")

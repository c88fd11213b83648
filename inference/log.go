package inference

import (
	"github.com/cottand/jinfer/internal/log"
)

var logger = log.DefaultLogger.With("section", "inference")

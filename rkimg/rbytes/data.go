package rbytes

import (
	"bytes"
)

type (
	Reader struct {
		bytes.Reader
	}
)

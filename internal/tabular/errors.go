package tabular

import "errors"

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrParse             = errors.New("could not parse file")
	ErrEmptyInput        = errors.New("file contains no data rows")
)

package filesystem

import "errors"

var (
	ErrInitFSClient = errors.New("unable to initialize file system from the specified path")
)

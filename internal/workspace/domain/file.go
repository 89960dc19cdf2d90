package domain

// File is one stored workspace file. Path is relative to the workspace folder and uses '/' separators.
type File struct {
	Path    string
	Content []byte
}

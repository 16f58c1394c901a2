package models

// Document is one raw input document. Hint is its position in the source
// stream.
type Document struct {
	Hint  int64
	Title string
	Text  string
}

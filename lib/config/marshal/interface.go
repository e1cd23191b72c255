// Package marshal provides generic marshalling and unmarshalling of structs,
// selecting the format by file extension.
package marshal

// Marshaller turns objects into bytes, and vice-versa.
type Marshaller interface {
	Marshal(value interface{}) ([]byte, error)
	Unmarshal(data []byte, value interface{}) error
}

// FileMarshaller is a Marshaller associated with file extensions.
type FileMarshaller interface {
	Marshaller
	// Extensions returns the file extensions used by files in this format,
	// the preferred one first.
	Extensions() []string
}

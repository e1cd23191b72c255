package kflags

import (
	"fmt"
	"os"
)

type ByteFileModifier func(*ByteFileFlag)

// WithFilename stores the path supplied by the user in filename as well.
func WithFilename(filename *string) ByteFileModifier {
	return func(bff *ByteFileFlag) {
		bff.filename = filename
	}
}

// ByteFileFlag is a flag taking a path on the command line, but storing the
// content of the file in the destination.
//
// It is used for secrets: passing a path keeps the secret out of 'ps'.
// Implements both flag.Value and pflag.Value.
type ByteFileFlag struct {
	result   *[]byte
	filename *string
}

// NewByteFileFlag creates a flag that reads a file into a byte array.
//
// If defaultFile is not empty, it is read immediately, as the flag
// libraries only call Set for values supplied by the user.
func NewByteFileFlag(destination *[]byte, defaultFile string, mods ...ByteFileModifier) *ByteFileFlag {
	*destination = []byte{}
	filename := ""
	bff := &ByteFileFlag{
		result:   destination,
		filename: &filename,
	}
	for _, m := range mods {
		m(bff)
	}

	bff.Set(defaultFile)
	return bff
}

func (bf *ByteFileFlag) String() string {
	if bf.filename == nil {
		return ""
	}
	return *bf.filename
}

func (bf *ByteFileFlag) Set(value string) error {
	*bf.filename = value
	if value == "" {
		return nil
	}

	data, err := os.ReadFile(value)
	if err != nil {
		return fmt.Errorf("could not read %s - %w", value, err)
	}
	*bf.result = data
	return nil
}

func (bf *ByteFileFlag) Type() string {
	return "file-path"
}

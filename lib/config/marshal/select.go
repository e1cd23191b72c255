package marshal

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var Toml = &TomlEncoder{}
var Yaml = &YamlEncoder{}
var Json = &JsonEncoder{}

// Known lists the supported formats, in preference order.
var Known = FileMarshallers{
	Toml, Json, Yaml,
}

// FileMarshallers is a list of marshallers, lowest index is preferred.
type FileMarshallers []FileMarshaller

// ByExtension returns the first FileMarshaller handling the extension of path,
// or nil if there is none.
func (fm FileMarshallers) ByExtension(path string) FileMarshaller {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "" {
		return nil
	}
	for _, candidate := range fm {
		for _, known := range candidate.Extensions() {
			if known == ext {
				return candidate
			}
		}
	}
	return nil
}

// Formats returns the preferred extension of each marshaller.
func (fm FileMarshallers) Formats() []string {
	result := []string{}
	for _, candidate := range fm {
		result = append(result, candidate.Extensions()[0])
	}
	return result
}

// Unmarshal decodes data into value based on the extension of path.
func (fm FileMarshallers) Unmarshal(path string, data []byte, value interface{}) error {
	marshaller := fm.ByExtension(path)
	if marshaller == nil {
		return fmt.Errorf("could not determine format from path %s - unknown extension? valid: %v", path, fm.Formats())
	}
	return marshaller.Unmarshal(data, value)
}

// UnmarshalFile reads path and decodes it into value based on its extension.
func (fm FileMarshallers) UnmarshalFile(path string, value interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return fm.Unmarshal(path, data, value)
}

// Marshal encodes value based on the extension of path.
func (fm FileMarshallers) Marshal(path string, value interface{}) ([]byte, error) {
	marshaller := fm.ByExtension(path)
	if marshaller == nil {
		return nil, fmt.Errorf("could not determine format from path %s - unknown extension? valid: %v", path, fm.Formats())
	}
	return marshaller.Marshal(value)
}

// MarshalFile encodes value based on the extension of path, and writes it there.
func (fm FileMarshallers) MarshalFile(path string, value interface{}) error {
	data, err := fm.Marshal(path, value)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0660)
}

func ByExtension(path string) FileMarshaller {
	return Known.ByExtension(path)
}

func Unmarshal(path string, data []byte, value interface{}) error {
	return Known.Unmarshal(path, data, value)
}

func UnmarshalFile(path string, value interface{}) error {
	return Known.UnmarshalFile(path, value)
}

func MarshalFile(path string, value interface{}) error {
	return Known.MarshalFile(path, value)
}

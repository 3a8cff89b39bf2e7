package stories

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Document is a decoded collection file.
type Document struct {
	Title      string
	Options    Options
	Collection *Collection
}

// LoadFile reads a yaml or json collection file. JSON is valid yaml, so one
// decoder serves both.
func LoadFile(path string, reg Registry) (Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("load collection %s: %w", path, err)
	}
	doc, err := Decode(bytes.NewReader(b), reg)
	if err != nil {
		return Document{}, fmt.Errorf("load collection %s: %w", path, err)
	}
	return doc, nil
}

func Decode(r io.Reader, reg Registry) (Document, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return Document{}, &ValidationError{Rule: RuleSchema, Group: -1, Item: -1, Detail: "empty document"}
		}
		return Document{}, fmt.Errorf("decode collection: %w", err)
	}
	if err := f.Validate(); err != nil {
		return Document{}, err
	}
	c, err := FromRecords(f.Groups, reg)
	if err != nil {
		return Document{}, err
	}
	return Document{Title: f.Title, Options: f.Options, Collection: c}, nil
}

// Encode writes c as a yaml collection file.
func Encode(w io.Writer, title string, opts Options, c *Collection) error {
	f := File{
		Kind:          CollectionKind,
		SchemaVersion: SupportedSchemaVersion,
		Title:         title,
		Options:       opts,
		Groups:        c.Records(),
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("encode collection: %w", err)
	}
	return enc.Close()
}

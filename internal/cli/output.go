package cli

import (
	"encoding/json"
	"fmt"
	"io"
)

// Formatter handles JSON vs text output for command handlers.
type Formatter struct {
	Format string
	Writer io.Writer
}

// JSON emits v as indented JSON regardless of text content supplied later.
func (f *Formatter) JSON(v any) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Emit writes either the JSON form of v or the prepared text block,
// depending on the selected format.
func (f *Formatter) Emit(v any, text string) error {
	if f.Format == "json" {
		return f.JSON(v)
	}
	_, err := fmt.Fprintln(f.Writer, text)
	return err
}

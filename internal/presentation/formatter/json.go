package formatter

import (
	"fmt"
	"io"

	"github.com/bytedance/sonic"
)

// JSONFormatter emits any value as indented JSON, for piping into other
// tools.
type JSONFormatter struct {
	w io.Writer
}

// NewJSONFormatter creates a JSON formatter writing to w.
func NewJSONFormatter(w io.Writer) *JSONFormatter {
	return &JSONFormatter{w: w}
}

// Format marshals v and writes it followed by a newline.
func (f *JSONFormatter) Format(v interface{}) error {
	data, err := sonic.ConfigDefault.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	data = append(data, '\n')
	if _, err := f.w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

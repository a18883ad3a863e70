//go:build !sonic

package report

import (
	"io"

	"github.com/goccy/go-json"
)

var jsonUnmarshal = json.Unmarshal

func jsonEncoder(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

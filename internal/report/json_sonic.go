//go:build sonic

package report

import (
	"io"

	"github.com/bytedance/sonic"
)

var jsonUnmarshal = sonic.Unmarshal

func jsonEncoder(w io.Writer, v any) error {
	enc := sonic.ConfigDefault.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

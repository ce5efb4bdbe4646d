package bmxtract

import (
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// DecodeChartText converts raw chart bytes to UTF-8. BMS charts in the wild
// are almost always Shift-JIS; input that is already valid UTF-8 is passed
// through untouched.
func DecodeChartText(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}
	decoded, _, err := transform.Bytes(japanese.ShiftJIS.NewDecoder(), data)
	if err != nil {
		return "", fmt.Errorf("decode chart text: %w", err)
	}
	return string(decoded), nil
}

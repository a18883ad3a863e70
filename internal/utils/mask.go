package utils

const maskRunes = "*****"

// MaskSecret keeps a four character prefix of long secrets for recognition and hides the rest
func MaskSecret(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) < 8:
		return maskRunes
	default:
		return s[:4] + maskRunes
	}
}

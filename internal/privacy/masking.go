package privacy

import "strings"

// MaskFunc transforms a value into its masked form
type MaskFunc func(string) string

// MaskPhone keeps the first 2 and last 2 digits of a phone number
func MaskPhone(number string) string {
	return head(number, 2) + strings.Repeat(MaskChar, 6) + tail(number, 2)
}

// MaskNationalID keeps only the last 4 digits behind a fixed prefix
func MaskNationalID(number string) string {
	return "XXXX XXXX " + tail(number, 4)
}

// MaskPassport keeps the leading letter and the last 2 digits
func MaskPassport(number string) string {
	return head(number, 1) + strings.Repeat(MaskChar, 5) + tail(number, 2)
}

// MaskHandle masks the local part of a local@domain token and keeps the domain
func MaskHandle(handle string) string {
	local, domain, ok := strings.Cut(handle, "@")
	if !ok {
		return RedactedSentinel
	}
	if runeLen(local) <= 2 {
		return MaskChar + "@" + domain
	}
	return head(local, 2) + strings.Repeat(MaskChar, 3) + "@" + domain
}

// MaskEmail masks an email address the same way as a handle
func MaskEmail(email string) string {
	return MaskHandle(email)
}

// MaskPersonName keeps the initial of every name token
func MaskPersonName(name string) string {
	parts := strings.Fields(name)
	masked := make([]string, 0, len(parts))
	for _, p := range parts {
		if runeLen(p) > 1 {
			masked = append(masked, head(p, 1)+strings.Repeat(MaskChar, 3))
		} else {
			masked = append(masked, MaskChar)
		}
	}
	return strings.Join(masked, " ")
}

// MaskAddress fully redacts an address
func MaskAddress(string) string {
	return RedactedSentinel
}

// maskers maps each category to its masking function
var maskers = map[Category]MaskFunc{
	CategoryPhone:      MaskPhone,
	CategoryNationalID: MaskNationalID,
	CategoryPassport:   MaskPassport,
	CategoryHandle:     MaskHandle,
	CategoryEmail:      MaskEmail,
	CategoryPersonName: MaskPersonName,
	CategoryAddress:    MaskAddress,
}

// Mask applies the masking function of a category. Unknown categories are
// fully redacted.
func Mask(category Category, value string) string {
	if fn, ok := maskers[category]; ok {
		return fn(value)
	}
	return RedactedSentinel
}

func head(s string, n int) string {
	r := []rune(s)
	if len(r) < n {
		return s
	}
	return string(r[:n])
}

func tail(s string, n int) string {
	r := []rune(s)
	if len(r) < n {
		return s
	}
	return string(r[len(r)-n:])
}

func runeLen(s string) int {
	return len([]rune(s))
}

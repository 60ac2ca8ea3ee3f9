// Package code implements the redemption code format: the 15-digit weighted
// checksum rule, a set type for code membership, and the newline-delimited
// list format shared by the persisted lists and ingestion batch files.
package code

// Length is the number of digits in a well-formed code.
const Length = 15

// PayloadLength is the number of digits covered by the check digit.
const PayloadLength = Length - 1

// IsWellFormed reports whether code is exactly 15 ASCII digits whose last
// digit equals sum((i+1)*d[i]) mod 10 over the first 14 digits.
// Any input is accepted; malformed input simply yields false.
func IsWellFormed(code string) bool {
	if len(code) != Length {
		return false
	}

	check, ok := CheckDigit(code[:PayloadLength])
	if !ok {
		return false
	}

	return code[PayloadLength] == check
}

// CheckDigit returns the ASCII check digit for a 14-digit payload.
// It returns false if payload is not exactly 14 ASCII digits.
func CheckDigit(payload string) (byte, bool) {
	if len(payload) != PayloadLength {
		return 0, false
	}

	sum := 0
	for i := 0; i < len(payload); i++ {
		c := payload[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		sum += (i + 1) * int(c-'0')
	}

	return byte('0' + sum%10), true
}

// Complete appends the check digit to a 14-digit payload.
func Complete(payload string) (string, bool) {
	check, ok := CheckDigit(payload)
	if !ok {
		return "", false
	}
	return payload + string(check), true
}

package frame

import "unicode/utf8"

// Policy decides when a frame looks like a partially delivered or
// desynchronised stream rather than protocol text. The thresholds are
// heuristics: a zero Policy never reports corruption.
type Policy struct {
	// ShortMaxLen is the largest length treated as a short frame. A short
	// frame with any non-printable byte is corrupt.
	ShortMaxLen int
	// MidMinLen and MidMaxLen bound the mid-length range
	MidMinLen int
	MidMaxLen int
	// BinaryRatio is the share of non-printable bytes at which a
	// mid-length frame is corrupt
	BinaryRatio float64
}

// DefaultPolicy returns the thresholds used by the monitor
func DefaultPolicy() Policy {
	return Policy{
		ShortMaxLen: 4,
		MidMinLen:   5,
		MidMaxLen:   256,
		BinaryRatio: 0.25,
	}
}

// Corrupt reports whether msg should be treated as stream corruption
func (p Policy) Corrupt(msg []byte) bool {
	n := len(msg)
	if n == 0 {
		return false
	}

	bad := nonPrintable(msg)
	if n <= p.ShortMaxLen {
		return bad > 0
	}

	if p.BinaryRatio > 0 && n >= p.MidMinLen && n <= p.MidMaxLen {
		return float64(bad)/float64(n) >= p.BinaryRatio
	}

	return false
}

// nonPrintable counts control bytes other than whitespace. High bytes count
// only when msg is not valid UTF-8.
func nonPrintable(msg []byte) int {
	validText := utf8.Valid(msg)

	count := 0
	for _, b := range msg {
		switch {
		case b == '\t' || b == '\n' || b == '\r':
		case b < 0x20 || b == 0x7f:
			count++
		case b >= 0x80 && !validText:
			count++
		}
	}

	return count
}

package aismsg

import (
	"fmt"
	"strings"

	ais "github.com/andmarios/aislib"
)

// Mmsi stands for Maritime Mobile Service Identity and is used to identify the
// sender of AIS messages. It should be displayed as 9 digits.
type Mmsi uint32

// String returns the MMSI zero-padded to 9 digits.
func (m Mmsi) String() string {
	return fmt.Sprintf("%09d", uint32(m))
}

// Class returns the type of sender according to the MMSI.
// E.g. "Ship", "Coastal Station", "MOB —Man Overboard Device", etc.
func (m Mmsi) Class() string {
	s := ais.DecodeMMSI(uint32(m))
	if i := strings.Index(s, ","); i != -1 {
		return s[:i]
	}
	return s
}

// MID returns the Maritime Identification Digits, the leading three digits
// of a 9-digit MMSI. ok is false for identifiers with fewer digits, which
// have no flag state.
func (m Mmsi) MID() (mid int, ok bool) {
	if m < 100000000 || m > 999999999 {
		return 0, false
	}
	return int(m / 1000000), true
}

// Flag returns the flag country derived from the MID.
func (m Mmsi) Flag() (string, bool) {
	mid, ok := m.MID()
	if !ok {
		return "", false
	}
	return Country(mid)
}

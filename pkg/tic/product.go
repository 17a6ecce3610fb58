package tic

import "strings"

// VendorID is the Pololu USB vendor id.
const VendorID = 0x1FFB

// Product is a Tic model.
type Product int

const (
	Unknown Product = iota
	T825
	T834
	T500
	N825
	T249
	Tic36v4
)

var productIDs = map[uint16]Product{
	0x00B3: T825,
	0x00B5: T834,
	0x00BD: T500,
	0x00C3: N825,
	0x00C9: T249,
	0x00CB: Tic36v4,
}

var productNames = map[Product]string{
	T825:    "Tic T825",
	T834:    "Tic T834",
	T500:    "Tic T500",
	N825:    "Tic N825",
	T249:    "Tic T249",
	Tic36v4: "Tic 36v4",
}

func (p Product) String() string {
	if name, ok := productNames[p]; ok {
		return name
	}
	return "Tic (unknown model)"
}

// ProductFromUSB maps a USB product id to a Tic model.
func ProductFromUSB(pid uint16) Product {
	return productIDs[pid]
}

// ParseProduct accepts names like "T825", "tic t825" or "36v4".
func ParseProduct(s string) (Product, bool) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "tic ")
	for p, name := range productNames {
		if strings.TrimPrefix(strings.ToLower(name), "tic ") == s {
			return p, true
		}
	}
	return Unknown, false
}

// CurrentLimitMilliamps converts a current limit code read from the device
// to milliamps. The T500 uses a non-linear table and is not converted.
func (p Product) CurrentLimitMilliamps(code byte) (int, bool) {
	switch p {
	case T825, T834, N825:
		return int(code) * 32, true
	case T249:
		return int(code) * 40, true
	case Tic36v4:
		// 71.615 mA per step.
		return int(code) * 71615 / 1000, true
	}
	return 0, false
}

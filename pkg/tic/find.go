package tic

import (
	"fmt"
	"sort"
	"strconv"

	"go.bug.st/serial/enumerator"
)

// PortInfo describes a Tic found on USB.
type PortInfo struct {
	Name         string
	SerialNumber string
	Product      Product
}

// Find lists the command ports of all Tics on USB. A Tic shows up as two
// serial ports, the command port and the TTL port; only the first one (the
// command port) is returned for each device.
func Find() ([]PortInfo, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	sort.Slice(ports, func(i, j int) bool { return ports[i].Name < ports[j].Name })

	var found []PortInfo
	seen := make(map[string]bool)
	for _, p := range ports {
		if !p.IsUSB {
			continue
		}
		product, ok := usbProduct(p.VID, p.PID)
		if !ok {
			continue
		}
		key := p.SerialNumber
		if key == "" {
			key = p.Name
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		found = append(found, PortInfo{
			Name:         p.Name,
			SerialNumber: p.SerialNumber,
			Product:      product,
		})
	}
	return found, nil
}

func usbProduct(vid, pid string) (Product, bool) {
	v, err := strconv.ParseUint(vid, 16, 16)
	if err != nil || v != VendorID {
		return Unknown, false
	}
	p, err := strconv.ParseUint(pid, 16, 16)
	if err != nil {
		return Unknown, false
	}
	product := ProductFromUSB(uint16(p))
	return product, product != Unknown
}

package domain

import "strings"

// FindDuplicateIdentifier scans a candidate set for an identifier collision
// with the given identifier: a matching serial number, or a matching MAC
// address when both sides declare one. Returns the first colliding entity,
// or nil.
func FindDuplicateIdentifier(identifier DeviceIdentifier, candidates []*DeviceEntity) *DeviceEntity {
	for _, c := range candidates {
		if strings.EqualFold(c.Identifier.SerialNumber, identifier.SerialNumber) {
			return c
		}
		if identifier.MatchesMAC(c.Identifier) {
			return c
		}
	}
	return nil
}

package device

import "github.com/srg/lelo/internal/bledb"

// NormalizeUUID converts a UUID to the lookup key used by connection maps:
// lowercase, no dashes or braces, SIG base UUIDs reduced to their 16-bit form.
func NormalizeUUID(uuid string) string {
	return bledb.NormalizeUUID(uuid)
}

// NormalizeUUIDs normalizes every UUID in uuids.
func NormalizeUUIDs(uuids []string) []string {
	return bledb.NormalizeUUIDs(uuids)
}

package mado

import "cliniq/internal/refdata"

// ResolveRecipient returns the fax destination for a region. Region ids are
// not guaranteed unique in the table, so the first match in table order
// wins. The second return is false when no entry matches.
func ResolveRecipient(regionID string, table []refdata.Recipient) (refdata.Recipient, bool) {
	for _, entry := range table {
		if entry.RegionID == regionID {
			return entry, true
		}
	}
	return refdata.Recipient{}, false
}

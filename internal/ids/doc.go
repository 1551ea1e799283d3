// Package ids generates entity identifiers: monotonic ULIDs for rows whose
// primary-key order should follow creation order, and random UUIDs for
// account-level entities.
package ids

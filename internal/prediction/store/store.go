// Package store persists prediction records and the global customer-id
// counter.
package store

// customerCounter names the row of the counters table that issues customer ids.
const customerCounter = "customer_id"

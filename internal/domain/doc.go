// Package domain defines the core domain types and interfaces.
//
// This package holds the record shape, the tier contracts (hot, warm,
// cold), result types, and the error taxonomy. No implementation code -
// just contracts. Keeping interfaces here, on the consumer side,
// prevents circular imports between tiers and their callers.
package domain

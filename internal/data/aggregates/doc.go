// Package aggregates implements the write boundaries declared in
// internal/domain/aggregates on top of the table repos.
//
// Every write runs inside one transaction owned by the aggregate. Wallet
// writes combine a row lock (where the dialect has one) with a version
// compare-and-set and replay the transaction on conflict.
package aggregates

// Package model defines shared value types for the hedging engine.
//
// Conventions:
//   - Prices: integer cents (0-100 = $0.00-$1.00)
//   - Costs: integer cent-cents (1/100 of a cent) for lossless averaging
//   - Timestamps: epoch seconds for exchange window times, time.Time locally
//   - IDs: string for tickers and exchange order ids, uuid.UUID for client
//     order ids
package model

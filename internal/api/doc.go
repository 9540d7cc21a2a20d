// Package api provides the Kalshi REST client used for market discovery
// and order entry.
//
// REST endpoints:
//   - Production: https://api.elections.kalshi.com/trade-api/v2
//   - Demo: https://demo-api.kalshi.co/trade-api/v2
//
// Requests are signed with RSA-PSS when credentials are configured; see
// the auth package for the signing scheme.
package api

// Package db provides the embedded catalog seed data.
package db

import _ "embed"

// Products contains the JSON array of catalog products, priced in CZK.
//
//go:embed seed/products.json
var Products []byte

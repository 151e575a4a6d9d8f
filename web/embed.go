// Package web provides the embedded HTML templates of the order form.
package web

import "embed"

// Templates holds every page template under templates/.
//
//go:embed templates/*.html
var Templates embed.FS

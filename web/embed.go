// Package web bundles the dashboard's HTML templates and stylesheet into the
// dashboard binary.
package web

import "embed"

// Templates holds the layout, partial and page templates parsed by
// view.NewEngine.
//
//go:embed templates/layouts/*.html templates/partials/*.html templates/pages/*.html
var Templates embed.FS

// Static holds the stylesheet served under /static/.
//
//go:embed static/css/*.css
var Static embed.FS

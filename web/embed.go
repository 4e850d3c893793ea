// Package web embeds the dashboard served at "/".
package web

import "embed"

// Content is the dashboard: a Leaflet map fed by the position stream plus
// the weather, news, risk and statistics panels.
//
//go:embed index.html app.js styles.css
var Content embed.FS

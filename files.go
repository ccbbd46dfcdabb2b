/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"strings"
)

// normalizeImageRef keeps the preset image or a browser-encoded image data
// URI. Anything else becomes empty, so the slot just stays blank.
func normalizeImageRef(raw, preset string) string {
	switch {
	case raw == "":
		return ""
	case preset != "" && raw == preset:
		return preset
	case strings.HasPrefix(raw, "data:image/"):
		return raw
	default:
		return ""
	}
}

func humanReadableSize(bytes int64) string {
	const unit int64 = 1000
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := unit, 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB",
		float64(bytes)/float64(div),
		"kMGTPE"[exp])
}

// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: defaults/embedded.go
// Summary: Embedded default configuration file.

package defaults

import "embed"

//go:embed texeledit.json
var fs embed.FS

// EditorConfig returns the embedded texeledit.json.
func EditorConfig() ([]byte, error) {
	return fs.ReadFile("texeledit.json")
}

// Package scripts embeds the report scripts shipped with the shade CLI.
// Scripts run in the Risor runtime of internal/runtime; the helper modules
// at the root of the tree are importable by name.
package scripts

import "embed"

//go:embed *.risor report/*.risor
var FS embed.FS

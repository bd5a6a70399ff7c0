package shade

import (
	"context"

	"github.com/jward/shade/internal/analysis"
	"github.com/jward/shade/internal/config"
	"github.com/jward/shade/internal/errtrack"
	"github.com/jward/shade/internal/highlight"
	"github.com/jward/shade/internal/navigate"
	"github.com/jward/shade/internal/parser"
	"github.com/jward/shade/internal/span"
	"github.com/jward/shade/internal/store"
)

// Public aliases for the internal types that appear in the API.

type Position = span.Position
type Range = span.Range

type Options = config.Options
type Analysis = analysis.Analysis
type SyntaxError = parser.SyntaxError

type Category = highlight.Category
type Set = highlight.Set
type Result = highlight.Result
type Op = highlight.Op

type Edit = navigate.Edit
type RenameError = navigate.RenameError
type ErrorRecord = errtrack.Record

type Store = store.Store
type File = store.File
type Occurrence = store.Occurrence

// DefaultOptions returns the option defaults.
func DefaultOptions() Options { return config.Default() }

// LoadOptions reads options from path, or from .shade.* in dir when path
// is empty. A missing file in dir yields the defaults.
func LoadOptions(dir, path string) (Options, error) { return config.Load(dir, path) }

// Analyze runs the parse, scope and classification stages over src.
func Analyze(ctx context.Context, src []byte, opts Options) (*Analysis, error) {
	return analysis.Analyze(ctx, src, opts)
}

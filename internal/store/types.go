package store

import "time"

// Export domain types. Lines are 1-based, columns 0-based code points.

type File struct {
	ID          int64
	Path        string
	Hash        string
	LineCount   int
	Repaired    bool
	SyntaxError string // empty when the file analysed cleanly
	LastIndexed time.Time
}

type Scope struct {
	ID            int64
	FileID        int64
	Kind          string
	Name          string
	Path          string
	StartLine     int
	StartCol      int
	EndLine       int
	EndCol        int
	ParentScopeID *int64
}

type Binding struct {
	ID      int64
	FileID  int64
	ScopeID int64
	Name    string
	Kinds   int
	IsSelf  bool
	Used    bool
}

type Occurrence struct {
	ID        int64
	FileID    int64
	ScopeID   int64
	BindingID *int64
	Name      string
	Role      string
	Category  string
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
	Ordinal   int
}

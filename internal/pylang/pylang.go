// Package pylang holds the fixed name sets of the Python language: reserved
// keywords and the builtin namespace.
package pylang

import (
	"unicode"
	"unicode/utf8"
)

// Keywords are the reserved words of Python 3. Soft keywords (match, case,
// type, _) are valid identifiers and therefore not listed.
var Keywords = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "break": true,
	"class": true, "continue": true, "def": true, "del": true, "elif": true,
	"else": true, "except": true, "finally": true, "for": true, "from": true,
	"global": true, "if": true, "import": true, "in": true, "is": true,
	"lambda": true, "nonlocal": true, "not": true, "or": true, "pass": true,
	"raise": true, "return": true, "try": true, "while": true, "with": true,
	"yield": true,
}

// Builtins is the builtin namespace of Python 3.
var Builtins = map[string]bool{}

func init() {
	for _, name := range builtinNames {
		Builtins[name] = true
	}
}

var builtinNames = []string{
	// Constants and module attributes.
	"Ellipsis", "NotImplemented", "__build_class__", "__debug__", "__doc__",
	"__import__", "__loader__", "__name__", "__package__", "__spec__",
	"__file__", "__builtins__", "copyright", "credits", "exit", "license",
	"quit",
	// Functions.
	"abs", "aiter", "all", "anext", "any", "ascii", "bin", "breakpoint",
	"callable", "chr", "compile", "delattr", "dir", "divmod", "eval", "exec",
	"format", "getattr", "globals", "hasattr", "hash", "help", "hex", "id",
	"input", "isinstance", "issubclass", "iter", "len", "locals", "max",
	"min", "next", "oct", "open", "ord", "pow", "print", "repr", "round",
	"setattr", "sorted", "sum", "vars",
	// Types.
	"bool", "bytearray", "bytes", "classmethod", "complex", "dict",
	"enumerate", "filter", "float", "frozenset", "int", "list", "map",
	"memoryview", "object", "property", "range", "reversed", "set", "slice",
	"staticmethod", "str", "super", "tuple", "type", "zip",
	// Exceptions and warnings.
	"ArithmeticError", "AssertionError", "AttributeError", "BaseException",
	"BaseExceptionGroup", "BlockingIOError", "BrokenPipeError", "BufferError",
	"BytesWarning", "ChildProcessError", "ConnectionAbortedError",
	"ConnectionError", "ConnectionRefusedError", "ConnectionResetError",
	"DeprecationWarning", "EOFError", "EncodingWarning", "EnvironmentError",
	"Exception", "ExceptionGroup", "FileExistsError", "FileNotFoundError",
	"FloatingPointError", "FutureWarning", "GeneratorExit", "IOError",
	"ImportError", "ImportWarning", "IndentationError", "IndexError",
	"InterruptedError", "IsADirectoryError", "KeyError", "KeyboardInterrupt",
	"LookupError", "MemoryError", "ModuleNotFoundError", "NameError",
	"NotADirectoryError", "NotImplementedError", "OSError", "OverflowError",
	"PendingDeprecationWarning", "PermissionError", "ProcessLookupError",
	"PythonFinalizationError", "RecursionError", "ReferenceError",
	"ResourceWarning", "RuntimeError", "RuntimeWarning", "StopAsyncIteration",
	"StopIteration", "SyntaxError", "SyntaxWarning", "SystemError",
	"SystemExit", "TabError", "TimeoutError", "TypeError", "UnboundLocalError",
	"UnicodeDecodeError", "UnicodeEncodeError", "UnicodeError",
	"UnicodeTranslateError", "UnicodeWarning", "UserWarning", "ValueError",
	"Warning", "ZeroDivisionError",
}

// IsKeyword reports whether s is a reserved keyword.
func IsKeyword(s string) bool { return Keywords[s] }

// IsBuiltin reports whether s names a builtin.
func IsBuiltin(s string) bool { return Builtins[s] }

// IsIdentifier reports whether s is lexically a valid identifier. Keywords
// pass this check; callers that need a usable name also test IsKeyword.
func IsIdentifier(s string) bool {
	if s == "" {
		return false
	}
	first, size := utf8.DecodeRuneInString(s)
	if first != '_' && !unicode.IsLetter(first) {
		return false
	}
	for _, r := range s[size:] {
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.Is(unicode.Mn, r) && !unicode.Is(unicode.Mc, r) {
			return false
		}
	}
	return true
}

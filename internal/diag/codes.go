package diag

// Error codes for the miniC back-end, grouped in ranges by kind of error.
// The E03xx codes are also raised by semantic analysis and by emission, so
// a Diagnostic's Phase, not its code, names the stage that raised it.
//
// Code ranges:
// E01xx: lexer/parser errors
// E02xx: semantic analysis errors
// E03xx: lowering errors
// E04xx: I/O and invocation errors
const (
	ErrSyntax = "E0100"

	ErrUndefinedVariable   = "E0200"
	ErrUndefinedFunction   = "E0201"
	ErrDuplicateDeclaration = "E0202"
	ErrArgumentCount        = "E0203"
	ErrArgumentType         = "E0204"
	ErrReturnType           = "E0205"
	ErrVoidValueUsed        = "E0206"
	ErrMissingFunction      = "E0207"
	ErrDuplicateExtern      = "E0208"

	ErrUnknownNode  = "E0300"
	ErrUnsupported  = "E0301"

	ErrReadFile  = "E0400"
	ErrWriteFile = "E0401"
)

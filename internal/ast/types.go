package ast

// Type is a surface-level miniC type: int, char, or void. The back-end's
// scalar types (i32, i8, i8*, void) are derived from these during
// lowering; the AST itself never needs a pointer type since alloca is the
// only thing that ever produces one, and alloca is introduced by the
// lowering pass, not written by the programmer.
type Type int

const (
	TypeInvalid Type = iota
	TypeVoid
	TypeInt
	TypeChar
)

func (t Type) String() string {
	switch t {
	case TypeVoid:
		return "void"
	case TypeInt:
		return "int"
	case TypeChar:
		return "char"
	default:
		return "invalid"
	}
}

// ParseType maps a surface type keyword to a Type, reporting ok=false for
// anything else (the grammar only ever emits "int", "char" or "void", but
// this stays defensive in case a future front-end revision loosens that).
func ParseType(keyword string) (Type, bool) {
	switch keyword {
	case "void":
		return TypeVoid, true
	case "int":
		return TypeInt, true
	case "char":
		return TypeChar, true
	default:
		return TypeInvalid, false
	}
}

// pkg/eval/object_kind.go
package eval

// ObjectKind represents the type of an object using an enum for faster comparisons.
type ObjectKind uint8

const (
	KindInvalid ObjectKind = iota
	KindNull
	KindBoolean
	KindInteger
	KindFloat
	KindString
	KindList
	KindDict
	KindFunction
	KindBuiltin
	KindInstance
	KindClass
	KindWidget
	KindReturnValue
	KindBreak
	KindContinue
	KindError
)

func (k ObjectKind) String() string {
	switch k {
	case KindNull:
		return "NoneType"
	case KindBoolean:
		return "bool"
	case KindInteger:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "str"
	case KindList:
		return "list"
	case KindDict:
		return "dict"
	case KindFunction:
		return "function"
	case KindBuiltin:
		return "builtin_function"
	case KindInstance:
		return "instance"
	case KindClass:
		return "class"
	case KindWidget:
		return "widget"
	case KindReturnValue:
		return "RETURN_VALUE"
	case KindBreak:
		return "BREAK"
	case KindContinue:
		return "CONTINUE"
	case KindError:
		return "ERROR"
	default:
		return "INVALID"
	}
}

// Integer cache for small integers (-128 to 1023); loop counters and
// indexes stay inside it.
const (
	minCachedInt = -128
	maxCachedInt = 1023
	intCacheSize = maxCachedInt - minCachedInt + 1
)

var (
	intCache [intCacheSize]*Integer

	NULL  *Null
	TRUE  *Boolean
	FALSE *Boolean
	ZERO  *Integer
	ONE   *Integer

	// Control-flow signals are singletons; loops compare by identity.
	BREAK    = &controlSignal{kind: KindBreak}
	CONTINUE = &controlSignal{kind: KindContinue}
)

// Initialize the integer cache and common singletons
func init() {
	for i := 0; i < intCacheSize; i++ {
		intCache[i] = &Integer{Value: int64(i) + minCachedInt}
	}

	NULL = &Null{}
	TRUE = &Boolean{Value: true}
	FALSE = &Boolean{Value: false}
	ZERO = NewInteger(0)
	ONE = NewInteger(1)
}

// NewInteger returns a cached integer for small values or allocates a new one.
func NewInteger(value int64) *Integer {
	if value >= minCachedInt && value <= maxCachedInt {
		return intCache[value-minCachedInt]
	}
	return &Integer{Value: value}
}

func NewFloat(value float64) *Float { return &Float{Value: value} }

func NewString(value string) *String { return &String{Value: value} }

func nativeBoolToBooleanObject(input bool) *Boolean {
	if input {
		return TRUE
	}
	return FALSE
}

package expr

import "fmt"

// Func identifies a built-in function.
type Func uint8

// Family groups functions by how they treat cardinality.
type Family uint8

const (
	// FamilyString functions map elementwise over vector input.
	FamilyString Family = iota
	// FamilyNull functions inspect nullness of the whole value.
	FamilyNull
	// FamilyAggregate functions reduce a vector to a scalar.
	FamilyAggregate
	// FamilyArray functions operate on arrays as values.
	FamilyArray
	// FamilyObject functions operate on objects.
	FamilyObject
	// FamilyType functions are type predicates over the whole value.
	FamilyType
)

const (
	FnContains Func = iota
	FnStartsWith
	FnEndsWith
	FnLower
	FnUpper
	FnTrim
	FnSubstring
	FnReplace
	FnSplit
	FnJoin
	FnRegexMatch
	FnRegexExtract
	FnRegexReplace

	FnIsNull
	FnIsNotNull
	FnNullIf

	FnSum
	FnCount
	FnMean
	FnMin
	FnMax
	FnAny
	FnAll
	FnFirst
	FnLast

	FnLength
	FnGet
	FnSlice
	FnArrayContains
	FnUnique
	FnSort
	FnReverse
	FnConcat

	FnField
	FnRename
	FnWithField
	FnWithout
	FnKeys
	FnValues

	FnTypeOf
	FnIsBool
	FnIsInt
	FnIsFloat
	FnIsNumeric
	FnIsString
	FnIsArray
	FnIsObject
	FnIsDate
	FnIsDateTime
	FnIsDuration

	numFuncs
)

// FuncInfo describes a built-in function's surface name and arity.
// MaxArgs of -1 means variadic.
type FuncInfo struct {
	Name    string
	Family  Family
	MinArgs int
	MaxArgs int
}

var funcTable = [numFuncs]FuncInfo{
	FnContains:     {"contains", FamilyString, 2, 2},
	FnStartsWith:   {"starts_with", FamilyString, 2, 2},
	FnEndsWith:     {"ends_with", FamilyString, 2, 2},
	FnLower:        {"lower", FamilyString, 1, 1},
	FnUpper:        {"upper", FamilyString, 1, 1},
	FnTrim:         {"trim", FamilyString, 1, 1},
	FnSubstring:    {"substring", FamilyString, 2, 3},
	FnReplace:      {"replace", FamilyString, 3, 3},
	FnSplit:        {"split", FamilyString, 2, 2},
	FnJoin:         {"join", FamilyString, 2, 2},
	FnRegexMatch:   {"regex_match", FamilyString, 2, 2},
	FnRegexExtract: {"regex_extract", FamilyString, 2, 3},
	FnRegexReplace: {"regex_replace", FamilyString, 3, 3},

	FnIsNull:    {"is_null", FamilyNull, 1, 1},
	FnIsNotNull: {"is_not_null", FamilyNull, 1, 1},
	FnNullIf:    {"null_if", FamilyNull, 2, 2},

	FnSum:   {"sum", FamilyAggregate, 1, 1},
	FnCount: {"count", FamilyAggregate, 1, 1},
	FnMean:  {"mean", FamilyAggregate, 1, 1},
	FnMin:   {"min", FamilyAggregate, 1, 1},
	FnMax:   {"max", FamilyAggregate, 1, 1},
	FnAny:   {"any", FamilyAggregate, 1, 1},
	FnAll:   {"all", FamilyAggregate, 1, 1},
	FnFirst: {"first", FamilyAggregate, 1, 1},
	FnLast:  {"last", FamilyAggregate, 1, 1},

	FnLength:        {"len", FamilyArray, 1, 1},
	FnGet:           {"get", FamilyArray, 2, 2},
	FnSlice:         {"slice", FamilyArray, 2, 3},
	FnArrayContains: {"array_contains", FamilyArray, 2, 2},
	FnUnique:        {"unique", FamilyArray, 1, 1},
	FnSort:          {"sort", FamilyArray, 1, 2},
	FnReverse:       {"reverse", FamilyArray, 1, 1},
	FnConcat:        {"concat", FamilyArray, 1, -1},

	FnField:     {"field", FamilyObject, 2, 2},
	FnRename:    {"rename", FamilyObject, 3, 3},
	FnWithField: {"with_field", FamilyObject, 3, 3},
	FnWithout:   {"without", FamilyObject, 2, -1},
	FnKeys:      {"keys", FamilyObject, 1, 1},
	FnValues:    {"values", FamilyObject, 1, 1},

	FnTypeOf:     {"type_of", FamilyType, 1, 1},
	FnIsBool:     {"is_bool", FamilyType, 1, 1},
	FnIsInt:      {"is_int", FamilyType, 1, 1},
	FnIsFloat:    {"is_float", FamilyType, 1, 1},
	FnIsNumeric:  {"is_numeric", FamilyType, 1, 1},
	FnIsString:   {"is_string", FamilyType, 1, 1},
	FnIsArray:    {"is_array", FamilyType, 1, 1},
	FnIsObject:   {"is_object", FamilyType, 1, 1},
	FnIsDate:     {"is_date", FamilyType, 1, 1},
	FnIsDateTime: {"is_datetime", FamilyType, 1, 1},
	FnIsDuration: {"is_duration", FamilyType, 1, 1},
}

var funcByName = func() map[string]Func {
	m := make(map[string]Func, numFuncs)
	for i, info := range funcTable {
		m[info.Name] = Func(i)
	}
	return m
}()

// Info returns the table entry for f.
func (f Func) Info() FuncInfo {
	if f >= numFuncs {
		return FuncInfo{Name: fmt.Sprintf("func(%d)", uint8(f))}
	}
	return funcTable[f]
}

// String returns the surface name of f.
func (f Func) String() string { return f.Info().Name }

// LookupFunc resolves a surface name.
func LookupFunc(name string) (Func, bool) {
	f, ok := funcByName[name]
	return f, ok
}

// IsPredicate reports whether f always yields a single boolean.
func (f Func) IsPredicate() bool {
	switch f {
	case FnIsNull, FnIsNotNull, FnAny, FnAll, FnArrayContains:
		return true
	}
	return f.Info().Family == FamilyType && f != FnTypeOf
}

package types

// The built-in classes every scenario can refer to by simple name
var (
	Object       *Class
	Serializable *Class
	Cloneable    *Class
	Comparable   *Class
	CharSequence *Class
	Number       *Class
	Integer      *Class
	Long         *Class
	Short        *Class
	Byte         *Class
	Double       *Class
	Float        *Class
	Character    *Class
	Boolean      *Class
	String       *Class
	Iterable     *Class
	Collection   *Class
	List         *Class
	Set          *Class
	ArrayList    *Class
	HashSet      *Class
	Map          *Class
	HashMap      *Class
	Enum         *Class

	PrimitiveInt     *Class
	PrimitiveLong    *Class
	PrimitiveShort   *Class
	PrimitiveByte    *Class
	PrimitiveDouble  *Class
	PrimitiveFloat   *Class
	PrimitiveChar    *Class
	PrimitiveBoolean *Class
)

var (
	builtins   = map[string]*Class{}
	boxing     = map[*Class]*Class{}
	unboxing   = map[*Class]*Class{}
	wideningTo = map[*Class][]*Class{}
)

func init() {
	Object = NewClass("java.lang.Object")
	Serializable = NewInterface("java.io.Serializable")
	Cloneable = NewInterface("java.lang.Cloneable")
	Comparable = NewInterface("java.lang.Comparable")
	Comparable.AddTypeParameter("T")
	CharSequence = NewInterface("java.lang.CharSequence")
	Number = NewClass("java.lang.Number").AddInterfaces(Serializable)

	comparableSelf := func(c *Class) *Class {
		return c.AddInterfaces(Serializable, NewParameterized(Comparable, c))
	}
	Integer = comparableSelf(NewClass("java.lang.Integer").SetSuperclass(Number))
	Long = comparableSelf(NewClass("java.lang.Long").SetSuperclass(Number))
	Short = comparableSelf(NewClass("java.lang.Short").SetSuperclass(Number))
	Byte = comparableSelf(NewClass("java.lang.Byte").SetSuperclass(Number))
	Double = comparableSelf(NewClass("java.lang.Double").SetSuperclass(Number))
	Float = comparableSelf(NewClass("java.lang.Float").SetSuperclass(Number))
	Character = comparableSelf(NewClass("java.lang.Character"))
	Boolean = comparableSelf(NewClass("java.lang.Boolean"))
	String = comparableSelf(NewClass("java.lang.String")).AddInterfaces(CharSequence)

	Iterable = NewInterface("java.lang.Iterable")
	Iterable.AddTypeParameter("T")

	Collection = NewInterface("java.util.Collection")
	collectionE := Collection.AddTypeParameter("E")
	Collection.AddInterfaces(NewParameterized(Iterable, collectionE))

	List = NewInterface("java.util.List")
	listE := List.AddTypeParameter("E")
	List.AddInterfaces(NewParameterized(Collection, listE))

	Set = NewInterface("java.util.Set")
	setE := Set.AddTypeParameter("E")
	Set.AddInterfaces(NewParameterized(Collection, setE))

	ArrayList = NewClass("java.util.ArrayList")
	arrayListE := ArrayList.AddTypeParameter("E")
	ArrayList.AddInterfaces(NewParameterized(List, arrayListE), Cloneable, Serializable)

	HashSet = NewClass("java.util.HashSet")
	hashSetE := HashSet.AddTypeParameter("E")
	HashSet.AddInterfaces(NewParameterized(Set, hashSetE), Cloneable, Serializable)

	Map = NewInterface("java.util.Map")
	Map.AddTypeParameter("K")
	Map.AddTypeParameter("V")

	HashMap = NewClass("java.util.HashMap")
	hashMapK := HashMap.AddTypeParameter("K")
	hashMapV := HashMap.AddTypeParameter("V")
	HashMap.AddInterfaces(NewParameterized(Map, hashMapK, hashMapV), Cloneable, Serializable)

	Enum = NewClass("java.lang.Enum")
	enumE := Enum.AddTypeParameter("E")
	enumE.SetBounds(NewParameterized(Enum, enumE))
	Enum.AddInterfaces(NewParameterized(Comparable, enumE), Serializable)

	PrimitiveInt = newPrimitive("int")
	PrimitiveLong = newPrimitive("long")
	PrimitiveShort = newPrimitive("short")
	PrimitiveByte = newPrimitive("byte")
	PrimitiveDouble = newPrimitive("double")
	PrimitiveFloat = newPrimitive("float")
	PrimitiveChar = newPrimitive("char")
	PrimitiveBoolean = newPrimitive("boolean")

	for primitive, boxed := range map[*Class]*Class{
		PrimitiveInt:     Integer,
		PrimitiveLong:    Long,
		PrimitiveShort:   Short,
		PrimitiveByte:    Byte,
		PrimitiveDouble:  Double,
		PrimitiveFloat:   Float,
		PrimitiveChar:    Character,
		PrimitiveBoolean: Boolean,
	} {
		boxing[primitive] = boxed
		unboxing[boxed] = primitive
	}

	wideningTo[PrimitiveByte] = []*Class{PrimitiveShort, PrimitiveInt, PrimitiveLong, PrimitiveFloat, PrimitiveDouble}
	wideningTo[PrimitiveShort] = []*Class{PrimitiveInt, PrimitiveLong, PrimitiveFloat, PrimitiveDouble}
	wideningTo[PrimitiveChar] = []*Class{PrimitiveInt, PrimitiveLong, PrimitiveFloat, PrimitiveDouble}
	wideningTo[PrimitiveInt] = []*Class{PrimitiveLong, PrimitiveFloat, PrimitiveDouble}
	wideningTo[PrimitiveLong] = []*Class{PrimitiveFloat, PrimitiveDouble}
	wideningTo[PrimitiveFloat] = []*Class{PrimitiveDouble}

	for _, c := range []*Class{
		Object, Serializable, Cloneable, Comparable, CharSequence, Number,
		Integer, Long, Short, Byte, Double, Float, Character, Boolean, String,
		Iterable, Collection, List, Set, ArrayList, HashSet, Map, HashMap, Enum,
		PrimitiveInt, PrimitiveLong, PrimitiveShort, PrimitiveByte,
		PrimitiveDouble, PrimitiveFloat, PrimitiveChar, PrimitiveBoolean,
	} {
		builtins[c.SimpleName()] = c
	}
}

// LookupBuiltin finds a built-in class by simple name, like "List" or "int"
func LookupBuiltin(name string) (*Class, bool) {
	c, ok := builtins[name]
	return c, ok
}

// Box returns the wrapper class of a primitive, and nil for anything else
func Box(t Type) *Class {
	c, ok := t.(*Class)
	if !ok {
		return nil
	}
	return boxing[c]
}

// Unbox returns the primitive of a wrapper class, and nil for anything else
func Unbox(t Type) *Class {
	c, ok := t.(*Class)
	if !ok {
		return nil
	}
	return unboxing[c]
}

// IsPrimitive reports whether t is one of the primitive types
func IsPrimitive(t Type) bool {
	c, ok := t.(*Class)
	return ok && c.IsPrimitive()
}

func isPrimitiveWidening(from, to *Class) bool {
	for _, c := range wideningTo[from] {
		if c == to {
			return true
		}
	}
	return false
}

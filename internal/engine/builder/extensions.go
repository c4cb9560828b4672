package builder

import "strings"

// internalTypes maps engine-provided class and interface names to the
// extension that ships them. Unresolved references to these names end up
// in the reserved "+<extension>" namespace instead of the default one.
var internalTypes = map[string]string{}

func init() {
	register := func(ext string, names ...string) {
		for _, name := range names {
			internalTypes[strings.ToLower(name)] = ext
		}
	}
	register("core",
		"stdClass", "Exception", "ErrorException", "Error", "TypeError", "ValueError",
		"ArithmeticError", "DivisionByZeroError", "ArgumentCountError", "CompileError",
		"ParseError", "UnhandledMatchError", "Throwable", "Traversable", "Iterator",
		"IteratorAggregate", "ArrayAccess", "Serializable", "Countable", "Stringable",
		"Closure", "Generator", "WeakMap", "WeakReference", "UnitEnum", "BackedEnum",
		"Attribute", "Fiber",
	)
	register("reflection",
		"Reflection", "Reflector", "ReflectionClass", "ReflectionObject", "ReflectionMethod",
		"ReflectionFunction", "ReflectionFunctionAbstract", "ReflectionParameter",
		"ReflectionProperty", "ReflectionException", "ReflectionExtension",
		"ReflectionNamedType", "ReflectionType", "ReflectionUnionType",
		"ReflectionClassConstant", "ReflectionEnum", "ReflectionAttribute",
	)
	register("spl",
		"ArrayObject", "ArrayIterator", "RecursiveArrayIterator", "AppendIterator",
		"CachingIterator", "CallbackFilterIterator", "DirectoryIterator", "EmptyIterator",
		"FilesystemIterator", "FilterIterator", "GlobIterator", "InfiniteIterator",
		"IteratorIterator", "LimitIterator", "MultipleIterator", "NoRewindIterator",
		"OuterIterator", "RecursiveDirectoryIterator", "RecursiveIterator",
		"RecursiveIteratorIterator", "RegexIterator", "SeekableIterator",
		"SplDoublyLinkedList", "SplFileInfo", "SplFileObject", "SplFixedArray", "SplHeap",
		"SplMaxHeap", "SplMinHeap", "SplObjectStorage", "SplObserver", "SplPriorityQueue",
		"SplQueue", "SplStack", "SplSubject", "SplTempFileObject",
		"BadFunctionCallException", "BadMethodCallException", "DomainException",
		"InvalidArgumentException", "LengthException", "LogicException",
		"OutOfBoundsException", "OutOfRangeException", "OverflowException",
		"RangeException", "RuntimeException", "UnderflowException",
		"UnexpectedValueException",
	)
	register("date",
		"DateTime", "DateTimeImmutable", "DateTimeInterface", "DateTimeZone",
		"DateInterval", "DatePeriod",
	)
	register("pdo", "PDO", "PDOStatement", "PDOException", "PDORow")
	register("json", "JsonSerializable", "JsonException")
}

func extensionOf(name string) (string, bool) {
	ext, ok := internalTypes[strings.ToLower(name)]
	return ext, ok
}

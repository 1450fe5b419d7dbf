package protocol

// DefaultCollation is the collation this client negotiates when the caller
// does not specify one.
const DefaultCollation = "utf8mb4_general_ci"

// collations maps a subset of MySQL/MariaDB collation names to their wire
// ids, trimmed to the entries exercised by this client's test scenarios; an
// unknown name is a configuration error the caller should fix, not
// something this client guesses at.
var collations = map[string]byte{
	"big5_chinese_ci":     1,
	"latin1_swedish_ci":   8,
	"ascii_general_ci":    11,
	"utf8_general_ci":     33,
	"binary":              63,
	"utf8mb4_general_ci":  45,
	"utf8mb4_bin":         46,
	"utf8mb4_unicode_ci":  224,
	"utf8mb4_0900_ai_ci":  255,
}

// CollationID returns the wire id for a collation name.
func CollationID(name string) (byte, bool) {
	id, ok := collations[name]
	return id, ok
}

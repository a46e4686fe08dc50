package redis

// Item is a value read from or written to the server.
type Item struct {
	Key   string
	Value []byte
	Found bool // false when the server returned a null bulk
}

// KeyType is the type of the value stored at a key, as reported by TYPE.
type KeyType int

const (
	TypeNone KeyType = iota
	TypeString
	TypeList
	TypeSet
	TypeZSet
	TypeHash
	TypeStream
)

var keyTypeNames = [...]string{
	TypeNone:   "none",
	TypeString: "string",
	TypeList:   "list",
	TypeSet:    "set",
	TypeZSet:   "zset",
	TypeHash:   "hash",
	TypeStream: "stream",
}

func (t KeyType) String() string {
	if t < 0 || int(t) >= len(keyTypeNames) {
		return "unknown"
	}
	return keyTypeNames[t]
}

// ParseKeyType maps a TYPE status reply to a KeyType. Unknown names map to
// TypeNone.
func ParseKeyType(s string) KeyType {
	for i, name := range keyTypeNames {
		if name == s {
			return KeyType(i)
		}
	}
	return TypeNone
}

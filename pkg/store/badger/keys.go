package badger

// Key layout
//
//	f:<name>        memfs.FileRecord (JSON)
//	a:<name>        accounts.Account (JSON)
//	meta:snapshot   header (JSON): id, version, taken_at and record counts
//
// Names may contain any byte except the protocol separators, so a name never
// collides with another prefix. Badger iterates keys in byte order, which
// makes Load return records sorted by name.
const (
	prefixFile    = "f:"
	prefixAccount = "a:"
	keyMeta       = "meta:snapshot"
)

func keyFile(name string) []byte { return []byte(prefixFile + name) }

func keyAccount(name string) []byte { return []byte(prefixAccount + name) }

package securestore

// Item is a new entry handed to ItemStore.Add.
type Item struct {
	Class   ItemClass
	Service string
	Key     string
	Data    []byte

	// Access and Auth are nil for unprotected items.
	Access *AccessPolicy
	Auth   *AuthContext
}

// Result is one match returned by ItemStore.CopyMatching. Data is only
// populated when the predicate asked for it; Key is empty when the store
// could not recover the account attribute.
type Result struct {
	Service string
	Key     string
	Data    []byte
	Access  *AccessPolicy
}

// ItemStore is the protected secret store the engine drives. Implementations
// own encryption, persistence and enforcement of access policies on read,
// and must be safe for concurrent use.
//
// Add reports StatusDuplicateItem when the identity already exists.
// Update replaces only the secret data of the matched item.
// CopyMatching and Delete report StatusItemNotFound when nothing matches.
type ItemStore interface {
	Add(item Item) Status
	Update(p Predicate, data []byte) Status
	CopyMatching(p Predicate) ([]Result, Status)
	Delete(p Predicate) Status
}

package securestore

// ItemClass is the kind of item stored. Only generic credentials are used.
type ItemClass string

const ClassGenericPassword ItemClass = "genp"

// MatchLimit bounds how many items a lookup may return.
type MatchLimit int

const (
	MatchLimitOne MatchLimit = iota
	MatchLimitAll
)

// Predicate locates items in an ItemStore. An empty Key matches every
// item in Service.
type Predicate struct {
	Class            ItemClass
	Service          string
	Key              string
	Limit            MatchLimit
	ReturnAttributes bool
	ReturnData       bool
}

// ForLookup matches exactly (service, key) and returns attributes and data.
func ForLookup(service, key string) Predicate {
	return Predicate{
		Class:            ClassGenericPassword,
		Service:          service,
		Key:              key,
		Limit:            MatchLimitOne,
		ReturnAttributes: true,
		ReturnData:       true,
	}
}

// ForLookupAll matches every item in service, returning attributes and data.
func ForLookupAll(service string) Predicate {
	return Predicate{
		Class:            ClassGenericPassword,
		Service:          service,
		Limit:            MatchLimitAll,
		ReturnAttributes: true,
		ReturnData:       true,
	}
}

// ForDeletion matches exactly (service, key).
func ForDeletion(service, key string) Predicate {
	return Predicate{
		Class:   ClassGenericPassword,
		Service: service,
		Key:     key,
		Limit:   MatchLimitOne,
	}
}

// ForDeletionAll matches every item in service.
func ForDeletionAll(service string) Predicate {
	return Predicate{
		Class:   ClassGenericPassword,
		Service: service,
		Limit:   MatchLimitAll,
	}
}

// Matches reports whether an item with the given identity satisfies p.
func (p Predicate) Matches(service, key string) bool {
	if p.Service != service {
		return false
	}
	return p.Key == "" || p.Key == key
}

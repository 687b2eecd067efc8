package testsupport

// Names is an in-memory NameService for tests that must not depend on the
// host's passwd and group databases.
type Names struct {
	Users  map[string]uint32
	Groups map[string]uint32
}

// LookupUser implements identity.NameService.
func (n Names) LookupUser(name string) (uint32, bool) {
	id, ok := n.Users[name]
	return id, ok
}

// LookupGroup implements identity.NameService.
func (n Names) LookupGroup(name string) (uint32, bool) {
	id, ok := n.Groups[name]
	return id, ok
}

package hash

// Hash turns a secret into a storable digest and verifies plaintext against it.
type Hash interface {
	Hash(str string) ([]byte, error)
	Verify(hashed, str string) bool
}

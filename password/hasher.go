package password

import "errors"

// ErrUnsupportedHash is returned when no configured scheme recognizes a
// stored hash.
var ErrUnsupportedHash = errors.New("unsupported password hash")

// Hasher is the one-way hashing contract the authenticator depends on.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
}

// Scheme is a Hasher that can recognize its own encoding.
type Scheme interface {
	Hasher
	Supports(encodedHash string) bool
}

// Multi hashes with the primary scheme and verifies with whichever scheme
// recognizes the stored hash.
type Multi struct {
	primary Scheme
	schemes []Scheme
}

// NewMulti returns a dispatcher. primary is consulted first.
func NewMulti(primary Scheme, others ...Scheme) *Multi {
	schemes := make([]Scheme, 0, len(others)+1)
	schemes = append(schemes, primary)
	for _, s := range others {
		if s != nil {
			schemes = append(schemes, s)
		}
	}
	return &Multi{primary: primary, schemes: schemes}
}

func (m *Multi) Hash(password string) (string, error) {
	return m.primary.Hash(password)
}

func (m *Multi) Verify(password, encodedHash string) (bool, error) {
	for _, s := range m.schemes {
		if s.Supports(encodedHash) {
			return s.Verify(password, encodedHash)
		}
	}
	return false, ErrUnsupportedHash
}

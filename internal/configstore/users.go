// Where: internal/configstore/users.go
// What: User records and API key staging over the configuration tree.
// Why: Implement ports.User against <system><user> entries.
package configstore

import (
	"fmt"
	"strings"

	"github.com/privatebox/create-apikey/internal/credential"
	"github.com/privatebox/create-apikey/internal/ports"
)

// KeyGenerator produces credential material and the hash that gets stored.
type KeyGenerator interface {
	Generate() (credential.Pair, error)
	Hash(secret string) (string, error)
}

// APIKey is a stored key entry. Secret holds the hash, never the plaintext.
type APIKey struct {
	Key    string
	Secret string
}

type user struct {
	node   *Node
	keys   KeyGenerator
	staged []APIKey
}

var _ ports.User = (*user)(nil)

func (u *user) Name() string {
	return u.node.ChildText("name")
}

// AddAPIKey generates a credential, stages its hashed form for the next
// SerializeToConfig and returns the plaintext pair.
func (u *user) AddAPIKey() (ports.Credential, error) {
	pair, err := u.keys.Generate()
	if err != nil {
		return ports.Credential{}, err
	}
	if pair.Key == "" || pair.Secret == "" {
		return ports.Credential{}, nil
	}
	hash, err := u.keys.Hash(pair.Secret)
	if err != nil {
		return ports.Credential{}, err
	}
	u.staged = append(u.staged, APIKey{Key: pair.Key, Secret: hash})
	return ports.Credential{Key: pair.Key, Secret: pair.Secret}, nil
}

// flush writes staged keys into <apikeys> and reports whether anything changed.
func (u *user) flush() bool {
	if len(u.staged) == 0 {
		return false
	}
	apikeys := u.node.Ensure("apikeys")
	for _, key := range u.staged {
		item := apikeys.Append("item", "")
		item.Append("key", key.Key)
		item.Append("secret", key.Secret)
	}
	u.staged = nil
	return true
}

// APIKeys lists the keys currently present in the tree for this user.
func (u *user) APIKeys() []APIKey {
	apikeys := u.node.Child("apikeys")
	if apikeys == nil {
		return nil
	}
	var out []APIKey
	for _, item := range apikeys.ChildrenNamed("item") {
		out = append(out, APIKey{Key: item.ChildText("key"), Secret: item.ChildText("secret")})
	}
	return out
}

func findUserNode(root *Node, name string) (*Node, error) {
	system := root.Child("system")
	if system == nil {
		return nil, fmt.Errorf("%w: missing <system> section", ErrInvalidDocument)
	}
	for _, node := range system.ChildrenNamed("user") {
		if strings.TrimSpace(node.ChildText("name")) == name {
			return node, nil
		}
	}
	return nil, nil
}

package redis

import "fmt"

const (
	// KeyPrefixSession is the prefix for session keys (value: user id)
	KeyPrefixSession = "shelf:session:"
	// KeyPrefixUserSessions is the prefix for the set of a user's token ids
	KeyPrefixUserSessions = "shelf:user-sessions:"
)

// SessionKey returns the Redis key for a session by token id
func SessionKey(tokenID string) string {
	return KeyPrefixSession + tokenID
}

// UserSessionsKey returns the key for the set of token ids owned by userID
func UserSessionsKey(userID string) string {
	return KeyPrefixUserSessions + userID
}

// ExtractTokenID extracts the token id from a session key
func ExtractTokenID(key string) (string, error) {
	if len(key) <= len(KeyPrefixSession) || key[:len(KeyPrefixSession)] != KeyPrefixSession {
		return "", fmt.Errorf("invalid session key: %s", key)
	}
	return key[len(KeyPrefixSession):], nil
}

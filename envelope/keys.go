package envelope

import (
	"crypto/rsa"

	"github.com/golang-jwt/jwt/v4"
)

// ParsePublicKey parses a PEM-encoded RSA public key, the verifier key
// named in §6.4's auth_public_key setting.
func ParsePublicKey(pem string) (*rsa.PublicKey, error) {
	return jwt.ParseRSAPublicKeyFromPEM([]byte(pem))
}

// ParsePrivateKey parses a PEM-encoded RSA private key, the signer key
// named in §6.4's callback_private_key setting.
func ParsePrivateKey(pem string) (*rsa.PrivateKey, error) {
	return jwt.ParseRSAPrivateKeyFromPEM([]byte(pem))
}

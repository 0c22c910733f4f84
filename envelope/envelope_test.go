package envelope

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testKeyPair(t *testing.T) (*rsa.PublicKey, *rsa.PrivateKey) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return &priv.PublicKey, priv
}

func TestSignVerifyRoundTrip(t *testing.T) {
	pub, priv := testKeyPair(t)
	env := New(true, pub, priv, 5*time.Minute)

	payload := map[string]interface{}{"refill_request_id": "REQ001", "status": "PROCESSING"}
	signed, err := env.Sign(payload)
	require.NoError(t, err)

	got, verr := env.VerifyBearer("Bearer " + string(signed))
	require.Nil(t, verr)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(got, &decoded))
	require.Equal(t, "REQ001", decoded["refill_request_id"])
}

func TestVerifyRejectsLifetimeExceeded(t *testing.T) {
	pub, priv := testKeyPair(t)
	env := New(true, pub, priv, 1*time.Minute)

	payload := map[string]interface{}{"x": 1}
	signed, err := env.Sign(payload)
	require.NoError(t, err)

	// Token carries a 1-minute lifetime; a verifier configured with a
	// tighter ceiling must reject it even though the signature is valid.
	strictEnv := New(true, pub, priv, 30*time.Second)
	_, verr := strictEnv.VerifyBearer("Bearer " + string(signed))
	require.NotNil(t, verr)
	require.Equal(t, "JWT_LIFETIME_EXCEEDED", string(verr.Code))
}

func TestVerifyBearerMissingHeader(t *testing.T) {
	pub, priv := testKeyPair(t)
	env := New(true, pub, priv, time.Minute)

	_, verr := env.VerifyBearer("")
	require.NotNil(t, verr)
	require.Equal(t, "MISSING_AUTHORIZATION_HEADER", string(verr.Code))
}

func TestVerifyBearerMalformedHeader(t *testing.T) {
	pub, priv := testKeyPair(t)
	env := New(true, pub, priv, time.Minute)

	_, verr := env.VerifyBearer("Basic abc123")
	require.NotNil(t, verr)
	require.Equal(t, "INVALID_AUTHORIZATION_FORMAT", string(verr.Code))

	_, verr = env.VerifyBearer("Bearer ")
	require.NotNil(t, verr)
	require.Equal(t, "MISSING_BEARER_TOKEN", string(verr.Code))
}

func TestPassThroughWhenDisabled(t *testing.T) {
	env := New(false, nil, nil, time.Minute)

	body := []byte(`{"refill_request_id":"REQ001"}`)
	got, verr := env.VerifyBody(body)
	require.Nil(t, verr)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(got, &decoded))
	require.Equal(t, "REQ001", decoded["refill_request_id"])

	signed, err := env.Sign(map[string]string{"ok": "true"})
	require.NoError(t, err)
	require.JSONEq(t, `{"ok":"true"}`, string(signed))
}

func TestVerifyInvalidToken(t *testing.T) {
	pub, priv := testKeyPair(t)
	env := New(true, pub, priv, time.Minute)

	_, verr := env.VerifyBearer("Bearer not-a-real-token")
	require.NotNil(t, verr)
	require.Equal(t, "INVALID_TOKEN", string(verr.Code))
}

package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"

	"causeconnect/pkg/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	ctypes "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "https://cognito-idp.us-east-1.amazonaws.com/us-east-1_test"
	testClientID = "admin-client"
)

type fakeCognito struct {
	idToken string
	err     error
	input   *cognitoidentityprovider.InitiateAuthInput
}

func (f *fakeCognito) InitiateAuth(_ context.Context, in *cognitoidentityprovider.InitiateAuthInput, _ ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.InitiateAuthOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	out := &cognitoidentityprovider.InitiateAuthOutput{}
	if f.idToken != "" {
		out.AuthenticationResult = &ctypes.AuthenticationResultType{IdToken: aws.String(f.idToken)}
	}
	return out, nil
}

type staticKeys struct {
	set jwk.Set
	url string
}

func (s *staticKeys) Lookup(_ context.Context, u string) (jwk.Set, error) {
	s.url = u
	return s.set, nil
}

type signingKey struct {
	private jwk.Key
	public  jwk.Set
}

func newSigningKey(t *testing.T) signingKey {
	t.Helper()

	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	private, err := jwk.Import(raw)
	require.NoError(t, err)
	require.NoError(t, private.Set(jwk.KeyIDKey, "test-key"))
	require.NoError(t, private.Set(jwk.AlgorithmKey, jwa.RS256()))

	public, err := jwk.PublicKeyOf(private)
	require.NoError(t, err)
	require.NoError(t, public.Set(jwk.KeyIDKey, "test-key"))
	require.NoError(t, public.Set(jwk.AlgorithmKey, jwa.RS256()))

	set := jwk.NewSet()
	require.NoError(t, set.AddKey(public))

	return signingKey{private: private, public: set}
}

func (k signingKey) idToken(t *testing.T, audience, email string) string {
	t.Helper()

	token, err := jwt.NewBuilder().
		Issuer(testIssuer).
		Audience([]string{audience}).
		IssuedAt(time.Now()).
		Expiration(time.Now().Add(time.Hour)).
		Claim("email", email).
		Build()
	require.NoError(t, err)

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.RS256(), k.private))
	require.NoError(t, err)
	return string(signed)
}

func TestCognitoAdminsAuthenticate(t *testing.T) {
	key := newSigningKey(t)
	cognito := &fakeCognito{idToken: key.idToken(t, testClientID, "Ops@Example.org")}
	keys := &staticKeys{set: key.public}
	admins := NewCognitoAdmins(cognito, keys, testClientID, testIssuer+"/")

	email, err := admins.Authenticate(context.Background(), "ops@example.org", "hunter22")
	require.NoError(t, err)
	require.Equal(t, "ops@example.org", email)
	require.Equal(t, testIssuer+"/.well-known/jwks.json", keys.url)
	require.Equal(t, ctypes.AuthFlowTypeUserPasswordAuth, cognito.input.AuthFlow)
	require.Equal(t, "ops@example.org", cognito.input.AuthParameters["USERNAME"])
}

func TestCognitoAdminsRejects(t *testing.T) {
	key := newSigningKey(t)

	tests := []struct {
		name    string
		cognito *fakeCognito
		email   string
	}{
		{name: "cognito refuses", cognito: &fakeCognito{err: errors.New("NotAuthorizedException")}, email: "ops@example.org"},
		{name: "challenge required", cognito: &fakeCognito{}, email: "ops@example.org"},
		{name: "wrong audience", cognito: &fakeCognito{idToken: key.idToken(t, "other-client", "ops@example.org")}, email: "ops@example.org"},
		{name: "email mismatch", cognito: &fakeCognito{idToken: key.idToken(t, testClientID, "someone@example.org")}, email: "ops@example.org"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			admins := NewCognitoAdmins(tt.cognito, &staticKeys{set: key.public}, testClientID, testIssuer)
			_, err := admins.Authenticate(context.Background(), tt.email, "hunter22")
			require.True(t, types.IsKind(err, types.KindUnauthorized), "got %v", err)
		})
	}
}

func TestCognitoAdminsRequiresCredentials(t *testing.T) {
	admins := NewCognitoAdmins(&fakeCognito{}, &staticKeys{}, testClientID, testIssuer)
	_, err := admins.Authenticate(context.Background(), "", "")
	require.True(t, types.IsKind(err, types.KindValidation))
}

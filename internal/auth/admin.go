package auth

import (
	"context"
	"fmt"
	"strings"

	"causeconnect/pkg/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	ctypes "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"
)

type cognitoAPI interface {
	InitiateAuth(ctx context.Context, params *cognitoidentityprovider.InitiateAuthInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.InitiateAuthOutput, error)
}

type keySets interface {
	Lookup(ctx context.Context, u string) (jwk.Set, error)
}

// CognitoAdmins checks admin credentials against a dedicated Cognito user
// pool. Only members of that pool can reach the admin login path.
type CognitoAdmins struct {
	client   cognitoAPI
	keys     keySets
	clientID string
	issuer   string
	jwksURL  string
}

func NewCognitoAdmins(client cognitoAPI, keys keySets, clientID, issuer string) *CognitoAdmins {
	issuer = strings.TrimSuffix(issuer, "/")
	return &CognitoAdmins{
		client:   client,
		keys:     keys,
		clientID: clientID,
		issuer:   issuer,
		jwksURL:  JWKSURL(issuer),
	}
}

func JWKSURL(issuer string) string {
	return fmt.Sprintf("%s/.well-known/jwks.json", strings.TrimSuffix(issuer, "/"))
}

// Authenticate returns the verified email of the admin on success.
func (a *CognitoAdmins) Authenticate(ctx context.Context, email, password string) (string, error) {
	if email == "" || password == "" {
		return "", types.ValidationError("email and password are required")
	}

	input := &cognitoidentityprovider.InitiateAuthInput{
		AuthFlow: ctypes.AuthFlowTypeUserPasswordAuth,
		ClientId: aws.String(a.clientID),
		AuthParameters: map[string]string{
			"USERNAME": email,
			"PASSWORD": password,
		},
	}

	resp, err := a.client.InitiateAuth(ctx, input)
	if err != nil {
		// NotAuthorizedException, UserNotConfirmedException, etc.
		return "", &types.Error{Kind: types.KindUnauthorized, Message: "invalid admin credentials", Err: err}
	}

	if resp.AuthenticationResult == nil || resp.AuthenticationResult.IdToken == nil {
		return "", types.UnauthorizedError("admin login requires an additional challenge")
	}

	set, err := a.keys.Lookup(ctx, a.jwksURL)
	if err != nil {
		return "", types.UpstreamError(err, "failed to fetch admin signing keys")
	}

	token, err := jwt.Parse(
		[]byte(aws.ToString(resp.AuthenticationResult.IdToken)),
		jwt.WithKeySet(set),
		jwt.WithValidate(true),
		jwt.WithIssuer(a.issuer),
		jwt.WithAudience(a.clientID),
	)
	if err != nil {
		return "", &types.Error{Kind: types.KindUnauthorized, Message: "invalid admin identity token", Err: err}
	}

	var verified string
	if err := token.Get("email", &verified); err != nil || verified == "" {
		return "", types.UnauthorizedError("admin identity token has no email")
	}

	if !strings.EqualFold(verified, strings.TrimSpace(email)) {
		return "", types.UnauthorizedError("admin identity does not match")
	}

	return strings.ToLower(verified), nil
}

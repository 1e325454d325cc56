package paramstore

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	getOut   *ssm.GetParameterOutput
	getErr   error
	lastName string
	withDec  bool
}

func (f *fakeAPI) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.lastName = *in.Name
	f.withDec = *in.WithDecryption
	return f.getOut, f.getErr
}

func strPtr(s string) *string { return &s }

func TestGetParameter_HappyPath(t *testing.T) {
	api := &fakeAPI{getOut: &ssm.GetParameterOutput{Parameter: &types.Parameter{
		Name: strPtr("/analytica/auth/username"), Value: strPtr("analyst"), Type: types.ParameterTypeSecureString,
	}}}
	client, err := New(api)
	require.NoError(t, err)
	v, err := client.GetParameter(context.Background(), " /analytica/auth/username ")
	require.NoError(t, err)
	require.Equal(t, "analyst", v)
	require.Equal(t, "/analytica/auth/username", api.lastName)
	require.True(t, api.withDec)
}

func TestGetParameter_MissingValue(t *testing.T) {
	api := &fakeAPI{getOut: &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: strPtr("p")}}}
	client, err := New(api)
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "p")
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing value")
}

func TestGetParameter_ApiError(t *testing.T) {
	client, err := New(&fakeAPI{getErr: errors.New("boom")})
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "p")
	require.ErrorContains(t, err, "boom")
}

func TestGetParameter_ClientNotInitialized(t *testing.T) {
	_, err := (&Client{}).GetParameter(context.Background(), "p")
	require.ErrorContains(t, err, "not initialized")
}

func TestGetParameter_EmptyName(t *testing.T) {
	client, err := New(&fakeAPI{})
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "  ")
	require.ErrorContains(t, err, "required")
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil)
	require.ErrorContains(t, err, "must not be nil")
}

// ---------------------------------------------------------------------------
// GetParameters
// ---------------------------------------------------------------------------

type mapGetter struct {
	vals  map[string]string
	calls atomic.Int32
}

func (m *mapGetter) GetParameter(_ context.Context, name string) (string, error) {
	m.calls.Add(1)
	v, ok := m.vals[name]
	if !ok {
		return "", fmt.Errorf("param not found: %s", name)
	}
	return v, nil
}

func TestGetParameters_All(t *testing.T) {
	g := &mapGetter{vals: map[string]string{"/a": "1", "/b": "2", "/c": "3", "/d": "4", "/e": "5"}}
	out, err := GetParameters(context.Background(), g, "/a", "/b", "/c", "/d", "/e")
	require.NoError(t, err)
	require.Equal(t, g.vals, out)
	require.EqualValues(t, 5, g.calls.Load())
}

func TestGetParameters_OneMissing(t *testing.T) {
	g := &mapGetter{vals: map[string]string{"/a": "1"}}
	_, err := GetParameters(context.Background(), g, "/a", "/missing")
	require.Error(t, err)
	require.Contains(t, err.Error(), "/missing")
}

func TestGetParameters_NilGetter(t *testing.T) {
	_, err := GetParameters(context.Background(), nil, "/a")
	require.ErrorContains(t, err, "must not be nil")
}

package command

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func fakeAuthEmulator(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"user_id": "anon-cli"}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"idToken": tok, "refreshToken": "r", "expiresIn": "3600", "localId": "anon-cli",
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func setEnv(t *testing.T, authURL string) string {
	t.Helper()
	t.Setenv("FIREBASE_API_KEY", "test-key")
	t.Setenv("FIREBASE_AUTH_DOMAIN", "demo.local")
	t.Setenv("FIREBASE_PROJECT_ID", "demo-project")
	t.Setenv("USE_FIREBASE_EMULATOR", "true")
	t.Setenv("AUTH_EMULATOR_HOST", authURL)
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("LOG_LEVEL", "error")
	return filepath.Join(t.TempDir(), "absent.env")
}

func TestDemoCommand(t *testing.T) {
	envFile := setEnv(t, fakeAuthEmulator(t).URL)

	var out bytes.Buffer
	a := App("dinosaurs", "test", DemoCommand(), ServeCommand(), PublishCommand())
	a.Writer = &out
	require.NoError(t, a.Run([]string{"dinosaurs", "--env-file", envFile, "demo"}))

	require.Contains(t, out.String(), "Created doc id:")
	require.Contains(t, out.String(), "[DELETE]")
	require.Contains(t, out.String(), "Done.")
}

func TestDemoCommand_MissingCredentials(t *testing.T) {
	envFile := setEnv(t, fakeAuthEmulator(t).URL)
	t.Setenv("FIREBASE_API_KEY", "")

	a := App("dinosaurs", "test", DemoCommand())
	a.Writer = &bytes.Buffer{}
	err := a.Run([]string{"dinosaurs", "--env-file", envFile, "demo"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "FIREBASE_API_KEY")
}

func TestPublishCommand_RequiresEndpoint(t *testing.T) {
	envFile := setEnv(t, fakeAuthEmulator(t).URL)
	t.Setenv("MINIO_ENDPOINT", "")

	a := App("dinosaurs", "test", PublishCommand())
	a.Writer = &bytes.Buffer{}
	require.Error(t, a.Run([]string{"dinosaurs", "--env-file", envFile, "publish", "--dir", t.TempDir()}))
}

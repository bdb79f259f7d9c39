package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/nutrisnap/internal/config"
	domain "github.com/bryanwahyu/nutrisnap/internal/domain/meal"
	"github.com/bryanwahyu/nutrisnap/internal/infra/history"
)

type cliTestEnv struct {
	configPath  string
	historyPath string
	photoPath   string
}

func setupCLITestEnv(t *testing.T, modelURL string) *cliTestEnv {
	t.Helper()
	base := t.TempDir()
	env := &cliTestEnv{
		configPath:  filepath.Join(base, "config.yaml"),
		historyPath: filepath.Join(base, "history.json"),
		photoPath:   filepath.Join(base, "meal.jpg"),
	}

	cfg := "history:\n  driver: file\n  path: " + env.historyPath + "\n"
	if modelURL != "" {
		cfg += "ai:\n  baseURL: " + modelURL + "\n  timeoutSeconds: 5\n"
	}
	require.NoError(t, os.WriteFile(env.configPath, []byte(cfg), 0o644))

	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for i := range img.Pix {
		img.Pix[i] = 0xc8
	}
	img.Set(0, 0, color.Black)
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	require.NoError(t, os.WriteFile(env.photoPath, buf.Bytes(), 0o644))

	for _, k := range []string{"OPENROUTER_API_KEY", "NUTRISNAP_BASE_URL", "NUTRISNAP_MODEL", "NUTRISNAP_HISTORY_DRIVER", "NUTRISNAP_HISTORY_PATH", "NUTRISNAP_HISTORY_DSN", "NUTRISNAP_PORT", "NUTRISNAP_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
	return env
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func modelServer(t *testing.T, content string) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-cli",
			"object":  "chat.completion",
			"choices": []map[string]any{{"index": 0, "message": map[string]any{"role": "assistant", "content": content}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAnalyzeCommandPrintsCardAndRecords(t *testing.T) {
	srv := modelServer(t, `{"is_food":true,"name":"Apple","health_score":90,"calories":95,"carbs":25,"ingredients":["apple"],"short_report":"A great low-calorie snack."}`)
	env := setupCLITestEnv(t, srv.URL)
	t.Setenv("OPENROUTER_API_KEY", "sk-test")

	out, err := runCLI(t, "--config", env.configPath, "analyze", env.photoPath, "--user", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "Apple")
	assert.Contains(t, out, "HEALTH SCORE: 90/100")
	assert.Contains(t, out, "Ingredients: apple")
	assert.Contains(t, out, "25g")

	entries, err := history.NewFileStore(env.historyPath).Query(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 95, entries[0].Calories)
}

func TestAnalyzeCommandNotFood(t *testing.T) {
	srv := modelServer(t, `{"is_food":false,"short_report":"That's a keyboard."}`)
	env := setupCLITestEnv(t, srv.URL)
	t.Setenv("OPENROUTER_API_KEY", "sk-test")

	out, err := runCLI(t, "--config", env.configPath, "analyze", env.photoPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Analysis Result")
	assert.Contains(t, out, "That's a keyboard.")
	assert.NotContains(t, out, "HEALTH SCORE")
	assert.NoFileExists(t, env.historyPath)
}

func TestAnalyzeCommandMissingCredential(t *testing.T) {
	env := setupCLITestEnv(t, "")
	_, err := runCLI(t, "--config", env.configPath, "analyze", env.photoPath, "-u", "alice")
	assert.ErrorContains(t, err, "Missing credentials")
}

func TestAnalyzeCommandFailureIsGeneric(t *testing.T) {
	srv := modelServer(t, "not json at all")
	env := setupCLITestEnv(t, srv.URL)
	t.Setenv("OPENROUTER_API_KEY", "sk-test")

	_, err := runCLI(t, "--config", env.configPath, "analyze", env.photoPath, "-u", "alice")
	require.Error(t, err)
	assert.Equal(t, domain.FailureMessage, err.Error())
	assert.NoFileExists(t, env.historyPath)
}

func TestHistoryCommand(t *testing.T) {
	env := setupCLITestEnv(t, "")
	store := history.NewFileStore(env.historyPath)
	ctx := context.Background()
	for _, name := range []string{"Apple", "Salad"} {
		_, err := store.Append(ctx, "alice", domain.AnalysisRecord{IsFood: true, Name: name, HealthScore: 80, Calories: 100})
		require.NoError(t, err)
	}

	out, err := runCLI(t, "--config", env.configPath, "history", "alice")
	require.NoError(t, err)
	assert.Less(t, strings.Index(out, "Salad"), strings.Index(out, "Apple"))
	assert.Contains(t, out, "80/100")

	out, err = runCLI(t, "--config", env.configPath, "history", "alice", "--json", "-n", "1")
	require.NoError(t, err)
	var entries []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "Salad", entries[0]["name"])

	out, err = runCLI(t, "--config", env.configPath, "history", "bob")
	require.NoError(t, err)
	assert.Contains(t, out, "No meals tracked yet.")

	out, err = runCLI(t, "--config", env.configPath, "history", "Guest")
	require.NoError(t, err)
	assert.Contains(t, out, "Log in with a username")
}

func TestLoggerLevelFollowsConfigUnlessFlagSet(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Level = "debug"
	cc := &commandContext{cfg: cfg}

	cmd := &cobra.Command{Use: "nutrisnap"}
	cmd.Flags().StringVar(&cc.logLevel, "log-level", "", "")
	var stderr bytes.Buffer
	cmd.SetErr(&stderr)

	cc.logger(cmd).Debug("from config level")
	assert.Contains(t, stderr.String(), "from config level")

	stderr.Reset()
	require.NoError(t, cmd.Flags().Set("log-level", "error"))
	cc.logger(cmd).Warn("below flag level")
	assert.Empty(t, stderr.String())
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/pricofy/translation-gateway/internal/config"
	"github.com/pricofy/translation-gateway/internal/engine"
)

// upperLambda stands in for the opus translator functions.
type upperLambda struct{}

func (upperLambda) Invoke(_ context.Context, in *lambda.InvokeInput, _ ...func(*lambda.Options)) (*lambda.InvokeOutput, error) {
	text := gjson.GetBytes(in.Payload, "chunks.0.0").String()
	body, _ := json.Marshal(map[string]any{"translations": [][]string{{strings.ToUpper(text)}}})
	return &lambda.InvokeOutput{StatusCode: 200, Payload: body}, nil
}

// setup writes a config file selecting the opus backend and returns its
// path and the preference file path.
func setup(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	prefs := filepath.Join(dir, "prefs.yaml")
	cfg := filepath.Join(dir, "config.yaml")
	content := "default_backend: opus\npreferences_file: " + prefs + "\nlogging:\n  level: error\n"
	require.NoError(t, os.WriteFile(cfg, []byte(content), 0o600))
	return cfg, prefs
}

// executeCommand runs the root command with args and returns captured output
func executeCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(engine.WithLambdaClient(upperLambda{}))
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(new(bytes.Buffer))
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestText(t *testing.T) {
	cfg, prefs := setup(t)

	out, err := executeCommand(t, "", "--config", cfg, "text", "--from", "es", "--to", "en", "hola", "mundo")
	require.NoError(t, err)
	assert.Equal(t, "HOLA MUNDO\n", out)

	store, err := config.NewViperStore(prefs)
	require.NoError(t, err)
	got, err := store.GetConfig(context.Background(), config.KeyHistory)
	require.NoError(t, err)
	assert.Contains(t, got[config.KeyHistory], "es~en")
}

func TestText_StdinLinesAndBack(t *testing.T) {
	cfg, _ := setup(t)

	out, err := executeCommand(t, "hola\nadiós\n", "-c", cfg, "text", "-f", "es", "-t", "en", "--lines", "--back")
	require.NoError(t, err)
	assert.Equal(t, "HOLA\n  back: HOLA\nADIÓS\n  back: ADIÓS\n", out)
}

func TestText_JSON(t *testing.T) {
	cfg, _ := setup(t)

	out, err := executeCommand(t, "", "-c", cfg, "text", "-f", "de", "-t", "en", "--json", "hallo")
	require.NoError(t, err)
	assert.Equal(t, "HALLO", gjson.Get(out, "translations.0").String())
	assert.Equal(t, "opus", gjson.Get(out, "details.0.backend").String())
}

func TestText_Errors(t *testing.T) {
	cfg, _ := setup(t)

	_, err := executeCommand(t, "  \n", "-c", cfg, "text")
	assert.EqualError(t, err, "nothing to translate")

	_, err = executeCommand(t, "", "-c", cfg, "text", "--backend", "nope", "hola")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown backend")
}

func TestBackends(t *testing.T) {
	cfg, _ := setup(t)

	out, err := executeCommand(t, "", "-c", cfg, "backends")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Greater(t, len(lines), 1)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	for _, line := range lines[1:] {
		fields := strings.Fields(line)
		if fields[0] == "opus" {
			assert.Equal(t, "*", fields[len(fields)-1])
		}
	}
	assert.Contains(t, out, "bing")
}

func TestCredentialsRefresh(t *testing.T) {
	cfg, _ := setup(t)

	out, err := executeCommand(t, "", "-c", cfg, "credentials", "refresh", "google")
	require.NoError(t, err)
	assert.Equal(t, "google needs no credential\n", out)

	_, err = executeCommand(t, "", "-c", cfg, "credentials", "refresh", "nope")
	assert.Error(t, err)

	_, err = executeCommand(t, "", "-c", cfg, "credentials", "refresh")
	assert.Error(t, err)
}

func TestInputTexts(t *testing.T) {
	tests := []struct {
		name    string
		stdin   string
		args    []string
		perLine bool
		want    []string
		wantErr bool
	}{
		{name: "args are joined", args: []string{"a", "b"}, want: []string{"a b"}},
		{name: "stdin without trailing newline", stdin: "hello\n", want: []string{"hello"}},
		{name: "stdin per line", stdin: "a\nb\n", perLine: true, want: []string{"a", "b"}},
		{name: "blank input", stdin: " \n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := inputTexts(strings.NewReader(tt.stdin), tt.args, tt.perLine)
			if tt.wantErr {
				if err == nil {
					t.Errorf("inputTexts() should have returned error")
				}
				return
			}
			if err != nil {
				t.Fatalf("inputTexts() unexpected error: %v", err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

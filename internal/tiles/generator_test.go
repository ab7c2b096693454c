package tiles

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gen.sh")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}

func TestScriptGenerator_Success(t *testing.T) {
	requireShell(t)
	base := t.TempDir()
	script := writeScript(t, `#!/bin/sh
mkdir -p tiles
printf '{"lst_tile_url":"l","anomaly_tile_url":"a","absolute_anomaly_tile_url":"b"}' > tiles/tile_config_$2.json
echo "done $2"
`)
	gen := NewScriptGenerator(ScriptGeneratorConfig{Command: "sh", Script: script, Dir: base, Logger: zerolog.Nop()})

	res, err := gen.Generate(context.Background(), 2025)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "done 2025\n", res.Stdout)

	s, _ := newTestStore(t, base, gen)
	cfg, err := s.TriggerGenerationAndLoad(context.Background(), 2026)
	require.NoError(t, err)
	assert.Equal(t, "l", cfg.LSTTileURL)
}

func TestScriptGenerator_NonZeroExit(t *testing.T) {
	requireShell(t)
	script := writeScript(t, `#!/bin/sh
echo "no credentials for year $2" >&2
exit 3
`)
	gen := NewScriptGenerator(ScriptGeneratorConfig{Command: "sh", Script: script, Logger: zerolog.Nop()})

	res, err := gen.Generate(context.Background(), 2025)
	require.Error(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "no credentials for year 2025\n", res.Stderr)
}

func TestScriptGenerator_MissingCommand(t *testing.T) {
	gen := NewScriptGenerator(ScriptGeneratorConfig{Command: "definitely-not-a-real-binary-xyz", Logger: zerolog.Nop()})

	_, err := gen.Generate(context.Background(), 2025)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "starting generator")
}

func TestScriptGenerator_Timeout(t *testing.T) {
	requireShell(t)
	script := writeScript(t, "#!/bin/sh\nexec sleep 5\n")
	gen := NewScriptGenerator(ScriptGeneratorConfig{
		Command: "sh",
		Script:  script,
		Timeout: 100 * time.Millisecond,
		Logger:  zerolog.Nop(),
	})

	_, err := gen.Generate(context.Background(), 2025)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not finish")
}

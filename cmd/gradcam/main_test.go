package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/gradcam/internal/config"
)

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// workspace writes a config for a 32x32 network rooted in a temp dir.
func workspace(t *testing.T) (dir, cfgPath string) {
	t.Helper()
	for _, k := range []string{config.EnvAddr, config.EnvWeights, config.EnvOutputDir, config.EnvLogLevel, config.EnvDeviceLog} {
		t.Setenv(k, "")
	}
	dir = t.TempDir()
	cfgPath = filepath.Join(dir, "gradcam.yaml")
	body := fmt.Sprintf(`model:
  weights_path: %s
  image_size: 32
explain:
  output_dir: %s
logging:
  level: error
parallel:
  workers: 1
`, filepath.Join(dir, "weights.safetensors"), filepath.Join(dir, "output"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o600))
	return dir, cfgPath
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 4), uint8(y * 4), 128, 255})
		}
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func TestVersion(t *testing.T) {
	out, _, err := run(t, "version", "--config", "/does/not/exist.yaml")
	require.NoError(t, err)
	assert.Equal(t, "gradcam "+version+"\n", out)
}

func TestWeightsInitInspectExplain(t *testing.T) {
	dir, cfgPath := workspace(t)

	out, _, err := run(t, "--config", cfgPath, "weights", "init", "--seed", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "random-5")
	assert.FileExists(t, filepath.Join(dir, "weights.safetensors"))

	out, _, err = run(t, "--config", cfgPath, "weights", "inspect")
	require.NoError(t, err)
	assert.Contains(t, out, "version random-5")
	assert.Contains(t, out, "input 32x32")

	img := filepath.Join(dir, "images", "human", "a.png")
	writePNG(t, img, 40, 30)

	out, _, err = run(t, "--config", cfgPath, "explain", img)
	require.NoError(t, err)
	fields := strings.Split(strings.TrimSpace(out), "\t")
	require.Len(t, fields, 3)
	assert.Equal(t, img, fields[0])
	assert.Contains(t, []string{"ai", "human"}, fields[1])
	assert.Equal(t, filepath.Join(dir, "output", "human_a.png"), fields[2])
	assert.FileExists(t, fields[2])
}

func TestExplain_FailuresReported(t *testing.T) {
	dir, cfgPath := workspace(t)
	_, _, err := run(t, "--config", cfgPath, "weights", "init")
	require.NoError(t, err)

	good := filepath.Join(dir, "imgs", "g.png")
	writePNG(t, good, 16, 16)
	missing := filepath.Join(dir, "imgs", "missing.png")

	out, errOut, err := run(t, "--config", cfgPath, "explain", "--group", "batch", "--target", "ai", good, missing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 images failed")
	assert.Contains(t, out, "batch_g.png")
	assert.Contains(t, errOut, "missing.png")
}

func TestExplain_MissingWeights(t *testing.T) {
	dir, cfgPath := workspace(t)
	img := filepath.Join(dir, "x", "a.png")
	writePNG(t, img, 8, 8)

	_, _, err := run(t, "--config", cfgPath, "explain", img)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestExplain_BadTarget(t *testing.T) {
	_, cfgPath := workspace(t)
	_, _, err := run(t, "--config", cfgPath, "explain", "--target", "robot", "a.png")
	assert.Error(t, err)
}

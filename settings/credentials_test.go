package settings

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestDataDirAndFilePathUseXDGDataHome(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tmp)

	dir, err := DataDir()
	if err != nil {
		t.Fatalf("DataDir() error: %v", err)
	}
	if want := filepath.Join(tmp, "potranslate"); dir != want {
		t.Fatalf("DataDir() = %q, want %q", dir, want)
	}
	if got, want := FilePath(), filepath.Join(tmp, "potranslate", "auth.json"); got != want {
		t.Fatalf("FilePath() = %q, want %q", got, want)
	}
}

func TestSaveLoadRemoveLifecycle(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tmp)

	if err := SetAPIKey("deepseek", "sk-deepseek-123456", ""); err != nil {
		t.Fatalf("SetAPIKey(deepseek) error: %v", err)
	}
	if err := SetAPIKey("custom", "custom-key-7890", "http://localhost:8080/v1/chat/completions"); err != nil {
		t.Fatalf("SetAPIKey(custom) error: %v", err)
	}

	info, err := os.Stat(filepath.Join(tmp, "potranslate", "auth.json"))
	if err != nil {
		t.Fatalf("stat auth.json: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("auth.json mode = %o, want 600", info.Mode().Perm())
	}

	if got := GetAPIKey("deepseek"); got != "sk-deepseek-123456" {
		t.Fatalf("GetAPIKey(deepseek) = %q", got)
	}
	if got := GetBaseURL("custom"); got != "http://localhost:8080/v1/chat/completions" {
		t.Fatalf("GetBaseURL(custom) = %q", got)
	}
	if got := Load().IDs(); !reflect.DeepEqual(got, []string{"custom", "deepseek"}) {
		t.Fatalf("IDs() = %v", got)
	}

	if err := Remove("deepseek"); err != nil {
		t.Fatalf("Remove(deepseek) error: %v", err)
	}
	if got := GetAPIKey("deepseek"); got != "" {
		t.Fatalf("deepseek key still present: %q", got)
	}
	if err := Remove("never-stored"); err != nil {
		t.Fatalf("Remove(unknown) error: %v", err)
	}

	if err := RemoveAll(); err != nil {
		t.Fatalf("RemoveAll() error: %v", err)
	}
	if len(Load()) != 0 {
		t.Fatalf("store not empty after RemoveAll")
	}
	if err := RemoveAll(); err != nil {
		t.Fatalf("RemoveAll() on missing file error: %v", err)
	}
}

func TestSetAPIKeyRejectsEmptyKey(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	if err := SetAPIKey("openai", "", ""); err == nil {
		t.Fatal("SetAPIKey with empty key succeeded")
	}
}

func TestLoadIgnoresInvalidFile(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tmp)

	dir := filepath.Join(tmp, "potranslate")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "auth.json"), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if store := Load(); len(store) != 0 {
		t.Fatalf("Load() on invalid file = %v, want empty", store)
	}

	if err := os.WriteFile(filepath.Join(dir, "auth.json"), []byte(`{"qwen":{"key":""},"zhipu":null}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if store := Load(); len(store) != 0 {
		t.Fatalf("Load() kept empty entries: %v", store)
	}
}

func TestResolveAPIKeyOrder(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	if err := SetAPIKey("moonshot", "stored-key-000", ""); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		flag, env, want string
	}{
		{"flag-key", "env-key", "flag-key"},
		{"", "env-key", "env-key"},
		{"", "", "stored-key-000"},
	}
	for _, tt := range tests {
		if got := ResolveAPIKey("moonshot", tt.flag, tt.env); got != tt.want {
			t.Errorf("ResolveAPIKey(%q, %q) = %q, want %q", tt.flag, tt.env, got, tt.want)
		}
	}
	if got := ResolveAPIKey("openai", "", ""); got != "" {
		t.Errorf("ResolveAPIKey for unknown provider = %q", got)
	}
}

func TestMaskKey(t *testing.T) {
	tests := map[string]string{
		"short":            "****",
		"12345678":         "****",
		"sk-abcdefghijklm": "sk-a...jklm",
	}
	for in, want := range tests {
		if got := MaskKey(in); got != want {
			t.Errorf("MaskKey(%q) = %q, want %q", in, got, want)
		}
	}
}

package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"

	"github.com/forgedb/forgedb/internal/testutil"
)

func TestLoadConfigDefault(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir(".."); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	LoadConfig("")
	if AppConfig.Storage.HashAlgorithm != "sha2-256" {
		t.Fatalf("unexpected hash algorithm: %s", AppConfig.Storage.HashAlgorithm)
	}
}

func TestLoadConfigOverride(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir(".."); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	LoadConfig("bootstrap")
	if AppConfig.Storage.HashAlgorithm != "blake3" {
		t.Fatalf("expected hash algorithm override to blake3, got %s", AppConfig.Storage.HashAlgorithm)
	}
	if AppConfig.Storage.MemtableFlushThresholdBytes != 8388608 {
		t.Fatalf("expected flush threshold override")
	}
}

func TestLoadConfigSandbox(t *testing.T) {
	sb, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("NewSandbox failed: %v", err)
	}
	defer sb.Cleanup()

	if err := os.Mkdir(sb.Path("config"), 0700); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}

	data := []byte("storage:\n  data_dir: /tmp/sandboxed\n  hash_algorithm: blake3\n")
	if err := sb.WriteFile("config/default.yaml", data, 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir(sb.Root); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	LoadConfig("")

	if AppConfig.Storage.DataDir != "/tmp/sandboxed" {
		t.Fatalf("expected data dir /tmp/sandboxed, got %s", AppConfig.Storage.DataDir)
	}
	if AppConfig.Storage.HashAlgorithm != "blake3" {
		t.Fatalf("expected hash algorithm blake3, got %s", AppConfig.Storage.HashAlgorithm)
	}
}

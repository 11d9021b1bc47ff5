package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/gradebook/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.Store, convey.ShouldEqual, config.StoreMemory)
				convey.So(cfg.QueueSize, convey.ShouldEqual, 10_000)
				convey.So(cfg.GradeScale, convey.ShouldEqual, 20)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("GRADEBOOK_ADDR", ":8080")
			_ = os.Setenv("GRADEBOOK_QUEUE_SIZE", "500")
			_ = os.Setenv("GRADEBOOK_WORKER_COUNT", "3")
			_ = os.Setenv("GRADEBOOK_GRADE_SCALE", "100")
			_ = os.Setenv("GRADEBOOK_DEMO_SEED", "false")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 500)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 3)
				convey.So(cfg.GradeScale, convey.ShouldEqual, 100)
				convey.So(cfg.DemoSeed, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			tmpFile := createTempConfigFile(t, `
addr: ":9090"
queue_size: 300
worker_count: 4
pass_ratio: 0.6
cors_origins: "https://school.test"
`)
			_ = os.Setenv("GRADEBOOK_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 300)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
				convey.So(cfg.PassRatio, convey.ShouldEqual, 0.6)
				convey.So(cfg.AllowedOrigins(), convey.ShouldResemble, []string{"https://school.test"})
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			tmpFile := createTempConfigFile(t, `
addr: ":9090"
queue_size: 300
worker_count: 4
`)
			_ = os.Setenv("GRADEBOOK_CONFIG", tmpFile)
			_ = os.Setenv("GRADEBOOK_ADDR", ":8080")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 300)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(t, `invalid: yaml: content: [`)
			_ = os.Setenv("GRADEBOOK_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the config file does not exist", func() {
			_ = os.Setenv("GRADEBOOK_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the result fails validation", func() {
			_ = os.Setenv("GRADEBOOK_STORE", "postgres")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then the validation error is returned", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a dotenv file is named explicitly", func() {
			dir := t.TempDir()
			envFile := filepath.Join(dir, "test.env")
			convey.So(os.WriteFile(envFile, []byte("GRADEBOOK_WORKER_COUNT=7\n"), 0o600), convey.ShouldBeNil)
			_ = os.Setenv("GRADEBOOK_ENV_FILE", envFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then its variables are applied", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 7)
			})
		})

		convey.Convey("When the named dotenv file is missing", func() {
			_ = os.Setenv("GRADEBOOK_ENV_FILE", filepath.Join(t.TempDir(), "none.env"))
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
		})
	})
}

// clearConfigEnvVars unsets every GRADEBOOK_ variable.
func clearConfigEnvVars() {
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				key := kv[:i]
				if len(key) > len(config.EnvPrefix) && key[:len(config.EnvPrefix)] == config.EnvPrefix {
					_ = os.Unsetenv(key)
				}
				break
			}
		}
	}
}

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

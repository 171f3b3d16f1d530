package util

import (
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func TestWrapString(t *testing.T) {
	text := strings.Repeat("word ", 30)
	for _, line := range strings.Split(WrapString(text), "\n") {
		if len(line) > Wrap {
			t.Errorf("line %q is longer than %d characters", line, Wrap)
		}
	}
	if got := WrapString("  short   text "); got != "short text" {
		t.Errorf("WrapString() = %q", got)
	}
}

func TestClientConfigFromEnv(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("WALKV_ENDPOINT", "10.0.0.1:9000")
	t.Setenv("WALKV_RETRIES", "7")

	cmd := &cobra.Command{Use: "test"}
	SetupRPCClientFlags(cmd)
	InitConfig()
	if err := BindCommandFlags(cmd); err != nil {
		t.Fatalf("BindCommandFlags failed: %v", err)
	}
	if err := viper.BindPFlags(cmd.PersistentFlags()); err != nil {
		t.Fatalf("BindPFlags failed: %v", err)
	}

	config := GetClientConfig()
	if config.Endpoint != "10.0.0.1:9000" || config.RetryCount != 7 || config.TimeoutSecond != 10 {
		t.Errorf("GetClientConfig() = %+v", config)
	}
}

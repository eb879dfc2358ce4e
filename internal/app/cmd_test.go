package app

import (
	"io"
	"testing"
	"time"
)

func TestNewRootCommand_Subcommands(t *testing.T) {
	root := NewRootCommand(io.Discard)

	for _, name := range []string{"serve", "migrate", "healthcheck", "watch"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("サブコマンド %q が見つからない: %v", name, err)
		}
	}
	if root.RunE == nil {
		t.Error("サブコマンド省略時は serve として起動すること")
	}
}

func TestWatchCommand_Defaults(t *testing.T) {
	cmd := newWatchCommand(io.Discard)

	tests := map[string]string{
		"url":  "http://localhost:8080",
		"poll": "7s",
		"tick": "1s",
	}
	for name, want := range tests {
		if got := cmd.Flags().Lookup(name).Value.String(); got != want {
			t.Errorf("--%s = %q, want %q", name, got, want)
		}
	}
}

func TestWatchCommand_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("SOIREE_WATCH_URL", "https://soiree.example.com")
	t.Setenv("SOIREE_WATCH_POLL", "3s")

	cmd := newWatchCommand(io.Discard)

	if got := cmd.Flags().Lookup("url").Value.String(); got != "https://soiree.example.com" {
		t.Errorf("--url = %q", got)
	}
	if got := cmd.Flags().Lookup("poll").Value.String(); got != "3s" {
		t.Errorf("--poll = %q", got)
	}
}

func TestWatchCommand_FlagBeatsEnv(t *testing.T) {
	t.Setenv("SOIREE_WATCH_TICK", "2s")

	cmd := newWatchCommand(io.Discard)
	if err := cmd.ParseFlags([]string{"--tick", "500ms"}); err != nil {
		t.Fatal(err)
	}
	if got := cmd.Flags().Lookup("tick").Value.String(); got != "500ms" {
		t.Errorf("--tick = %q, want 500ms", got)
	}
}

func TestWatchOptions_Validate(t *testing.T) {
	valid := WatchOptions{URL: "http://localhost:8080", Poll: 7 * time.Second, Tick: time.Second}
	if err := valid.validate(); err != nil {
		t.Errorf("valid options: %v", err)
	}

	tests := []struct {
		name string
		edit func(*WatchOptions)
	}{
		{"URLのスキームなし", func(o *WatchOptions) { o.URL = "localhost:8080" }},
		{"poll が0", func(o *WatchOptions) { o.Poll = 0 }},
		{"tick が負", func(o *WatchOptions) { o.Tick = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := valid
			tt.edit(&o)
			if err := o.validate(); err == nil {
				t.Error("エラーを返すこと")
			}
		})
	}
}

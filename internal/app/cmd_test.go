package app

import (
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want Command
	}{
		{name: "引数なしはserve", args: []string{}, want: CommandServe},
		{name: "serve", args: []string{"serve"}, want: CommandServe},
		{name: "worker", args: []string{"worker"}, want: CommandWorker},
		{name: "migrate", args: []string{"migrate"}, want: CommandMigrate},
		{name: "migrate down", args: []string{"migrate", "down"}, want: CommandMigrate},
		{name: "seed", args: []string{"seed", "50"}, want: CommandSeed},
		{name: "healthcheck", args: []string{"healthcheck"}, want: CommandHealthcheck},
		{name: "未知のコマンドはserve", args: []string{"unknown"}, want: CommandServe},
		{name: "余分な引数は無視", args: []string{"worker", "--flag", "value"}, want: CommandWorker},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseCommand(tt.args); got != tt.want {
				t.Errorf("ParseCommand(%v) = %q, want %q", tt.args, got, tt.want)
			}
		})
	}
}

func TestIsMigrateDown(t *testing.T) {
	if !isMigrateDown([]string{"migrate", "down"}) {
		t.Error("migrate down should be detected")
	}
	if isMigrateDown([]string{"migrate"}) {
		t.Error("plain migrate should not be down")
	}
	if isMigrateDown([]string{"seed", "down"}) {
		t.Error("down is only meaningful for migrate")
	}
}

func TestSeedPlayerCount(t *testing.T) {
	tests := []struct {
		args []string
		want int
	}{
		{args: []string{"seed"}, want: 300},
		{args: []string{"seed", "25"}, want: 25},
		{args: []string{"seed", "abc"}, want: 300},
		{args: []string{"seed", "-1"}, want: 300},
	}

	for _, tt := range tests {
		if got := seedPlayerCount(tt.args, 300); got != tt.want {
			t.Errorf("seedPlayerCount(%v) = %d, want %d", tt.args, got, tt.want)
		}
	}
}

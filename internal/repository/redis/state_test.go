package redis

import (
	"testing"

	goredis "github.com/redis/go-redis/v9"
)

func TestParseExpiredKey(t *testing.T) {
	tests := []struct {
		key    string
		gameID string
		suffix string
		ok     bool
	}{
		{"game:abc:timer", "abc", TimerSuffix, true},
		{"game:abc:step", "abc", StepSuffix, true},
		{"game:abc:state", "", "", false},
		{"game::timer", "", "", false},
		{"game:a:b:timer", "", "", false},
		{"other:abc:timer", "", "", false},
	}
	for _, tt := range tests {
		gameID, suffix, ok := ParseExpiredKey(tt.key)
		if gameID != tt.gameID || suffix != tt.suffix || ok != tt.ok {
			t.Errorf("ParseExpiredKey(%q) = %q, %q, %v; want %q, %q, %v",
				tt.key, gameID, suffix, ok, tt.gameID, tt.suffix, tt.ok)
		}
	}
}

func TestExpiredChannelFollowsDB(t *testing.T) {
	rdb := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:0", DB: 3})
	defer rdb.Close()
	if got := NewClientFromPool(rdb).ExpiredChannel(); got != "__keyevent@3__:expired" {
		t.Errorf("unexpected channel %q", got)
	}
}

package conventions_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slok/tasknotify/internal/conventions"
)

func TestHistoryDBPath(t *testing.T) {
	tests := map[string]struct {
		home    string
		expPath string
	}{
		"a home dir should have the data dir inside": {
			home:    "/home/user",
			expPath: "/home/user/.tasknotify/history.db",
		},
		"an empty home should be relative": {
			home:    "",
			expPath: ".tasknotify/history.db",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expPath, conventions.HistoryDBPath(test.home))
		})
	}
}

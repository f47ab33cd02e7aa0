package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "epathshala:layout:u1", Key("layout", "u1"))
	assert.Equal(t, "epathshala:notifications:unread:*", Key("notifications", "unread", "*"))
}

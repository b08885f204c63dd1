package broadcast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllocatorsAreDeterministic(t *testing.T) {
	stream := StreamAllocator("wss://stream.test/broadcast")
	assert.Equal(t, "wss://stream.test/broadcast/abc", stream("abc"))
	assert.Equal(t, stream("abc"), stream("abc"))

	rec := RecordingAllocator("https://storage.test/recordings")
	assert.Equal(t, "https://storage.test/recordings/abc.mp3", rec("abc"))

	assert.Equal(t, "https://cdn.canalradionov.com/avatars/u1.jpg", AvatarURL("u1"))
}

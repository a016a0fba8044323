package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"
)

func TestDecodeOutputUTF8Passthrough(t *testing.T) {
	text, enc := DecodeOutput([]byte("12.5|负载正常"))
	assert.Equal(t, "12.5|负载正常", text)
	assert.Equal(t, "utf-8", enc)

	text, enc = DecodeOutput(nil)
	assert.Empty(t, text)
	assert.Equal(t, "utf-8", enc)
}

func TestDecodeOutputGB18030(t *testing.T) {
	raw, err := simplifiedchinese.GB18030.NewEncoder().Bytes([]byte("磁盘已满"))
	require.NoError(t, err)

	text, enc := DecodeOutput(raw)
	assert.Equal(t, "磁盘已满", text)
	assert.Equal(t, "gb18030", enc)
	assert.Equal(t, "磁盘已满", EnsureUTF8(string(raw)))
}

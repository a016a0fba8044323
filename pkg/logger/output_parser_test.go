package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseOutputLines(t *testing.T) {
	tests := []struct {
		name     string
		output   string
		max      int
		wantHead []string
		wantTail []string
		total    int
	}{
		{
			name:   "empty output",
			output: "",
			max:    3,
		},
		{
			name:     "short output head equals tail",
			output:   "a\r\nb\n",
			max:      3,
			wantHead: []string{"a", "b"},
			wantTail: []string{"a", "b"},
			total:    2,
		},
		{
			name:     "long output",
			output:   "1\n2\n3\n4\n5\n6",
			max:      2,
			wantHead: []string{"1", "2"},
			wantTail: []string{"5", "6"},
			total:    6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseOutputLines(tt.output, tt.max)
			assert.Equal(t, tt.wantHead, got.HeadLines)
			assert.Equal(t, tt.wantTail, got.TailLines)
			assert.Equal(t, tt.total, got.Total)
		})
	}
}

func TestFormatOutputLines(t *testing.T) {
	assert.Equal(t, "", FormatOutputLines(OutputLines{}))

	short := FormatOutputLines(ParseOutputLines("up\nok", 5))
	assert.Equal(t, "head-lines: [up ⟩ ok]", short)

	long := FormatOutputLines(ParseOutputLines("1\n2\n3\n4", 1))
	assert.Equal(t, "head-lines: [1], tail-lines: [4]", long)
}

func TestNewRejectsFileOutputWithoutPath(t *testing.T) {
	_, err := New(Config{Output: "file"})
	assert.Error(t, err)

	l, err := New(Config{Level: "debug", Output: "console"})
	assert.NoError(t, err)
	assert.Equal(t, "debug", l.GetLevel().String())
}
